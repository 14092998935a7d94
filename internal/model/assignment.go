package model

import "time"

type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "PENDING"
	AssignmentAccepted AssignmentStatus = "ACCEPTED"
	AssignmentDeclined AssignmentStatus = "DECLINED"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentAccepted, AssignmentDeclined:
		return true
	}
	return false
}

// Assignment is one role slot on an event. A nil MusicianID is an open
// position; an event may carry several open slots for the same role.
type Assignment struct {
	ID         int64            `json:"id"`
	EventID    int64            `json:"event_id"`
	RoleName   string           `json:"role_name"`
	MusicianID *int64           `json:"musician_id"`
	GroupID    *int64           `json:"group_id"`
	Status     AssignmentStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (a Assignment) Open() bool {
	return a.MusicianID == nil
}
