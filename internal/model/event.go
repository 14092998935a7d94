package model

import (
	"fmt"
	"time"
)

// EventStatus is the publication status of an event. TENTATIVE events are
// never exposed through feeds; CANCELLED events are published with their
// status so subscribed clients retract them.
type EventStatus string

const (
	StatusConfirmed EventStatus = "CONFIRMED"
	StatusTentative EventStatus = "TENTATIVE"
	StatusCancelled EventStatus = "CANCELLED"
)

func (s EventStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusTentative, StatusCancelled:
		return true
	}
	return false
}

type EventType struct {
	ID        int64     `json:"id"`
	ChurchID  int64     `json:"church_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Event is either a standalone event, the root template of a recurring
// series, or one generated occurrence of a series.
//
// Exactly one record per series has IsRoot set; every other record carries
// GeneratedFrom pointing back to it. GeneratedFrom is a weak reference:
// deleting a root does not cascade to its occurrences.
type Event struct {
	ID             int64       `json:"id"`
	ChurchID       int64       `json:"church_id"`
	EventTypeID    *int64      `json:"event_type_id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Location       string      `json:"location"`
	StartsAt       time.Time   `json:"starts_at"`
	EndsAt         time.Time   `json:"ends_at"`
	Status         EventStatus `json:"status"`
	IsRoot         bool        `json:"is_root"`
	IsRecurring    bool        `json:"is_recurring"`
	RecurrenceRule string      `json:"recurrence_rule,omitempty"`
	GeneratedFrom  *int64      `json:"generated_from"`
	// OccurrenceDate is the church-local calendar date (YYYY-MM-DD) of the
	// start time for generated occurrences. Unique per series.
	OccurrenceDate string    `json:"occurrence_date,omitempty"`
	IsModified     bool      `json:"is_modified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (e Event) Duration() time.Duration {
	return e.EndsAt.Sub(e.StartsAt)
}

// EditScope selects which occurrences a series edit applies to.
type EditScope string

const (
	ScopeOnlyThis      EditScope = "ONLY_THIS"
	ScopeThisAndFuture EditScope = "THIS_AND_FUTURE"
	ScopeAll           EditScope = "ALL"
)

func ParseEditScope(s string) (EditScope, error) {
	switch EditScope(s) {
	case ScopeOnlyThis, ScopeThisAndFuture, ScopeAll:
		return EditScope(s), nil
	}
	return "", fmt.Errorf("unknown edit scope: %q", s)
}
