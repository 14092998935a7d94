package model

import (
	"strings"
	"time"
)

type Musician struct {
	ID        int64     `json:"id"`
	ChurchID  int64     `json:"church_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last name, tolerating either being empty.
func (m Musician) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

type Group struct {
	ID        int64     `json:"id"`
	ChurchID  int64     `json:"church_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type GroupMember struct {
	ID         int64     `json:"id"`
	GroupID    int64     `json:"group_id"`
	MusicianID int64     `json:"musician_id"`
	CreatedAt  time.Time `json:"created_at"`
}
