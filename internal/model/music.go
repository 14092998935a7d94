package model

import "time"

// ServicePart is an ordered slot in a service ("Opening Hymn", "Offertory").
// Music items hang off a part and render in part order in feed descriptions.
type ServicePart struct {
	ID        int64     `json:"id"`
	ChurchID  int64     `json:"church_id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MusicItem struct {
	ID            int64     `json:"id"`
	EventID       int64     `json:"event_id"`
	ServicePartID *int64    `json:"service_part_id"`
	Title         string    `json:"title"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
