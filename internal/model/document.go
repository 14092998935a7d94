package model

import "time"

// Document is a file attached to an event. Only the storage key is kept;
// feeds link to the document-listing page rather than storage URLs so keys
// can rotate without invalidating published calendars.
type Document struct {
	ID          int64     `json:"id"`
	EventID     int64     `json:"event_id"`
	Filename    string    `json:"filename"`
	StorageKey  string    `json:"-"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
