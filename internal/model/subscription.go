package model

import (
	"fmt"
	"time"
)

// FilterType narrows which events a feed exposes.
type FilterType string

const (
	FilterAll           FilterType = "ALL"
	FilterGroups        FilterType = "GROUPS"
	FilterEventTypes    FilterType = "EVENT_TYPES"
	FilterOpenPositions FilterType = "OPEN_POSITIONS"
)

func ParseFilterType(s string) (FilterType, error) {
	switch FilterType(s) {
	case FilterAll, FilterGroups, FilterEventTypes, FilterOpenPositions:
		return FilterType(s), nil
	}
	return "", fmt.Errorf("unknown filter type: %q", s)
}

// RequiresIDs reports whether the filter type needs a non-empty id list.
func (f FilterType) RequiresIDs() bool {
	switch f {
	case FilterGroups, FilterEventTypes:
		return true
	case FilterAll, FilterOpenPositions:
		return false
	}
	return false
}

// Subscription is a tokenized read-only feed over a church's events.
// The token is immutable once issued; regenerating a link replaces the row's
// token and invalidates the old one.
type Subscription struct {
	ID          int64      `json:"id"`
	ChurchID    int64      `json:"church_id"`
	Name        string     `json:"name"`
	Token       string     `json:"token"`
	FilterType  FilterType `json:"filter_type"`
	FilterIDs   []int64    `json:"filter_ids"`
	WindowStart *time.Time `json:"window_start"`
	WindowEnd   *time.Time `json:"window_end"`
	NeedsUpdate bool       `json:"needs_update"`
	LastUpdated *time.Time `json:"last_updated"`
	CreatedAt   time.Time  `json:"created_at"`
}
