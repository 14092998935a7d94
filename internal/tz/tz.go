// Package tz centralizes timezone conversion. It deliberately exposes only
// two operations, both backed by the system tz database, so no caller ever
// does fixed-offset arithmetic around DST transitions.
package tz

import (
	"fmt"
	"time"
)

// ToInstant converts a wall-clock reading in a named zone to the absolute
// instant it denotes. Year/month/day/hour/minute/second are taken from
// wall; its own location is ignored.
func ToInstant(wall time.Time, zone string) (time.Time, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("load zone %q: %w", zone, err)
	}
	return time.Date(
		wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(),
		loc,
	), nil
}

// FormatLocal renders an absolute instant as a wall-clock time in the named
// zone.
func FormatLocal(instant time.Time, zone string, layout string) (string, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", fmt.Errorf("load zone %q: %w", zone, err)
	}
	return instant.In(loc).Format(layout), nil
}

// Location resolves a zone name, defaulting to UTC for the empty string.
func Location(zone string) (*time.Location, error) {
	if zone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", zone, err)
	}
	return loc, nil
}
