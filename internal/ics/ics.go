// Package ics serializes events to the iCalendar wire format: escaping,
// 75-octet line folding, stable UIDs, and UTC or TZID-qualified timestamps.
// It is a pure text layer; nothing here touches storage.
package ics

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	prodID = "-//Cadenza//Cadenza Calendar//EN"

	// maxLineOctets is the wire-format ceiling per output line, leading
	// continuation space included.
	maxLineOctets = 75

	// maxTextLen bounds any single text field so one runaway description
	// cannot bloat the whole feed.
	maxTextLen = 1000
)

// UID derives a per-occurrence identifier from the event id and its
// last-modified time. Unedited events keep a byte-identical UID across
// regenerations; any edit bumps updated_at and with it the UID, which is
// what tells calendar clients to refresh the entry.
func UID(eventID int64, updatedAt time.Time) string {
	return fmt.Sprintf("event-%d-%d@cadenza.app", eventID, updatedAt.UTC().Unix())
}

// Sanitize prepares raw user text for a calendar field: embedded line
// breaks collapse to single spaces and the result is truncated to
// maxTextLen runes.
func Sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	if utf8.RuneCountInString(s) > maxTextLen {
		runes := []rune(s)
		s = string(runes[:maxTextLen])
	}
	return s
}

// Escape applies wire-format escaping to a text value: backslash,
// semicolon, comma, and newline (composed descriptions carry real newlines
// between sections; they travel as literal "\n").
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case ';':
			b.WriteString(`\;`)
		case ',':
			b.WriteString(`\,`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			// handled with the following \n, or dropped when bare
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Unescape reverses Escape. Used by tests to verify round-trips.
func Unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n', 'N':
				b.WriteByte('\n')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// FoldLine breaks a content line into wire lines of at most maxLineOctets
// octets, continuing with CRLF plus one space. Folds land on byte
// boundaries but never inside a multi-byte UTF-8 sequence.
func FoldLine(line string) []string {
	if len(line) <= maxLineOctets {
		return []string{line}
	}

	var out []string
	budget := maxLineOctets
	for len(line) > budget {
		cut := budget
		// Back off to a rune boundary.
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		out = append(out, line[:cut])
		line = " " + line[cut:]
		budget = maxLineOctets
	}
	out = append(out, line)
	return out
}

// Unfold reverses folding on a full document: CRLF followed by a single
// space joins back to the preceding line.
func Unfold(doc string) string {
	return strings.ReplaceAll(doc, "\r\n ", "")
}

// VEvent is one serialized calendar entry. Start and End are absolute
// instants; when TZID is set they render as local wall-clock time in that
// zone, otherwise as UTC with the trailing Z.
type VEvent struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Status      string
	Start       time.Time
	End         time.Time
	TZID        string
	DTStamp     time.Time
}

// Calendar is a renderable feed. TZID, when set, is published as the
// calendar-level default timezone.
type Calendar struct {
	Name   string
	TZID   string
	Events []VEvent
}

// Render emits the complete document with CRLF line endings and folded
// lines. An empty calendar still renders a valid envelope.
func (c Calendar) Render() string {
	var b strings.Builder

	writeProp(&b, "BEGIN", "VCALENDAR")
	writeProp(&b, "VERSION", "2.0")
	writeProp(&b, "PRODID", prodID)
	writeProp(&b, "CALSCALE", "GREGORIAN")
	writeProp(&b, "METHOD", "PUBLISH")
	if c.Name != "" {
		writeProp(&b, "X-WR-CALNAME", Escape(Sanitize(c.Name)))
	}
	if c.TZID != "" {
		writeProp(&b, "X-WR-TIMEZONE", c.TZID)
	}

	for _, e := range c.Events {
		writeProp(&b, "BEGIN", "VEVENT")
		writeProp(&b, "UID", e.UID)
		writeProp(&b, "DTSTAMP", e.DTStamp.UTC().Format("20060102T150405Z"))
		writeTime(&b, "DTSTART", e.Start, e.TZID)
		writeTime(&b, "DTEND", e.End, e.TZID)
		writeProp(&b, "SUMMARY", Escape(Sanitize(e.Summary)))
		if e.Location != "" {
			writeProp(&b, "LOCATION", Escape(Sanitize(e.Location)))
		}
		if e.Description != "" {
			writeProp(&b, "DESCRIPTION", Escape(e.Description))
		}
		if e.Status != "" {
			writeProp(&b, "STATUS", e.Status)
		}
		writeProp(&b, "END", "VEVENT")
	}

	writeProp(&b, "END", "VCALENDAR")
	return b.String()
}

func writeProp(b *strings.Builder, name, value string) {
	for _, line := range FoldLine(name + ":" + value) {
		b.WriteString(line)
		b.WriteString("\r\n")
	}
}

// writeTime renders a datetime property: TZID-qualified local wall clock
// for recurring local-time semantics, plain UTC otherwise. Local rendering
// keeps "10:00" meaning 10:00 across a DST transition.
func writeTime(b *strings.Builder, name string, t time.Time, tzid string) {
	if tzid == "" {
		writeProp(b, name, t.UTC().Format("20060102T150405Z"))
		return
	}
	loc, err := time.LoadLocation(tzid)
	if err != nil {
		writeProp(b, name, t.UTC().Format("20060102T150405Z"))
		return
	}
	for _, line := range FoldLine(name + ";TZID=" + tzid + ":" + t.In(loc).Format("20060102T150405")) {
		b.WriteString(line)
		b.WriteString("\r\n")
	}
}
