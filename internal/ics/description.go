package ics

import "strings"

// RosterEntry is one assignment line in a composed description. Open slots
// render with an explicit label so readers see unfilled positions.
type RosterEntry struct {
	Role string
	Name string
	Open bool
}

// MusicEntry is one music item line, grouped under its service part. An
// empty Part groups the item under no heading; an empty Title still renders
// as a bare dash so an unfilled slot stays visible.
type MusicEntry struct {
	Part  string
	Title string
}

// ComposeDescription builds an event description in fixed order: free text,
// musicians, music by service part, then a link to the event's document
// page. Sections are separated by blank lines; absent sections are omitted
// entirely.
func ComposeDescription(freeText string, roster []RosterEntry, music []MusicEntry, documentsURL string) string {
	var sections []string

	if freeText != "" {
		sections = append(sections, Sanitize(freeText))
	}

	if len(roster) > 0 {
		lines := []string{"Musicians:"}
		for _, r := range roster {
			name := Sanitize(r.Name)
			if r.Open {
				name = "(open)"
			}
			lines = append(lines, Sanitize(r.Role)+": "+name)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(music) > 0 {
		lines := []string{"Music:"}
		lastPart := "\x00" // sentinel: no part heading written yet
		for _, m := range music {
			if m.Part != lastPart {
				if m.Part != "" {
					lines = append(lines, Sanitize(m.Part)+":")
				}
				lastPart = m.Part
			}
			if m.Title == "" {
				lines = append(lines, "-")
			} else {
				lines = append(lines, "- "+Sanitize(m.Title))
			}
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if documentsURL != "" {
		sections = append(sections, "Documents: "+documentsURL)
	}

	return strings.Join(sections, "\n\n")
}
