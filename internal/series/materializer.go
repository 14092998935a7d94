// Package series materializes recurring event series into concrete event
// rows and applies scoped edits across them.
package series

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cadenza-app/cadenza/internal/model"
	"github.com/cadenza-app/cadenza/internal/recurrence"
	"github.com/cadenza-app/cadenza/internal/store"
	"github.com/cadenza-app/cadenza/internal/tz"
)

// ValidationError marks a request the caller can fix. Handlers map it to a
// 422 response.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// ConflictError reports occurrences that block a destructive series change,
// such as shrinking a series past events musicians already accepted.
type ConflictError struct {
	Msg      string
	EventIDs []int64
}

func (e *ConflictError) Error() string { return e.Msg }

// Hooks run after a series mutation commits. They must not touch the
// transaction; anything they need is passed in.
type Hooks struct {
	EventCancelled func(event *model.Event)
	SeriesExtended func(root *model.Event, created []model.Event)
}

// Materializer owns the lifecycle of recurring series: generating occurrence
// rows out to a horizon, scoped edits, shrinking, and cancellation.
type Materializer struct {
	db          *sql.DB
	churches    *store.ChurchStore
	events      *store.EventStore
	assignments *store.AssignmentStore
	music       *store.MusicStore
	hooks       Hooks
	logger      *slog.Logger
}

func NewMaterializer(db *sql.DB, logger *slog.Logger, hooks Hooks) *Materializer {
	return &Materializer{
		db:          db,
		churches:    store.NewChurchStore(db),
		events:      store.NewEventStore(db),
		assignments: store.NewAssignmentStore(db),
		music:       store.NewMusicStore(db),
		hooks:       hooks,
		logger:      logger,
	}
}

// Extend materializes the root's missing occurrences up to the horizon, each
// cloning the root's details, assignment slots (reset to PENDING), and music
// list. Occurrence identity is the church-local calendar date, so re-running
// with the same horizon creates nothing. All rows land in one transaction.
func (m *Materializer) Extend(rootID int64, horizon time.Time) ([]model.Event, error) {
	root, err := m.events.GetByID(rootID)
	if err != nil {
		return nil, err
	}
	if root == nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("event %d not found", rootID)}
	}
	if !root.IsRoot || !root.IsRecurring {
		return nil, &ValidationError{Msg: fmt.Sprintf("event %d is not a recurring series root", rootID)}
	}

	rule, err := recurrence.Parse(root.RecurrenceRule)
	if err != nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("invalid recurrence rule: %v", err)}
	}

	church, err := m.churches.GetByID(root.ChurchID)
	if err != nil {
		return nil, err
	}
	loc, err := tz.Location(church.Timezone)
	if err != nil {
		return nil, fmt.Errorf("church %d timezone: %w", church.ID, err)
	}

	existing, err := m.events.SeriesDates(root.ID)
	if err != nil {
		return nil, err
	}
	// The root occupies its own date; never generate a twin for it.
	seriesStart := root.StartsAt.In(loc)
	existing[recurrence.DateKey(seriesStart, loc)] = true

	missing := recurrence.MissingDates(rule, seriesStart, horizon, loc, existing)
	if len(missing) == 0 {
		return nil, nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	events := m.events.WithTx(tx)
	assignments := m.assignments.WithTx(tx)
	music := m.music.WithTx(tx)

	duration := root.Duration()
	created := make([]model.Event, 0, len(missing))
	for _, start := range missing {
		occ, err := events.Create(&model.Event{
			ChurchID:       root.ChurchID,
			EventTypeID:    root.EventTypeID,
			Name:           root.Name,
			Description:    root.Description,
			Location:       root.Location,
			StartsAt:       start,
			EndsAt:         start.Add(duration),
			Status:         root.Status,
			GeneratedFrom:  &root.ID,
			OccurrenceDate: recurrence.DateKey(start, loc),
		})
		if err != nil {
			// A concurrent extend can win the race to a date; the unique
			// index on (generated_from, occurrence_date) catches it. The
			// retry re-reads existing dates and skips it.
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return nil, &ConflictError{
					Msg:      fmt.Sprintf("occurrence %s already materialized", recurrence.DateKey(start, loc)),
					EventIDs: []int64{root.ID},
				}
			}
			return nil, fmt.Errorf("materialize occurrence %s: %w", recurrence.DateKey(start, loc), err)
		}
		if err := assignments.CloneForEvent(root.ID, occ.ID); err != nil {
			return nil, err
		}
		if err := music.CloneForEvent(root.ID, occ.ID); err != nil {
			return nil, err
		}
		created = append(created, *occ)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	m.logger.Info("series extended",
		"root_id", root.ID,
		"church_id", root.ChurchID,
		"created", len(created),
		"horizon", horizon.Format(time.RFC3339))

	if m.hooks.SeriesExtended != nil {
		m.hooks.SeriesExtended(root, created)
	}
	return created, nil
}

// Changes carries the editable fields of a series edit. Nil fields are left
// untouched. When StartsAt is set, other occurrences in scope shift by the
// same offset as the target occurrence.
type Changes struct {
	Name        *string
	Description *string
	Location    *string
	EventTypeID *int64
	StartsAt    *time.Time
	EndsAt      *time.Time
}

// EditSeries applies changes to the target event and, depending on scope, to
// its siblings in the series.
//
//   - ONLY_THIS edits just the target and pins it: bulk edits skip it from
//     then on.
//   - THIS_AND_FUTURE edits the target and every later occurrence.
//   - ALL edits the root and every occurrence.
//
// Bulk scopes never touch occurrences pinned by an earlier ONLY_THIS edit;
// the target itself is always edited. ALL with force set overrides the pins.
// Returns the events actually changed.
func (m *Materializer) EditSeries(eventID int64, scope model.EditScope, changes Changes, force bool) ([]model.Event, error) {
	target, err := m.events.GetByID(eventID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("event %d not found", eventID)}
	}

	rootID := target.ID
	if target.GeneratedFrom != nil {
		rootID = *target.GeneratedFrom
	}

	var startDelta time.Duration
	if changes.StartsAt != nil {
		startDelta = changes.StartsAt.Sub(target.StartsAt)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	events := m.events.WithTx(tx)

	var edited []model.Event

	apply := func(e *model.Event, isTarget bool) error {
		if changes.Name != nil {
			e.Name = *changes.Name
		}
		if changes.Description != nil {
			e.Description = *changes.Description
		}
		if changes.Location != nil {
			e.Location = *changes.Location
		}
		if changes.EventTypeID != nil {
			e.EventTypeID = changes.EventTypeID
		}
		if changes.StartsAt != nil {
			duration := e.Duration()
			e.StartsAt = e.StartsAt.Add(startDelta)
			e.EndsAt = e.StartsAt.Add(duration)
		}
		if changes.EndsAt != nil {
			if isTarget {
				e.EndsAt = *changes.EndsAt
			} else if changes.StartsAt != nil {
				e.EndsAt = e.StartsAt.Add(changes.EndsAt.Sub(*changes.StartsAt))
			}
		}
		if scope == model.ScopeOnlyThis && e.GeneratedFrom != nil {
			e.IsModified = true
		}
		updated, err := events.Update(e)
		if err != nil {
			return err
		}
		edited = append(edited, *updated)
		return nil
	}

	if err := apply(target, true); err != nil {
		return nil, err
	}

	if scope != model.ScopeOnlyThis {
		siblings, err := events.ListSeries(rootID)
		if err != nil {
			return nil, err
		}
		for i := range siblings {
			sib := &siblings[i]
			if sib.ID == target.ID {
				continue
			}
			if sib.IsModified && !(scope == model.ScopeAll && force) {
				continue
			}
			if scope == model.ScopeThisAndFuture && sib.StartsAt.Before(target.StartsAt) {
				continue
			}
			if err := apply(sib, false); err != nil {
				return nil, err
			}
		}
		// ALL reaches back to the root template so future materialization
		// picks up the change too.
		if scope == model.ScopeAll && target.ID != rootID {
			root, err := events.GetByID(rootID)
			if err != nil {
				return nil, err
			}
			if root != nil {
				if err := apply(root, false); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	m.logger.Info("series edited",
		"event_id", eventID, "scope", string(scope), "edited", len(edited))
	return edited, nil
}

// ShrinkRecurrenceEnd truncates a series at newUntil: occurrences starting
// after it are deleted and the root's rule gets an UNTIL clause. Occurrences
// past the cutoff that carry an ACCEPTED assignment block the shrink with a
// *ConflictError unless force is set.
func (m *Materializer) ShrinkRecurrenceEnd(rootID int64, newUntil time.Time, force bool) error {
	root, err := m.events.GetByID(rootID)
	if err != nil {
		return err
	}
	if root == nil {
		return &ValidationError{Msg: fmt.Sprintf("event %d not found", rootID)}
	}
	if !root.IsRoot || !root.IsRecurring {
		return &ValidationError{Msg: fmt.Sprintf("event %d is not a recurring series root", rootID)}
	}
	if newUntil.Before(root.StartsAt) {
		return &ValidationError{Msg: "series end cannot precede the first occurrence"}
	}

	rule, err := recurrence.Parse(root.RecurrenceRule)
	if err != nil {
		return &ValidationError{Msg: fmt.Sprintf("invalid recurrence rule: %v", err)}
	}

	siblings, err := m.events.ListSeries(rootID)
	if err != nil {
		return err
	}
	var doomed []int64
	for _, sib := range siblings {
		if sib.StartsAt.After(newUntil) {
			doomed = append(doomed, sib.ID)
		}
	}

	if len(doomed) > 0 && !force {
		accepted, err := m.assignments.EventsWithAcceptedAssignments(doomed)
		if err != nil {
			return err
		}
		if len(accepted) > 0 {
			return &ConflictError{
				Msg:      fmt.Sprintf("%d occurrence(s) past the new end have accepted assignments", len(accepted)),
				EventIDs: accepted,
			}
		}
	}

	until := newUntil.UTC()
	rule.Until = &until
	rule.Count = 0

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	events := m.events.WithTx(tx)

	for _, id := range doomed {
		if err := events.Delete(id); err != nil {
			return err
		}
	}
	root.RecurrenceRule = rule.String()
	if _, err := events.Update(root); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	m.logger.Info("series shrunk",
		"root_id", rootID,
		"new_until", newUntil.Format(time.RFC3339),
		"deleted", len(doomed),
		"forced", force)
	return nil
}

// Cancel marks an event CANCELLED. Subscribed calendars keep the entry and
// render it struck through; the cancellation hook runs after the write.
func (m *Materializer) Cancel(eventID int64) (*model.Event, error) {
	event, err := m.events.GetByID(eventID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, &ValidationError{Msg: fmt.Sprintf("event %d not found", eventID)}
	}

	updated, err := m.events.UpdateStatus(eventID, model.StatusCancelled)
	if err != nil {
		return nil, err
	}

	m.logger.Info("event cancelled", "event_id", eventID, "church_id", event.ChurchID)
	if m.hooks.EventCancelled != nil {
		m.hooks.EventCancelled(updated)
	}
	return updated, nil
}
