package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cadenza-app/cadenza/internal/model"
)

type EventStore struct {
	db DBTX
}

func NewEventStore(db DBTX) *EventStore {
	return &EventStore{db: db}
}

// WithTx returns a store bound to the given transaction.
func (s *EventStore) WithTx(tx *sql.Tx) *EventStore {
	return &EventStore{db: tx}
}

const eventColumns = `id, church_id, event_type_id, name, description, location,
	starts_at, ends_at, status, is_root, is_recurring, recurrence_rule,
	generated_from, occurrence_date, is_modified, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var e model.Event
	var eventTypeID, generatedFrom sql.NullInt64
	var isRoot, isRecurring, isModified int
	var status string

	err := row.Scan(
		&e.ID, &e.ChurchID, &eventTypeID, &e.Name, &e.Description, &e.Location,
		&e.StartsAt, &e.EndsAt, &status, &isRoot, &isRecurring, &e.RecurrenceRule,
		&generatedFrom, &e.OccurrenceDate, &isModified, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.EventTypeID = int64Ptr(eventTypeID)
	e.GeneratedFrom = int64Ptr(generatedFrom)
	e.Status = model.EventStatus(status)
	e.IsRoot = isRoot != 0
	e.IsRecurring = isRecurring != 0
	e.IsModified = isModified != 0
	return &e, nil
}

func (s *EventStore) Create(e *model.Event) (*model.Event, error) {
	if e.Status == "" {
		e.Status = model.StatusConfirmed
	}
	if !e.Status.Valid() {
		return nil, fmt.Errorf("invalid event status: %q", e.Status)
	}

	result, err := s.db.Exec(
		`INSERT INTO events (church_id, event_type_id, name, description, location,
			starts_at, ends_at, status, is_root, is_recurring, recurrence_rule,
			generated_from, occurrence_date, is_modified)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ChurchID, nullInt64(e.EventTypeID), e.Name, e.Description, e.Location,
		e.StartsAt.UTC(), e.EndsAt.UTC(), string(e.Status),
		boolInt(e.IsRoot), boolInt(e.IsRecurring), e.RecurrenceRule,
		nullInt64(e.GeneratedFrom), e.OccurrenceDate, boolInt(e.IsModified),
	)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) GetByID(id int64) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event: %w", err)
	}
	return e, nil
}

func (s *EventStore) list(query string, args ...any) ([]model.Event, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ListByChurch returns the church's events overlapping [from, to), ordered
// by start time with a stable id tie-break.
func (s *EventStore) ListByChurch(churchID int64, from, to time.Time) ([]model.Event, error) {
	return s.list(
		`SELECT `+eventColumns+` FROM events
		 WHERE church_id = ? AND starts_at < ? AND ends_at > ?
		 ORDER BY starts_at, id`,
		churchID, to.UTC(), from.UTC(),
	)
}

// ListPublishable is ListByChurch minus TENTATIVE events. Drafts never leak
// into feeds; cancelled events stay visible so clients can retract them.
func (s *EventStore) ListPublishable(churchID int64, from, to time.Time) ([]model.Event, error) {
	return s.list(
		`SELECT `+eventColumns+` FROM events
		 WHERE church_id = ? AND starts_at < ? AND ends_at > ? AND status != ?
		 ORDER BY starts_at, id`,
		churchID, to.UTC(), from.UTC(), string(model.StatusTentative),
	)
}

// ListSeries returns every generated occurrence of a root, ascending.
func (s *EventStore) ListSeries(rootID int64) ([]model.Event, error) {
	return s.list(
		`SELECT `+eventColumns+` FROM events
		 WHERE generated_from = ? ORDER BY starts_at, id`,
		rootID,
	)
}

// SeriesDates returns the occurrence-date keys already materialized for a
// root.
func (s *EventStore) SeriesDates(rootID int64) (map[string]bool, error) {
	rows, err := s.db.Query(
		`SELECT occurrence_date FROM events WHERE generated_from = ?`, rootID,
	)
	if err != nil {
		return nil, fmt.Errorf("query series dates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan series date: %w", err)
		}
		out[d] = true
	}
	return out, rows.Err()
}

// ListRecurringRoots returns every root event that drives a series.
func (s *EventStore) ListRecurringRoots() ([]model.Event, error) {
	return s.list(
		`SELECT ` + eventColumns + ` FROM events
		 WHERE is_root = 1 AND is_recurring = 1 ORDER BY id`,
	)
}

// Update rewrites an event's mutable fields and bumps updated_at, which in
// turn changes the feed UID for the event.
func (s *EventStore) Update(e *model.Event) (*model.Event, error) {
	if !e.Status.Valid() {
		return nil, fmt.Errorf("invalid event status: %q", e.Status)
	}
	_, err := s.db.Exec(
		`UPDATE events
		 SET event_type_id = ?, name = ?, description = ?, location = ?,
		     starts_at = ?, ends_at = ?, status = ?, recurrence_rule = ?,
		     is_modified = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		nullInt64(e.EventTypeID), e.Name, e.Description, e.Location,
		e.StartsAt.UTC(), e.EndsAt.UTC(), string(e.Status), e.RecurrenceRule,
		boolInt(e.IsModified), e.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.GetByID(e.ID)
}

func (s *EventStore) UpdateStatus(id int64, status model.EventStatus) (*model.Event, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid event status: %q", status)
	}
	_, err := s.db.Exec(
		`UPDATE events SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update event status: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
