package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cadenza-app/cadenza/internal/model"
)

type AssignmentStore struct {
	db DBTX
}

func NewAssignmentStore(db DBTX) *AssignmentStore {
	return &AssignmentStore{db: db}
}

func (s *AssignmentStore) WithTx(tx *sql.Tx) *AssignmentStore {
	return &AssignmentStore{db: tx}
}

const assignmentColumns = `id, event_id, role_name, musician_id, group_id, status, created_at, updated_at`

func scanAssignment(row interface{ Scan(...any) error }) (*model.Assignment, error) {
	var a model.Assignment
	var musicianID, groupID sql.NullInt64
	var status string

	err := row.Scan(&a.ID, &a.EventID, &a.RoleName, &musicianID, &groupID, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.MusicianID = int64Ptr(musicianID)
	a.GroupID = int64Ptr(groupID)
	a.Status = model.AssignmentStatus(status)
	return &a, nil
}

func (s *AssignmentStore) Create(eventID int64, roleName string, musicianID, groupID *int64) (*model.Assignment, error) {
	result, err := s.db.Exec(
		`INSERT INTO assignments (event_id, role_name, musician_id, group_id, status)
		 VALUES (?, ?, ?, ?, ?)`,
		eventID, roleName, nullInt64(musicianID), nullInt64(groupID), string(model.AssignmentPending),
	)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AssignmentStore) GetByID(id int64) (*model.Assignment, error) {
	a, err := scanAssignment(s.db.QueryRow(
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query assignment: %w", err)
	}
	return a, nil
}

func (s *AssignmentStore) ListByEvent(eventID int64) ([]model.Assignment, error) {
	rows, err := s.db.Query(
		`SELECT `+assignmentColumns+` FROM assignments WHERE event_id = ? ORDER BY role_name, id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var out []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ListByEvents returns assignments for a set of events keyed by event id.
func (s *AssignmentStore) ListByEvents(eventIDs []int64) (map[int64][]model.Assignment, error) {
	out := make(map[int64][]model.Assignment, len(eventIDs))
	if len(eventIDs) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(eventIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(eventIDs))
	for i, id := range eventIDs {
		args[i] = id
	}

	rows, err := s.db.Query(
		`SELECT `+assignmentColumns+` FROM assignments
		 WHERE event_id IN (`+placeholders+`) ORDER BY role_name, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out[a.EventID] = append(out[a.EventID], *a)
	}
	return out, rows.Err()
}

// CloneForEvent copies another event's assignment slots onto dstEventID as
// fresh PENDING rows. Used when materializing occurrences from a root.
func (s *AssignmentStore) CloneForEvent(srcEventID, dstEventID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO assignments (event_id, role_name, musician_id, group_id, status)
		 SELECT ?, role_name, musician_id, group_id, ?
		 FROM assignments WHERE event_id = ?`,
		dstEventID, string(model.AssignmentPending), srcEventID,
	)
	if err != nil {
		return fmt.Errorf("clone assignments: %w", err)
	}
	return nil
}

// Assign fills an open slot. It transitions exactly one row from open to
// the named musician; assigning an already-filled slot is rejected.
func (s *AssignmentStore) Assign(id, musicianID int64) (*model.Assignment, error) {
	result, err := s.db.Exec(
		`UPDATE assignments
		 SET musician_id = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND musician_id IS NULL`,
		musicianID, string(model.AssignmentPending), id,
	)
	if err != nil {
		return nil, fmt.Errorf("assign musician: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("assignment %d is not open", id)
	}
	return s.GetByID(id)
}

// Release reopens a slot, clearing the musician and resetting status.
func (s *AssignmentStore) Release(id int64) (*model.Assignment, error) {
	_, err := s.db.Exec(
		`UPDATE assignments
		 SET musician_id = NULL, status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		string(model.AssignmentPending), id,
	)
	if err != nil {
		return nil, fmt.Errorf("release assignment: %w", err)
	}
	return s.GetByID(id)
}

func (s *AssignmentStore) UpdateStatus(id int64, status model.AssignmentStatus) (*model.Assignment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid assignment status: %q", status)
	}
	_, err := s.db.Exec(
		`UPDATE assignments SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update assignment status: %w", err)
	}
	return s.GetByID(id)
}

// EventsWithAcceptedAssignments filters eventIDs down to those carrying at
// least one ACCEPTED assignment. Shrinking a series past such an event is a
// conflict unless forced.
func (s *AssignmentStore) EventsWithAcceptedAssignments(eventIDs []int64) ([]int64, error) {
	if len(eventIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(eventIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(eventIDs)+1)
	for _, id := range eventIDs {
		args = append(args, id)
	}
	args = append(args, string(model.AssignmentAccepted))

	rows, err := s.db.Query(
		`SELECT DISTINCT event_id FROM assignments
		 WHERE event_id IN (`+placeholders+`) AND status = ?
		 ORDER BY event_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query accepted assignments: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan event id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *AssignmentStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM assignments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}
