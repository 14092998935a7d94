package store

import (
	"database/sql"
	"fmt"

	"github.com/cadenza-app/cadenza/internal/model"
)

type EventTypeStore struct {
	db DBTX
}

func NewEventTypeStore(db DBTX) *EventTypeStore {
	return &EventTypeStore{db: db}
}

func (s *EventTypeStore) Create(churchID int64, name string) (*model.EventType, error) {
	result, err := s.db.Exec(
		`INSERT INTO event_types (church_id, name) VALUES (?, ?)`,
		churchID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert event type: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *EventTypeStore) GetByID(id int64) (*model.EventType, error) {
	var t model.EventType
	err := s.db.QueryRow(
		`SELECT id, church_id, name, created_at, updated_at FROM event_types WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.ChurchID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query event type: %w", err)
	}
	return &t, nil
}

func (s *EventTypeStore) ListByChurch(churchID int64) ([]model.EventType, error) {
	rows, err := s.db.Query(
		`SELECT id, church_id, name, created_at, updated_at
		 FROM event_types WHERE church_id = ? ORDER BY name, id`,
		churchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query event types: %w", err)
	}
	defer rows.Close()

	var out []model.EventType
	for rows.Next() {
		var t model.EventType
		if err := rows.Scan(&t.ID, &t.ChurchID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event type: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *EventTypeStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM event_types WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event type: %w", err)
	}
	return nil
}
