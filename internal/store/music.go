package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cadenza-app/cadenza/internal/model"
)

type MusicStore struct {
	db DBTX
}

func NewMusicStore(db DBTX) *MusicStore {
	return &MusicStore{db: db}
}

func (s *MusicStore) WithTx(tx *sql.Tx) *MusicStore {
	return &MusicStore{db: tx}
}

func (s *MusicStore) CreateServicePart(churchID int64, name string, sortOrder int) (*model.ServicePart, error) {
	result, err := s.db.Exec(
		`INSERT INTO service_parts (church_id, name, sort_order) VALUES (?, ?, ?)`,
		churchID, name, sortOrder,
	)
	if err != nil {
		return nil, fmt.Errorf("insert service part: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetServicePart(id)
}

func (s *MusicStore) GetServicePart(id int64) (*model.ServicePart, error) {
	var p model.ServicePart
	err := s.db.QueryRow(
		`SELECT id, church_id, name, sort_order, created_at, updated_at
		 FROM service_parts WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.ChurchID, &p.Name, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query service part: %w", err)
	}
	return &p, nil
}

func (s *MusicStore) ListServiceParts(churchID int64) ([]model.ServicePart, error) {
	rows, err := s.db.Query(
		`SELECT id, church_id, name, sort_order, created_at, updated_at
		 FROM service_parts WHERE church_id = ? ORDER BY sort_order, id`,
		churchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query service parts: %w", err)
	}
	defer rows.Close()

	var out []model.ServicePart
	for rows.Next() {
		var p model.ServicePart
		if err := rows.Scan(&p.ID, &p.ChurchID, &p.Name, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan service part: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *MusicStore) CreateItem(eventID int64, servicePartID *int64, title, notes string) (*model.MusicItem, error) {
	result, err := s.db.Exec(
		`INSERT INTO music_items (event_id, service_part_id, title, notes) VALUES (?, ?, ?, ?)`,
		eventID, nullInt64(servicePartID), title, notes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert music item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetItem(id)
}

func (s *MusicStore) GetItem(id int64) (*model.MusicItem, error) {
	var m model.MusicItem
	var partID sql.NullInt64
	err := s.db.QueryRow(
		`SELECT id, event_id, service_part_id, title, notes, created_at, updated_at
		 FROM music_items WHERE id = ?`,
		id,
	).Scan(&m.ID, &m.EventID, &partID, &m.Title, &m.Notes, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query music item: %w", err)
	}
	m.ServicePartID = int64Ptr(partID)
	return &m, nil
}

// ListByEvent returns an event's music items in service-part slot order.
// Items without a part sort last.
func (s *MusicStore) ListByEvent(eventID int64) ([]model.MusicItem, error) {
	rows, err := s.db.Query(
		`SELECT m.id, m.event_id, m.service_part_id, m.title, m.notes, m.created_at, m.updated_at
		 FROM music_items m
		 LEFT JOIN service_parts p ON p.id = m.service_part_id
		 WHERE m.event_id = ?
		 ORDER BY p.sort_order IS NULL, p.sort_order, m.id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("query music items: %w", err)
	}
	defer rows.Close()

	var out []model.MusicItem
	for rows.Next() {
		var m model.MusicItem
		var partID sql.NullInt64
		if err := rows.Scan(&m.ID, &m.EventID, &partID, &m.Title, &m.Notes, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan music item: %w", err)
		}
		m.ServicePartID = int64Ptr(partID)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListByEvents returns music items for a set of events keyed by event id,
// each list in slot order.
func (s *MusicStore) ListByEvents(eventIDs []int64) (map[int64][]model.MusicItem, error) {
	out := make(map[int64][]model.MusicItem, len(eventIDs))
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
		`SELECT m.id, m.event_id, m.service_part_id, m.title, m.notes, m.created_at, m.updated_at
		 FROM music_items m
		 LEFT JOIN service_parts p ON p.id = m.service_part_id
		 WHERE m.event_id IN (`+placeholders+`)
		 ORDER BY p.sort_order IS NULL, p.sort_order, m.id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query music items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m model.MusicItem
		var partID sql.NullInt64
		if err := rows.Scan(&m.ID, &m.EventID, &partID, &m.Title, &m.Notes, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan music item: %w", err)
		}
		m.ServicePartID = int64Ptr(partID)
		out[m.EventID] = append(out[m.EventID], m)
	}
	return out, rows.Err()
}

// CloneForEvent copies another event's music list onto dstEventID.
func (s *MusicStore) CloneForEvent(srcEventID, dstEventID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO music_items (event_id, service_part_id, title, notes)
		 SELECT ?, service_part_id, title, notes FROM music_items WHERE event_id = ?`,
		dstEventID, srcEventID,
	)
	if err != nil {
		return fmt.Errorf("clone music items: %w", err)
	}
	return nil
}

func (s *MusicStore) UpdateItem(id int64, servicePartID *int64, title, notes string) (*model.MusicItem, error) {
	_, err := s.db.Exec(
		`UPDATE music_items
		 SET service_part_id = ?, title = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		nullInt64(servicePartID), title, notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update music item: %w", err)
	}
	return s.GetItem(id)
}

func (s *MusicStore) DeleteItem(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM music_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete music item: %w", err)
	}
	return nil
}
