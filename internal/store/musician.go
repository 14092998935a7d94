package store

import (
	"database/sql"
	"fmt"

	"github.com/cadenza-app/cadenza/internal/model"
)

type MusicianStore struct {
	db DBTX
}

func NewMusicianStore(db DBTX) *MusicianStore {
	return &MusicianStore{db: db}
}

func (s *MusicianStore) Create(churchID int64, firstName, lastName, email, phone string) (*model.Musician, error) {
	result, err := s.db.Exec(
		`INSERT INTO musicians (church_id, first_name, last_name, email, phone)
		 VALUES (?, ?, ?, ?, ?)`,
		churchID, firstName, lastName, email, phone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert musician: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MusicianStore) GetByID(id int64) (*model.Musician, error) {
	var m model.Musician
	err := s.db.QueryRow(
		`SELECT id, church_id, first_name, last_name, email, phone, created_at, updated_at
		 FROM musicians WHERE id = ?`,
		id,
	).Scan(&m.ID, &m.ChurchID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query musician: %w", err)
	}
	return &m, nil
}

func (s *MusicianStore) ListByChurch(churchID int64) ([]model.Musician, error) {
	rows, err := s.db.Query(
		`SELECT id, church_id, first_name, last_name, email, phone, created_at, updated_at
		 FROM musicians WHERE church_id = ? ORDER BY last_name, first_name, id`,
		churchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query musicians: %w", err)
	}
	defer rows.Close()

	var out []model.Musician
	for rows.Next() {
		var m model.Musician
		if err := rows.Scan(&m.ID, &m.ChurchID, &m.FirstName, &m.LastName, &m.Email, &m.Phone, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan musician: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListByIDs returns the named musicians keyed by id.
func (s *MusicianStore) ListByIDs(ids []int64) (map[int64]model.Musician, error) {
	out := make(map[int64]model.Musician, len(ids))
	for _, id := range ids {
		m, err := s.GetByID(id)
		if err != nil {
			return nil, err
		}
		if m != nil {
			out[id] = *m
		}
	}
	return out, nil
}

func (s *MusicianStore) Update(id int64, firstName, lastName, email, phone string) (*model.Musician, error) {
	_, err := s.db.Exec(
		`UPDATE musicians
		 SET first_name = ?, last_name = ?, email = ?, phone = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		firstName, lastName, email, phone, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update musician: %w", err)
	}
	return s.GetByID(id)
}

func (s *MusicianStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM musicians WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete musician: %w", err)
	}
	return nil
}
