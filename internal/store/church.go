package store

import (
	"database/sql"
	"fmt"

	"github.com/cadenza-app/cadenza/internal/model"
)

type ChurchStore struct {
	db DBTX
}

func NewChurchStore(db DBTX) *ChurchStore {
	return &ChurchStore{db: db}
}

func (s *ChurchStore) Create(name, timezone string) (*model.Church, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	result, err := s.db.Exec(
		`INSERT INTO churches (name, timezone) VALUES (?, ?)`,
		name, timezone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert church: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChurchStore) GetByID(id int64) (*model.Church, error) {
	var c model.Church
	err := s.db.QueryRow(
		`SELECT id, name, timezone, created_at, updated_at FROM churches WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Name, &c.Timezone, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query church: %w", err)
	}
	return &c, nil
}

func (s *ChurchStore) UpdateTimezone(id int64, timezone string) error {
	_, err := s.db.Exec(
		`UPDATE churches SET timezone = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		timezone, id,
	)
	if err != nil {
		return fmt.Errorf("update church timezone: %w", err)
	}
	return nil
}
