package store

import (
	"database/sql"
	"fmt"

	"github.com/cadenza-app/cadenza/internal/model"
)

type GroupStore struct {
	db DBTX
}

func NewGroupStore(db DBTX) *GroupStore {
	return &GroupStore{db: db}
}

func (s *GroupStore) Create(churchID int64, name string) (*model.Group, error) {
	result, err := s.db.Exec(
		`INSERT INTO groups (church_id, name) VALUES (?, ?)`,
		churchID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert group: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *GroupStore) GetByID(id int64) (*model.Group, error) {
	var g model.Group
	err := s.db.QueryRow(
		`SELECT id, church_id, name, created_at, updated_at FROM groups WHERE id = ?`,
		id,
	).Scan(&g.ID, &g.ChurchID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query group: %w", err)
	}
	return &g, nil
}

func (s *GroupStore) ListByChurch(churchID int64) ([]model.Group, error) {
	rows, err := s.db.Query(
		`SELECT id, church_id, name, created_at, updated_at
		 FROM groups WHERE church_id = ? ORDER BY name, id`,
		churchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer rows.Close()

	var out []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.ChurchID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *GroupStore) AddMember(groupID, musicianID int64) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO group_members (group_id, musician_id) VALUES (?, ?)`,
		groupID, musicianID,
	)
	if err != nil {
		return fmt.Errorf("insert group member: %w", err)
	}
	return nil
}

func (s *GroupStore) RemoveMember(groupID, musicianID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM group_members WHERE group_id = ? AND musician_id = ?`,
		groupID, musicianID,
	)
	if err != nil {
		return fmt.Errorf("delete group member: %w", err)
	}
	return nil
}

// MemberIDs returns the musician ids in a group, in join order.
func (s *GroupStore) MemberIDs(groupID int64) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT musician_id FROM group_members WHERE group_id = ? ORDER BY id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *GroupStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM groups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return nil
}
