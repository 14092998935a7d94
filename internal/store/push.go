package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/cadenza-app/cadenza/internal/model"
)

type PushStore struct {
	db DBTX
}

func NewPushStore(db DBTX) *PushStore {
	return &PushStore{db: db}
}

func (s *PushStore) Create(churchID int64, musicianID *int64, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	result, err := s.db.Exec(
		`INSERT INTO push_subscriptions (church_id, musician_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key`,
		churchID, nullInt64(musicianID), endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert push subscription: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PushStore) GetByID(id int64) (*model.PushSubscription, error) {
	var p model.PushSubscription
	var musicianID sql.NullInt64
	err := s.db.QueryRow(
		`SELECT id, church_id, musician_id, endpoint, p256dh_key, auth_key, device_name, created_at
		 FROM push_subscriptions WHERE id = ?`,
		id,
	).Scan(&p.ID, &p.ChurchID, &musicianID, &p.Endpoint, &p.P256dhKey, &p.AuthKey, &p.DeviceName, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query push subscription: %w", err)
	}
	p.MusicianID = int64Ptr(musicianID)
	return &p, nil
}

func (s *PushStore) list(query string, args ...any) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query push subscriptions: %w", err)
	}
	defer rows.Close()

	var out []model.PushSubscription
	for rows.Next() {
		var p model.PushSubscription
		var musicianID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.ChurchID, &musicianID, &p.Endpoint, &p.P256dhKey, &p.AuthKey, &p.DeviceName, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		p.MusicianID = int64Ptr(musicianID)
		out = append(out, p)
	}
	return out, rows.Err()
}

const pushColumns = `id, church_id, musician_id, endpoint, p256dh_key, auth_key, device_name, created_at`

func (s *PushStore) ListByChurch(churchID int64) ([]model.PushSubscription, error) {
	return s.list(
		`SELECT `+pushColumns+` FROM push_subscriptions WHERE church_id = ? ORDER BY id`,
		churchID,
	)
}

// ListByMusicians returns push subscriptions belonging to any of the given
// musicians.
func (s *PushStore) ListByMusicians(musicianIDs []int64) ([]model.PushSubscription, error) {
	if len(musicianIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(musicianIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(musicianIDs))
	for i, id := range musicianIDs {
		args[i] = id
	}
	return s.list(
		`SELECT `+pushColumns+` FROM push_subscriptions
		 WHERE musician_id IN (`+placeholders+`) ORDER BY id`,
		args...,
	)
}

func (s *PushStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// DeleteByEndpoint removes a subscription the push service reported gone.
func (s *PushStore) DeleteByEndpoint(endpoint string) error {
	if _, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint); err != nil {
		return fmt.Errorf("delete push subscription by endpoint: %w", err)
	}
	return nil
}
