package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cadenza-app/cadenza/internal/model"
)

type SubscriptionStore struct {
	db DBTX
}

func NewSubscriptionStore(db DBTX) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionColumns = `id, church_id, name, token, filter_type, filter_ids,
	window_start, window_end, needs_update, last_updated, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*model.Subscription, error) {
	var s model.Subscription
	var filterType, filterIDs string
	var windowStart, windowEnd, lastUpdated sql.NullTime
	var needsUpdate int

	err := row.Scan(
		&s.ID, &s.ChurchID, &s.Name, &s.Token, &filterType, &filterIDs,
		&windowStart, &windowEnd, &needsUpdate, &lastUpdated, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.FilterType = model.FilterType(filterType)
	if err := json.Unmarshal([]byte(filterIDs), &s.FilterIDs); err != nil {
		return nil, fmt.Errorf("decode filter ids: %w", err)
	}
	if windowStart.Valid {
		t := windowStart.Time
		s.WindowStart = &t
	}
	if windowEnd.Valid {
		t := windowEnd.Time
		s.WindowEnd = &t
	}
	if lastUpdated.Valid {
		t := lastUpdated.Time
		s.LastUpdated = &t
	}
	s.NeedsUpdate = needsUpdate != 0
	return &s, nil
}

func (s *SubscriptionStore) Create(sub *model.Subscription) (*model.Subscription, error) {
	if sub.FilterType.RequiresIDs() && len(sub.FilterIDs) == 0 {
		return nil, fmt.Errorf("filter type %s requires at least one id", sub.FilterType)
	}
	ids, err := json.Marshal(sub.FilterIDs)
	if err != nil {
		return nil, fmt.Errorf("encode filter ids: %w", err)
	}
	if sub.FilterIDs == nil {
		ids = []byte("[]")
	}

	var windowStart, windowEnd any
	if sub.WindowStart != nil {
		windowStart = sub.WindowStart.UTC()
	}
	if sub.WindowEnd != nil {
		windowEnd = sub.WindowEnd.UTC()
	}

	result, err := s.db.Exec(
		`INSERT INTO subscriptions (church_id, name, token, filter_type, filter_ids, window_start, window_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.ChurchID, sub.Name, sub.Token, string(sub.FilterType), string(ids), windowStart, windowEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("insert subscription: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *SubscriptionStore) GetByID(id int64) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query subscription: %w", err)
	}
	return sub, nil
}

// GetByToken resolves a feed token. Unknown tokens return (nil, nil); the
// caller turns that into a plain 404 without hinting whether the token ever
// existed.
func (s *SubscriptionStore) GetByToken(token string) (*model.Subscription, error) {
	sub, err := scanSubscription(s.db.QueryRow(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE token = ?`, token,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query subscription by token: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) ListByChurch(churchID int64) ([]model.Subscription, error) {
	rows, err := s.db.Query(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE church_id = ? ORDER BY id`,
		churchID,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

// Regenerate replaces the subscription's token. The old token stops
// resolving the moment this commits.
func (s *SubscriptionStore) Regenerate(id int64, newToken string) (*model.Subscription, error) {
	result, err := s.db.Exec(
		`UPDATE subscriptions SET token = ? WHERE id = ?`,
		newToken, id,
	)
	if err != nil {
		return nil, fmt.Errorf("regenerate token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

// MarkDirtyForChurch flags every subscription in scope after an event
// mutation. Feeds regenerate lazily on their next fetch.
func (s *SubscriptionStore) MarkDirtyForChurch(churchID int64) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET needs_update = 1 WHERE church_id = ?`,
		churchID,
	)
	if err != nil {
		return fmt.Errorf("mark subscriptions dirty: %w", err)
	}
	return nil
}

// ClearDirty records a successful feed regeneration.
func (s *SubscriptionStore) ClearDirty(id int64, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET needs_update = 0, last_updated = ? WHERE id = ?`,
		at.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("clear subscription dirty flag: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}
