package store

import (
	"database/sql"
	"fmt"

	"github.com/cadenza-app/cadenza/internal/model"
)

type DocumentStore struct {
	db DBTX
}

func NewDocumentStore(db DBTX) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Create(eventID int64, filename, storageKey, contentType string, sizeBytes int64) (*model.Document, error) {
	result, err := s.db.Exec(
		`INSERT INTO documents (event_id, filename, storage_key, content_type, size_bytes)
		 VALUES (?, ?, ?, ?, ?)`,
		eventID, filename, storageKey, contentType, sizeBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *DocumentStore) GetByID(id int64) (*model.Document, error) {
	var d model.Document
	err := s.db.QueryRow(
		`SELECT id, event_id, filename, storage_key, content_type, size_bytes, created_at
		 FROM documents WHERE id = ?`,
		id,
	).Scan(&d.ID, &d.EventID, &d.Filename, &d.StorageKey, &d.ContentType, &d.SizeBytes, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	return &d, nil
}

func (s *DocumentStore) ListByEvent(eventID int64) ([]model.Document, error) {
	rows, err := s.db.Query(
		`SELECT id, event_id, filename, storage_key, content_type, size_bytes, created_at
		 FROM documents WHERE event_id = ? ORDER BY filename, id`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.EventID, &d.Filename, &d.StorageKey, &d.ContentType, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DocumentStore) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
