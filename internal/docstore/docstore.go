// Package docstore stores event documents (scores, bulletins, rehearsal
// notes) in S3-compatible storage and hands out time-limited URLs. Feeds
// never embed storage URLs directly; they link to the event's document page,
// which resolves fresh presigned URLs on view.
package docstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cadenza-app/cadenza/internal/backup"
)

const defaultTTL = 15 * time.Minute

// Store wraps an S3 bucket holding event documents.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// New builds a document store from S3 configuration. Returns nil when the
// bucket is not configured; callers treat a nil store as "documents
// disabled".
func New(cfg backup.S3Config) *Store {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil
	}
	client := backup.NewS3Client(cfg)
	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.Bucket,
	}
}

// Key builds the storage key for an event document.
func Key(eventID int64, filename string) string {
	return fmt.Sprintf("documents/%d/%s", eventID, filename)
}

// Upload stores a document body under the given key.
func (s *Store) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("upload document: %w", err)
	}
	return nil
}

// Delete removes a stored document.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// TimeLimitedURL presigns a download link for the key. forceDownload sets a
// content-disposition so browsers save instead of rendering inline. A zero
// ttl falls back to the default.
func (s *Store) TimeLimitedURL(ctx context.Context, key string, ttl time.Duration, forceDownload bool, filename string) (string, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if forceDownload {
		input.ResponseContentDisposition = aws.String(fmt.Sprintf("attachment; filename=%q", filename))
	}

	req, err := s.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign document url: %w", err)
	}
	return req.URL, nil
}
