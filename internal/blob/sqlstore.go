package blob

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLStore keeps blobs in the blobs table of the application database.
type SQLStore struct {
	DB *sql.DB
}

// NewSQLStore returns a store backed by db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{DB: db}
}

// Exists reports whether key is stored.
func (s *SQLStore) Exists(ctx context.Context, key string) (bool, error) {
	var count int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM blobs WHERE blob_key = ?`, key,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking blob: %w", err)
	}
	return count > 0, nil
}

// Put stores data under a new key from naming and returns the key.
func (s *SQLStore) Put(ctx context.Context, data []byte, mime string, naming NamingPolicy) (string, error) {
	key := naming(extFor(mime))
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO blobs (blob_key, data, mime) VALUES (?, ?, ?)`,
		key, data, mime,
	)
	if err != nil {
		return "", fmt.Errorf("storing blob: %w", err)
	}
	return key, nil
}

// Get returns the data and MIME type stored under key.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := s.DB.QueryRowContext(ctx,
		`SELECT data, mime FROM blobs WHERE blob_key = ?`, key,
	).Scan(&data, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting blob: %w", err)
	}
	return data, mime, nil
}

// Delete removes key. Returns ErrNotFound if it was not stored.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	result, err := s.DB.ExecContext(ctx, `DELETE FROM blobs WHERE blob_key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting blob: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func extFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	}
	return ""
}
