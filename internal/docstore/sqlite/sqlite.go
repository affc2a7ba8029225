// Package sqlite is the durable single-node document store backend. Each
// (collection, user) pair is one row carrying the JSON body and its version;
// the compare-and-swap write is a conditional UPDATE.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kalori/internal/docstore"

	_ "modernc.org/sqlite"
)

// Store implements docstore.Store on a local SQLite database.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Read implements docstore.Store.
func (s *Store) Read(ctx context.Context, collection, userID string) (docstore.Document, docstore.Version, error) {
	var (
		body    []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, version FROM documents WHERE collection = ? AND user_id = ?`,
		collection, userID,
	).Scan(&body, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read %s/%s: %v", docstore.ErrUnavailable, collection, userID, err)
	}
	return body, docstore.Version(version), nil
}

// Write implements docstore.Store. The version check and the write happen in
// one statement, so two concurrent writers can never both succeed.
func (s *Store) Write(ctx context.Context, collection, userID string, doc docstore.Document, expected docstore.Version) (docstore.Version, error) {
	now := time.Now().UTC()

	if expected == 0 {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO documents (collection, user_id, body, version, updated_at)
			 VALUES (?, ?, ?, 1, ?)`,
			collection, userID, []byte(doc), now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, docstore.ErrConflict
			}
			return 0, fmt.Errorf("%w: create %s/%s: %v", docstore.ErrUnavailable, collection, userID, err)
		}
		return 1, nil
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET body = ?, version = version + 1, updated_at = ?
		 WHERE collection = ? AND user_id = ? AND version = ?`,
		[]byte(doc), now, collection, userID, int64(expected),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: update %s/%s: %v", docstore.ErrUnavailable, collection, userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", docstore.ErrUnavailable, err)
	}
	if affected == 0 {
		return 0, docstore.ErrConflict
	}
	return expected + 1, nil
}

// isUniqueViolation detects a primary-key collision on insert. modernc.org/sqlite
// surfaces SQLITE_CONSTRAINT through the error string, there is no typed code.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}
