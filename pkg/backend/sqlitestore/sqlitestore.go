// Package sqlitestore implements the backend contract on a single SQLite
// database file. Useful where a directory fan-out is awkward (tests,
// embedded deployments) while keeping identical semantics to filestore.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/strata-vcs/strata/pkg/object"
)

// Store is a SQLite-backed Backend.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a store at path and ensures the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	// One writer at a time keeps the serialized-write discipline the rest
	// of the core assumes within a process.
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS objects (
			kind    TEXT NOT NULL,
			id      TEXT NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (kind, id)
		);`,
		`CREATE TABLE IF NOT EXISTS op_heads (
			id TEXT PRIMARY KEY
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return nil
}

// WriteObject stores a payload, idempotently, and returns its content id.
func (s *Store) WriteObject(ctx context.Context, kind object.Kind, payload []byte) (object.ID, error) {
	id := object.HashPayload(kind, payload)
	// An empty slice binds as NULL, which the NOT NULL column rejects and
	// INSERT OR IGNORE then silently drops. Empty payloads are legal (the
	// empty view is one), so bind those as an explicit empty blob.
	var err error
	if len(payload) == 0 {
		_, err = s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO objects (kind, id, payload) VALUES (?, ?, zeroblob(0))`,
			string(kind), string(id))
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO objects (kind, id, payload) VALUES (?, ?, ?)`,
			string(kind), string(id), payload)
	}
	if err != nil {
		return "", fmt.Errorf("object write %s: %w", id.Short(12), err)
	}
	return id, nil
}

// ReadObject retrieves a payload by id, re-verifying the content hash.
func (s *Store) ReadObject(ctx context.Context, kind object.Kind, id object.ID) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM objects WHERE kind = ? AND id = ?`,
		string(kind), string(id)).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, &object.NotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("object read %s: %w", id.Short(12), err)
	}
	if object.HashPayload(kind, payload) != id {
		return nil, &object.CorruptError{Kind: kind, ID: id, Reason: "content hash mismatch"}
	}
	return payload, nil
}

// HasObject reports whether the store contains the object.
func (s *Store) HasObject(ctx context.Context, kind object.Kind, id object.ID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM objects WHERE kind = ? AND id = ?`,
		string(kind), string(id)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("object stat %s: %w", id.Short(12), err)
	}
	return true, nil
}

// OpHeads lists current operation heads, sorted by id.
func (s *Store) OpHeads(ctx context.Context) ([]object.ID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM op_heads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list op heads: %w", err)
	}
	defer rows.Close()

	var heads []object.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list op heads: scan: %w", err)
		}
		heads = append(heads, object.ID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list op heads: %w", err)
	}
	return heads, nil
}

// UpdateOpHeads adds and removes head markers in one transaction.
func (s *Store) UpdateOpHeads(ctx context.Context, add, remove []object.ID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update op heads: begin: %w", err)
	}
	for _, id := range add {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO op_heads (id) VALUES (?)`, string(id)); err != nil {
			tx.Rollback()
			return fmt.Errorf("add op head %s: %w", id.Short(12), err)
		}
	}
	for _, id := range remove {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM op_heads WHERE id = ?`, string(id)); err != nil {
			tx.Rollback()
			return fmt.Errorf("remove op head %s: %w", id.Short(12), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update op heads: commit: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }
