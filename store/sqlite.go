package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SqliteStore keeps all collections in a private in-memory SQLite database.
// Like MemoryStore, nothing outlives the process.
//
// Tables:
//
//	documents(seq, kind, doc_id, data)  seq gives insertion order
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSqliteStore opens a fresh in-memory database and creates its schema.
func NewSqliteStore() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database, so the pool
	// must never hold more than one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		doc_id TEXT,
		data TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_documents_kind_id ON documents(kind, doc_id, seq)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents index: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) List(ctx context.Context, kind Kind) ([]Document, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, "SELECT data FROM documents WHERE kind = ? ORDER BY seq", string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Document{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := decodeDocument([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("corrupt %s row: %w", kind, err)
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}

func (s *SqliteStore) Get(ctx context.Context, kind Kind, id string) (Document, error) {
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE kind = ? AND doc_id = ? ORDER BY seq LIMIT 1",
		string(kind), id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeDocument([]byte(raw))
}

func (s *SqliteStore) Insert(ctx context.Context, kind Kind, doc Document) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insert(ctx, kind, doc)
}

func (s *SqliteStore) InsertUnique(ctx context.Context, kind Kind, doc Document) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := doc.ID(); ok {
		var n int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM documents WHERE kind = ? AND doc_id = ?",
			string(kind), id,
		).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateID
		}
	}
	return s.insert(ctx, kind, doc)
}

func (s *SqliteStore) insert(ctx context.Context, kind Kind, doc Document) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var docID any
	if id, ok := doc.ID(); ok {
		docID = id
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (kind, doc_id, data) VALUES (?, ?, ?)",
		string(kind), docID, string(b),
	)
	return err
}
