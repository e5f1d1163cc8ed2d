package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLService is a SQLite-backed session service. Paused plans survive
// process restarts; the whole context is serialized as one JSON document.
type SQLService struct {
	db *sql.DB
}

const createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(255) PRIMARY KEY,
    data TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

// NewSQLService opens (or creates) a SQLite session store at path.
func NewSQLService(path string) (*SQLService, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	// SQLite allows a single writer; serialize access through one conn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createSessionsTableSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	return &SQLService{db: db}, nil
}

func (s *SQLService) Get(ctx context.Context, id string) (*Context, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	sess := NewContext(id)
	if err := json.Unmarshal([]byte(data), sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return sess, nil
}

func (s *SQLService) GetOrCreate(ctx context.Context, id string) (*Context, error) {
	sess, err := s.Get(ctx, id)
	if err == nil {
		return sess, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	sess = NewContext(id)
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLService) Save(ctx context.Context, sess *Context) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.ID(), err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO sessions (id, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		sess.ID(), string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID(), err)
	}
	return nil
}

func (s *SQLService) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (s *SQLService) Close() error {
	return s.db.Close()
}

var _ Service = (*SQLService)(nil)
