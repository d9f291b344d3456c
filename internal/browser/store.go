package browser

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNoFocusedTab   = errors.New("browser: no focused tab")
	ErrTabNotFound    = errors.New("browser: tab not found")
	ErrWindowNotFound = errors.New("browser: window not found")
)

// Tab is one stored tab.
type Tab struct {
	ID        string    `json:"id"`
	WindowID  string    `json:"window_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	InnerText string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	FocusedAt time.Time `json:"focused_at"`
}

// Window is one stored browser window.
type Window struct {
	ID     string
	Width  int
	Height int
}

// Store keeps windows and tabs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore opens the database at path. ":memory:" keeps everything in
// process.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps an in-memory database shared and serializes writes.
	db.SetMaxOpenConns(1)
	return &Store{db: db, path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Init applies pragmas and schema.
func (s *Store) Init(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("browser: nil store")
	}
	stmts := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
		`CREATE TABLE IF NOT EXISTS windows (
			id TEXT PRIMARY KEY,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tabs (
			id TEXT PRIMARY KEY,
			window_id TEXT NOT NULL REFERENCES windows(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			inner_text TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			focused_at INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tabs_focused ON tabs(focused_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("browser: apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) PutWindow(ctx context.Context, w Window) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO windows(id, width, height, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET width = excluded.width, height = excluded.height;
	`, w.ID, w.Width, w.Height, time.Now().UnixMilli())
	return err
}

func (s *Store) GetWindow(ctx context.Context, id string) (Window, error) {
	var w Window
	err := s.db.QueryRowContext(ctx,
		`SELECT id, width, height FROM windows WHERE id = ?;`, id,
	).Scan(&w.ID, &w.Width, &w.Height)
	if errors.Is(err, sql.ErrNoRows) {
		return Window{}, fmt.Errorf("%w: %s", ErrWindowNotFound, id)
	}
	return w, err
}

func (s *Store) InsertTab(ctx context.Context, t Tab) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tabs(id, window_id, url, title, inner_text, created_at, focused_at)
		VALUES (?, ?, ?, ?, ?, ?, ?);
	`, t.ID, t.WindowID, t.URL, t.Title, t.InnerText, t.CreatedAt.UnixMilli(), unixMilliOrZero(t.FocusedAt))
	return err
}

// FocusTab marks id as the most recently focused tab.
func (s *Store) FocusTab(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tabs SET focused_at = ? WHERE id = ?;`, at.UnixMilli(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTabNotFound, id)
	}
	return nil
}

// FocusedTab returns the most recently focused tab.
func (s *Store) FocusedTab(ctx context.Context) (Tab, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, window_id, url, title, inner_text, created_at, focused_at
		FROM tabs WHERE focused_at > 0
		ORDER BY focused_at DESC, rowid DESC LIMIT 1;
	`)
	t, err := scanTab(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Tab{}, ErrNoFocusedTab
	}
	return t, err
}

func (s *Store) ListTabs(ctx context.Context) ([]Tab, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, window_id, url, title, inner_text, created_at, focused_at
		FROM tabs ORDER BY created_at, rowid;
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tab
	for rows.Next() {
		t, err := scanTab(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTab(row rowScanner) (Tab, error) {
	var (
		t                  Tab
		created, focusedAt int64
	)
	if err := row.Scan(&t.ID, &t.WindowID, &t.URL, &t.Title, &t.InnerText, &created, &focusedAt); err != nil {
		return Tab{}, err
	}
	t.CreatedAt = time.UnixMilli(created)
	if focusedAt > 0 {
		t.FocusedAt = time.UnixMilli(focusedAt)
	}
	return t, nil
}

func unixMilliOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
