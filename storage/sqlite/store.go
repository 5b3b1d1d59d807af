// Package sqlite is a news.RecordStore on an embedded SQLite database, for
// single-binary deployments that do not use the hosted backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quilpalta/alpalo/news"
)

// timeLayout is fixed-width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store wraps a SQLite database holding the noticias table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string, opts ...Option) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the listing read while a publish writes; busy_timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS noticias (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    titulo TEXT NOT NULL,
    categoria TEXT NOT NULL,
    cuerpo TEXT NOT NULL DEFAULT '',
    autor TEXT NOT NULL,
    imagen_url TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_noticias_created_at ON noticias(created_at);
`)
	return err
}

// Insert implements news.RecordStore.
func (s *Store) Insert(ctx context.Context, d news.Draft) (news.Item, error) {
	created := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO noticias (titulo, categoria, cuerpo, autor, imagen_url, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.Title, string(d.Category), d.Body, d.Author, d.ImageURL, created.Format(timeLayout))
	if err != nil {
		return news.Item{}, fmt.Errorf("sqlite: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return news.Item{}, fmt.Errorf("sqlite: insert id: %w", err)
	}
	return news.Item{
		ID:        strconv.FormatInt(id, 10),
		Title:     d.Title,
		Category:  d.Category,
		Body:      d.Body,
		Author:    d.Author,
		ImageURL:  d.ImageURL,
		CreatedAt: created.Truncate(time.Microsecond),
	}, nil
}

// ListNews returns all rows ordered by created_at descending.
func (s *Store) ListNews(ctx context.Context) ([]news.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, titulo, categoria, cuerpo, autor, imagen_url, created_at FROM noticias ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []news.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetNews returns a single row by id. Ids that are not integers cannot match.
func (s *Store) GetNews(ctx context.Context, id string) (news.Item, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return news.Item{}, news.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, titulo, categoria, cuerpo, autor, imagen_url, created_at FROM noticias WHERE id = ?`, n)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return news.Item{}, news.ErrNotFound
	}
	return it, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(sc scanner) (news.Item, error) {
	var (
		id                                       int64
		title, category, body, author, image, ts string
	)
	if err := sc.Scan(&id, &title, &category, &body, &author, &image, &ts); err != nil {
		return news.Item{}, err
	}
	created, err := parseTime(ts)
	if err != nil {
		return news.Item{}, fmt.Errorf("sqlite: row %d created_at %q: %w", id, ts, err)
	}
	return news.Item{
		ID:        strconv.FormatInt(id, 10),
		Title:     title,
		Category:  news.Category(category),
		Body:      body,
		Author:    author,
		ImageURL:  image,
		CreatedAt: created,
	}, nil
}

func parseTime(ts string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", ts)
}
