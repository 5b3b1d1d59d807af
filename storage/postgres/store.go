// Package postgres is a news.RecordStore over a Postgres connection pool. It
// speaks to the same noticias table the hosted backend exposes, so it can be
// pointed straight at that database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quilpalta/alpalo/news"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements news.RecordStore.
type Store struct {
	db     DB
	logger *zap.Logger
}

// Connect opens a pool for dsn and pings it.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: open pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	logger.Info("connected to postgres", zap.String("host", cfg.ConnConfig.Host), zap.String("database", cfg.ConnConfig.Database))
	return pool, nil
}

// New wraps db.
func New(db DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

const schema = `
CREATE TABLE IF NOT EXISTS noticias (
    id bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    titulo text NOT NULL,
    categoria text NOT NULL,
    cuerpo text NOT NULL DEFAULT '',
    autor text NOT NULL,
    imagen_url text NOT NULL DEFAULT '',
    created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_noticias_created_at ON noticias (created_at DESC);
`

// Migrate creates the noticias table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}

const columns = `id, titulo, categoria, cuerpo, autor, imagen_url, created_at`

// Insert implements news.RecordStore. created_at comes from the column default.
func (s *Store) Insert(ctx context.Context, d news.Draft) (news.Item, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO noticias (titulo, categoria, cuerpo, autor, imagen_url) VALUES ($1, $2, $3, $4, $5) RETURNING `+columns,
		d.Title, string(d.Category), d.Body, d.Author, d.ImageURL)
	it, err := scanItem(row)
	if err != nil {
		s.logger.Error("insert failed", zap.String("table", news.Table), zap.Error(err))
		return news.Item{}, fmt.Errorf("postgres: insert: %w", err)
	}
	return it, nil
}

// ListNews implements news.RecordStore.
func (s *Store) ListNews(ctx context.Context) ([]news.Item, error) {
	rows, err := s.db.Query(ctx, `SELECT `+columns+` FROM noticias ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	var items []news.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	return items, nil
}

// GetNews implements news.RecordStore.
func (s *Store) GetNews(ctx context.Context, id string) (news.Item, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return news.Item{}, news.ErrNotFound
	}
	it, err := scanItem(s.db.QueryRow(ctx, `SELECT `+columns+` FROM noticias WHERE id = $1`, n))
	if errors.Is(err, pgx.ErrNoRows) {
		return news.Item{}, news.ErrNotFound
	}
	if err != nil {
		return news.Item{}, fmt.Errorf("postgres: get %d: %w", n, err)
	}
	return it, nil
}

func scanItem(row pgx.Row) (news.Item, error) {
	var (
		id                                   int64
		title, category, body, author, image string
		created                              time.Time
	)
	if err := row.Scan(&id, &title, &category, &body, &author, &image, &created); err != nil {
		return news.Item{}, err
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
