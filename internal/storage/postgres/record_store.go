// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool for listing rows.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// RecordStore persists listings in Postgres. Append inserts rows without an
// identity constraint, matching the JSON store's merge semantics; row-level
// serialization comes from the database itself.
type RecordStore struct {
	pool  dbPool
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "listings"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewRecordStoreWithPool(pool dbPool, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "listings"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the listings table when absent.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	company TEXT NOT NULL,
	location TEXT NOT NULL,
	classification TEXT NOT NULL,
	subcategory TEXT NOT NULL,
	job_url TEXT NOT NULL,
	posted_date TEXT,
	salary TEXT,
	job_type TEXT,
	description TEXT,
	scraped_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Append inserts one row per listing.
func (s *RecordStore) Append(ctx context.Context, listings []scraper.Listing) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	title,
	company,
	location,
	classification,
	subcategory,
	job_url,
	posted_date,
	salary,
	job_type,
	description,
	scraped_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`, s.table)

	for _, l := range listings {
		args := []any{
			l.Title,
			l.Company,
			l.Location,
			l.Classification,
			l.Subcategory,
			l.URL,
			l.PostedDate,
			l.Salary,
			l.JobType,
			l.Description,
			l.ScrapedAt,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert listing %s: %w", l.URL, err)
		}
	}
	return nil
}

// LoadAll returns every stored listing, oldest first.
func (s *RecordStore) LoadAll(ctx context.Context) ([]scraper.Listing, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("record store is not configured")
	}
	query := fmt.Sprintf(`
SELECT title, company, location, classification, subcategory,
	job_url, posted_date, salary, job_type, description, scraped_at
FROM %s ORDER BY scraped_at ASC, id ASC`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []scraper.Listing
	for rows.Next() {
		var l scraper.Listing
		if err := rows.Scan(
			&l.Title,
			&l.Company,
			&l.Location,
			&l.Classification,
			&l.Subcategory,
			&l.URL,
			&l.PostedDate,
			&l.Salary,
			&l.JobType,
			&l.Description,
			&l.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

// PruneOlderThan deletes listings captured before cutoff and returns the
// number removed.
func (s *RecordStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("record store is not configured")
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE scraped_at < $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune listings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
