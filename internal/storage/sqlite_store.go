package storage

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"

	"github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// sqliteStore implements a Store on a local SQLite file.
type sqliteStore struct {
	db      *sqlx.DB
	ttl     time.Duration
	cleanup *cleanupCadence
}

type lookupRow struct {
	ID              string `db:"id"`
	Domain          string `db:"domain"`
	MaxAlternatives int    `db:"max_alternatives"`
	IncludeScraping bool   `db:"include_scraping"`
	Labels          string `db:"labels"`
	VectorURLs      string `db:"vector_urls"`
	CreatedAt       int64  `db:"created_at"`
	ExpiresAt       int64  `db:"expires_at"`
}

// openSQLite connects to path and applies pending migrations.
func openSQLite(path string, opts Options) (*sqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite", fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("connecting to db : %w", err)
	}
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting dialect for migrations : %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying migration : %w", err)
	}

	return &sqliteStore{
		db:      db,
		ttl:     opts.TTL,
		cleanup: newCleanupCadence(opts.CleanupInterval, time.Now()),
	}, nil
}

// Close terminates the database connection.
func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing sqlite store : %w", err)
	}
	return nil
}

// SaveLookup inserts rec, replacing any record with the same id.
func (s *sqliteStore) SaveLookup(ctx context.Context, rec domain.LookupRecord) error {
	if s == nil || s.db == nil {
		return nil
	}

	now := time.Now()
	if err := s.cleanup.run(now, func(t time.Time) error { return s.sweepExpired(ctx, t) }); err != nil {
		return err
	}

	rec, err := prepareRecord(rec, now)
	if err != nil {
		return err
	}
	row, err := toRow(rec, now.Add(s.ttl))
	if err != nil {
		return err
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO lookups
			(id, domain, max_alternatives, include_scraping, labels, vector_urls, created_at, expires_at)
		VALUES
			(:id, :domain, :max_alternatives, :include_scraping, :labels, :vector_urls, :created_at, :expires_at)`, row)
	if err != nil {
		return fmt.Errorf("insert lookup : %w", err)
	}
	return nil
}

// RecentLookups returns up to limit unexpired records, newest first.
func (s *sqliteStore) RecentLookups(ctx context.Context, limit int) ([]domain.LookupRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	var rows []lookupRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, domain, max_alternatives, include_scraping, labels, vector_urls, created_at, expires_at
		FROM lookups
		WHERE expires_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, time.Now().UnixNano(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("select lookups : %w", err)
	}

	out := make([]domain.LookupRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *sqliteStore) sweepExpired(ctx context.Context, now time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM lookups WHERE expires_at <= ?`, now.UnixNano()); err != nil {
		return fmt.Errorf("delete expired lookups : %w", err)
	}
	return nil
}

func toRow(rec domain.LookupRecord, expires time.Time) (lookupRow, error) {
	labels, err := sonic.MarshalString(nonNil(rec.Labels))
	if err != nil {
		return lookupRow{}, fmt.Errorf("encode labels: %w", err)
	}
	vectors, err := sonic.MarshalString(nonNil(rec.VectorURLs))
	if err != nil {
		return lookupRow{}, fmt.Errorf("encode vector urls: %w", err)
	}
	return lookupRow{
		ID:              rec.ID,
		Domain:          rec.Domain,
		MaxAlternatives: rec.MaxAlternatives,
		IncludeScraping: rec.IncludeScraping,
		Labels:          labels,
		VectorURLs:      vectors,
		CreatedAt:       rec.CreatedAt.UnixNano(),
		ExpiresAt:       expires.UnixNano(),
	}, nil
}

func (r lookupRow) record() (domain.LookupRecord, error) {
	rec := domain.LookupRecord{
		ID:              r.ID,
		Domain:          r.Domain,
		MaxAlternatives: r.MaxAlternatives,
		IncludeScraping: r.IncludeScraping,
		CreatedAt:       time.Unix(0, r.CreatedAt).UTC(),
	}
	if err := sonic.UnmarshalString(r.Labels, &rec.Labels); err != nil {
		return rec, fmt.Errorf("decode labels for %s: %w", r.ID, err)
	}
	if err := sonic.UnmarshalString(r.VectorURLs, &rec.VectorURLs); err != nil {
		return rec, fmt.Errorf("decode vector urls for %s: %w", r.ID, err)
	}
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
