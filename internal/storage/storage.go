package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"

	"github.com/google/uuid"
)

// Package storage keeps a bounded history of completed logo lookups.

// Store records lookup summaries and lists the most recent ones.
type Store interface {
	Close() error
	SaveLookup(ctx context.Context, rec domain.LookupRecord) error
	RecentLookups(ctx context.Context, limit int) ([]domain.LookupRecord, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

const (
	TypeNone   = "none"
	TypeBBolt  = "bbolt"
	TypeSQLite = "sqlite"

	defaultTTL             = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
	defaultRecentLimit     = 20
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", TypeNone, "disabled":
		return noopStore{}, nil
	case TypeBBolt:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	case TypeSQLite:
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return openSQLite(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

// prepareRecord fills the id and timestamp when the caller left them empty.
func prepareRecord(rec domain.LookupRecord, now time.Time) (domain.LookupRecord, error) {
	if strings.TrimSpace(rec.ID) == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return rec, fmt.Errorf("generate lookup id: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	return limit
}

// cleanupCadence gates expensive expiry sweeps to once per interval.
type cleanupCadence struct {
	mu       sync.Mutex
	last     atomic.Int64
	interval time.Duration
}

func newCleanupCadence(interval time.Duration, now time.Time) *cleanupCadence {
	c := &cleanupCadence{interval: interval}
	c.last.Store(now.Unix())
	return c
}

// run invokes sweep when the interval has elapsed since the last successful sweep.
func (c *cleanupCadence) run(now time.Time, sweep func(time.Time) error) error {
	last := time.Unix(c.last.Load(), 0)
	if now.Sub(last) < c.interval {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	last = time.Unix(c.last.Load(), 0)
	if now.Sub(last) < c.interval {
		return nil
	}
	if err := sweep(now); err != nil {
		return err
	}
	c.last.Store(now.Unix())
	return nil
}

type noopStore struct{}

func (noopStore) Close() error                                          { return nil }
func (noopStore) SaveLookup(context.Context, domain.LookupRecord) error { return nil }
func (noopStore) RecentLookups(context.Context, int) ([]domain.LookupRecord, error) {
	return nil, nil
}
