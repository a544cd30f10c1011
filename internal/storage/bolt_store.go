package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Adda-Baaj/logo-fetcher/internal/domain"

	"github.com/bytedance/sonic"
	bolt "go.etcd.io/bbolt"
)

const (
	lookupBucket     = "lookups"
	expiryValueBytes = 8
)

// boltStore implements a Store backed by BoltDB. Values are an 8-byte
// big-endian expiry followed by the JSON-encoded record; keys are
// time-ordered UUIDv7 strings so cursor order is insertion order.
type boltStore struct {
	db      *bolt.DB
	ttl     time.Duration
	cleanup *cleanupCadence
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (*boltStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(lookupBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{
		db:      db,
		ttl:     opts.TTL,
		cleanup: newCleanupCadence(opts.CleanupInterval, time.Now()),
	}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SaveLookup stores rec until the configured TTL elapses.
func (b *boltStore) SaveLookup(_ context.Context, rec domain.LookupRecord) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := time.Now()
	if err := b.cleanup.run(now, b.sweepExpired); err != nil {
		return err
	}

	rec, err := prepareRecord(rec, now)
	if err != nil {
		return err
	}
	payload, err := sonic.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode lookup: %w", err)
	}

	value := make([]byte, expiryValueBytes+len(payload))
	binary.BigEndian.PutUint64(value, uint64(now.Add(b.ttl).Unix()))
	copy(value[expiryValueBytes:], payload)

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(lookupBucket))
		if bucket == nil {
			return fmt.Errorf("lookup bucket missing")
		}
		return bucket.Put([]byte(rec.ID), value)
	})
}

// RecentLookups returns up to limit unexpired records, newest first.
func (b *boltStore) RecentLookups(_ context.Context, limit int) ([]domain.LookupRecord, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}
	limit = clampLimit(limit)
	now := time.Now()

	var out []domain.LookupRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(lookupBucket))
		if bucket == nil {
			return fmt.Errorf("lookup bucket missing")
		}
		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(out) < limit; k, v = cursor.Prev() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				continue
			}
			var rec domain.LookupRecord
			if err := sonic.Unmarshal(v[expiryValueBytes:], &rec); err != nil {
				return fmt.Errorf("decode lookup %s: %w", k, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// sweepExpired removes expired records to avoid unbounded growth.
func (b *boltStore) sweepExpired(now time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(lookupBucket))
		if bucket == nil {
			return fmt.Errorf("lookup bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// decodeExpiry decodes the expiry prefix of a stored value.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}
