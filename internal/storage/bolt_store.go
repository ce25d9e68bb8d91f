package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	reportBucket = "reports"
	expiryBytes  = 8
)

var errBucketMissing = errors.New("report bucket missing")

// boltStore is a Store backed by BoltDB. Values are an 8 byte big-endian expiry followed
// by the report JSON.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	reportTTL       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

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
		_, err := tx.CreateBucketIfNotExists([]byte(reportBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		reportTTL:       opts.ReportTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// HasReport reports whether an unexpired entry exists for key.
func (b *boltStore) HasReport(key string) (bool, error) {
	_, ok, err := b.LoadReport(key)
	return ok, err
}

// LoadReport returns the stored payload for key.
func (b *boltStore) LoadReport(key string) ([]byte, bool, error) {
	if b == nil || b.db == nil {
		return nil, false, nil
	}
	if err := validateKey(key); err != nil {
		return nil, false, err
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return nil, false, err
	}

	var (
		payload []byte
		found   bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucket))
		if bucket == nil {
			return errBucketMissing
		}
		expiry, body, ok := decodeEntry(bucket.Get([]byte(key)))
		if !ok || !expiry.After(now) {
			return nil
		}
		// bolt values are only valid inside the transaction
		payload = append([]byte(nil), body...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return payload, found, nil
}

// SaveReport stores payload under key until the configured TTL elapses.
func (b *boltStore) SaveReport(key string, payload []byte) error {
	if b == nil || b.db == nil {
		return nil
	}
	if err := validateKey(key); err != nil {
		return err
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucket))
		if bucket == nil {
			return errBucketMissing
		}
		return bucket.Put([]byte(key), encodeEntry(now.Add(b.reportTTL), payload))
	})
}

// maybeCleanupExpired sweeps expired entries once per cleanup interval.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reportBucket))
		if bucket == nil {
			return errBucketMissing
		}
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, _, ok := decodeEntry(v)
			if !ok || !expiry.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("report key is empty")
	}
	return nil
}

func encodeEntry(expiry time.Time, payload []byte) []byte {
	buf := make([]byte, expiryBytes+len(payload))
	binary.BigEndian.PutUint64(buf, uint64(expiry.Unix()))
	copy(buf[expiryBytes:], payload)
	return buf
}

func decodeEntry(value []byte) (time.Time, []byte, bool) {
	if len(value) < expiryBytes {
		return time.Time{}, nil, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryBytes]))
	if unix <= 0 {
		return time.Time{}, nil, false
	}
	return time.Unix(unix, 0), value[expiryBytes:], true
}
