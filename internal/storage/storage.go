// Package storage keeps a local ledger of published retention reports.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// Store records which job reports were already published for a day.
type Store interface {
	Close() error
	HasReport(key string) (bool, error)
	SaveReport(key string, payload []byte) error
	LoadReport(key string) ([]byte, bool, error)
}

// Options controls retention of ledger entries.
type Options struct {
	ReportTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultReportTTL       = 30 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		store, err := openBolt(path, opts)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.ReportTTL <= 0 {
		opts.ReportTTL = defaultReportTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                            { return nil }
func (noopStore) HasReport(string) (bool, error)          { return false, nil }
func (noopStore) SaveReport(string, []byte) error         { return nil }
func (noopStore) LoadReport(string) ([]byte, bool, error) { return nil, false, nil }
