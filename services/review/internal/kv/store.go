// Package kv is the persistence adapter of the review engine: a string-keyed
// store of whole JSON blobs.
//
// Backends: memory (development only), file (one atomically replaced file
// per key), sqlite (single local database file) and redis.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// Store reads and writes whole blobs by key.
type Store interface {
	// Get returns the blob stored under key. A missing key is not an error:
	// it yields (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set overwrites the whole value under key.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key succeeds.
	Remove(ctx context.Context, key string) error
}

// Pinger is implemented by backends that hold a connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks that s is reachable. Backends without a connection always are.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// ErrReadOnly is returned by writes on a read-only store.
var ErrReadOnly = errors.New("kv: read-only")

// Config selects and configures a backend.
type Config struct {
	Backend    string
	Dir        string
	SQLitePath string
	RedisURL   string
	// RedisPrefix namespaces keys inside a shared redis database.
	RedisPrefix string
	ReadOnly    bool
}

// Open creates the configured backend. The returned close function releases
// backend resources and is never nil. When production is true the memory
// backend is refused.
func Open(ctx context.Context, cfg Config, production bool) (Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case BackendFile, "":
		s, err := NewFileStore(cfg.Dir, cfg.ReadOnly)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case BackendSQLite:
		s, err := NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendRedis:
		s, err := NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case BackendMemory:
		if production {
			return nil, noop, errors.New("kv: memory backend is not allowed in production")
		}
		return NewMemoryStore(), noop, nil
	default:
		return nil, noop, fmt.Errorf("kv: unknown backend %q", cfg.Backend)
	}
}
