package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Collection and document keys. The key names and record layout match what the
// browser build kept in localStorage. Credentials are not shared: accounts
// created here hold bcrypt hashes the browser build cannot check.
const (
	KeyUsers             = "users"
	KeyAttendanceRecords = "attendanceRecords"
	KeyPendingApprovals  = "pendingApprovals"
	KeyCurrentUser       = "currentUser"
)

// KV is a flat store of text blobs addressed by key.
// Get reports ok=false for a key that was never written.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// SetTTL writes value so that it reads as absent once ttl has passed.
	// A ttl <= 0 behaves like Set. Set on the same key makes it permanent.
	SetTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Options selects and configures a backend for Open.
type Options struct {
	Backend     string // memory, sqlite, redis, postgres
	SQLitePath  string
	DatabaseURL string
	RedisAddr   string
	RedisPrefix string
}

// Open builds the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (KV, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(opts.SQLitePath)
	case "redis":
		r := NewRedis(opts.RedisAddr, opts.RedisPrefix)
		if !r.Healthy(ctx) {
			_ = r.Close()
			return nil, fail("open", opts.RedisAddr, fmt.Errorf("redis not reachable"))
		}
		return r, nil
	case "postgres":
		return NewPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
}
