package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres keeps blobs in a kv_store table through pgx.
type Postgres struct {
	sqlKV
}

// NewPostgres creates a Postgres connection with sane defaults and makes sure
// the table exists.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fail("open", "", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fail("ping", "", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_store (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		_ = db.Close()
		return nil, fail("migrate", "", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kv_store_expiry (
			key        TEXT PRIMARY KEY,
			expires_at BIGINT NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, fail("migrate", "", err)
	}

	return &Postgres{sqlKV{
		db: db,
		stmts: sqlStmts{
			get: `SELECT s.value FROM kv_store s LEFT JOIN kv_store_expiry e ON e.key = s.key
				WHERE s.key = $1 AND (e.expires_at IS NULL OR e.expires_at > $2)`,
			set: `
				INSERT INTO kv_store (key, value) VALUES ($1, $2)
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
			del: `DELETE FROM kv_store WHERE key = $1`,
			expire: `
				INSERT INTO kv_store_expiry (key, expires_at) VALUES ($1, $2)
				ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
			unexpire:     `DELETE FROM kv_store_expiry WHERE key = $1`,
			purgeValues:  `DELETE FROM kv_store WHERE key IN (SELECT key FROM kv_store_expiry WHERE expires_at <= $1)`,
			purgeExpired: `DELETE FROM kv_store_expiry WHERE expires_at <= $1`,
		},
		backendID: "postgres",
		now:       time.Now,
	}}, nil
}
