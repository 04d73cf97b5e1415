package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite keeps blobs in a single local database file. It is the closest
// thing to a browser profile's local storage: one file, one user.
type SQLite struct {
	sqlKV
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fail("open", "", fmt.Errorf("sqlite path required"))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fail("open", path, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fail("open", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fail("ping", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS kv_expiry (
			key        TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, fail("migrate", path, err)
	}

	return &SQLite{sqlKV{
		db: db,
		stmts: sqlStmts{
			get: `SELECT kv.value FROM kv LEFT JOIN kv_expiry e ON e.key = kv.key
				WHERE kv.key = ? AND (e.expires_at IS NULL OR e.expires_at > ?)`,
			set:          `INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			del:          `DELETE FROM kv WHERE key = ?`,
			expire:       `INSERT INTO kv_expiry (key, expires_at) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET expires_at = excluded.expires_at`,
			unexpire:     `DELETE FROM kv_expiry WHERE key = ?`,
			purgeValues:  `DELETE FROM kv WHERE key IN (SELECT key FROM kv_expiry WHERE expires_at <= ?)`,
			purgeExpired: `DELETE FROM kv_expiry WHERE expires_at <= ?`,
		},
		backendID: "sqlite",
		now:       time.Now,
	}}, nil
}
