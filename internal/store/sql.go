package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// sqlKV stores blobs in a two-column table, with expiry times for SetTTL keys
// kept in a side table. The dialects differ only in placeholder syntax, so
// each backend supplies its own statements.
type sqlKV struct {
	db        *sql.DB
	stmts     sqlStmts
	backendID string
	now       func() time.Time
}

type sqlStmts struct {
	get          string // key, now (unix seconds)
	set          string // key, value
	del          string // key
	expire       string // key, expiry (unix seconds)
	unexpire     string // key
	purgeValues  string // now
	purgeExpired string // now
}

func (s *sqlKV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.stmts.get, key, s.now().Unix()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fail(s.backendID+" get", key, err)
	}
	return value, true, nil
}

func (s *sqlKV) Set(ctx context.Context, key, value string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.stmts.set, key, value); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.stmts.unexpire, key)
		return err
	})
	if err != nil {
		return fail(s.backendID+" set", key, err)
	}
	return nil
}

// SetTTL also sweeps every key whose expiry has passed.
func (s *sqlKV) SetTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Set(ctx, key, value)
	}
	now := s.now()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.stmts.purgeValues, now.Unix()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.stmts.purgeExpired, now.Unix()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.stmts.set, key, value); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.stmts.expire, key, now.Add(ttl).Unix())
		return err
	})
	if err != nil {
		return fail(s.backendID+" set", key, err)
	}
	return nil
}

func (s *sqlKV) Remove(ctx context.Context, key string) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.stmts.del, key); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.stmts.unexpire, key)
		return err
	})
	if err != nil {
		return fail(s.backendID+" remove", key, err)
	}
	return nil
}

func (s *sqlKV) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the underlying connection.
func (s *sqlKV) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
