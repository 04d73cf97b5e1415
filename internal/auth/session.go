package auth

import (
	"context"
	"time"

	"schoolattend/internal/attendance"
	"schoolattend/internal/store"
)

// Session is the signed-in account, never carrying a secret.
type Session struct {
	attendance.Account
}

// SessionKey returns the key a session with id sid is persisted under. An
// empty sid is the single local session.
func SessionKey(sid string) string {
	if sid == "" {
		return store.KeyCurrentUser
	}
	return store.KeyCurrentUser + ":" + sid
}

// SessionManager owns one persisted session slot.
type SessionManager struct {
	doc store.Document[attendance.Account]
	ttl time.Duration
}

// NewSessionManager binds a manager to the slot at key.
func NewSessionManager(kv store.KV, key string) *SessionManager {
	return &SessionManager{doc: store.NewDocument[attendance.Account](kv, key)}
}

// WithTTL makes sessions established through m expire after ttl.
func (m *SessionManager) WithTTL(ttl time.Duration) *SessionManager {
	m.ttl = ttl
	return m
}

// Current returns the persisted session, if any.
func (m *SessionManager) Current(ctx context.Context) (Session, bool, error) {
	a, ok, err := m.doc.Load(ctx)
	if err != nil || !ok {
		return Session{}, false, err
	}
	return Session{Account: a.Public()}, true, nil
}

func (m *SessionManager) establish(ctx context.Context, a attendance.Account) (Session, error) {
	s := Session{Account: a.Public()}
	if err := m.doc.SaveFor(ctx, s.Account, m.ttl); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Clear removes the session. Clearing an empty slot is not an error.
func (m *SessionManager) Clear(ctx context.Context) error {
	return m.doc.Clear(ctx)
}
