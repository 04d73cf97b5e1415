package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// exerciseKV runs the behaviour every backend must share.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "k", "v1"))
	require.NoError(t, kv.Set(ctx, "k", "v2"))
	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, kv.Remove(ctx, "k"))
	require.NoError(t, kv.Remove(ctx, "k"))
	_, ok, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	col := NewCollection[item](kv, "items")
	got, err := col.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	want := []item{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}
	require.NoError(t, col.Write(ctx, want))
	got, err = col.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, kv.SetTTL(ctx, "slot", "s1", time.Hour))
	v, ok, err = kv.Get(ctx, "slot")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "s1", v)
	require.NoError(t, kv.Remove(ctx, "slot"))
	_, ok, err = kv.Get(ctx, "slot")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}

// exerciseExpiry checks SetTTL against a backend whose clock advance moves.
func exerciseExpiry(t *testing.T, kv KV, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, kv.SetTTL(ctx, "short", "a", time.Minute))
	require.NoError(t, kv.SetTTL(ctx, "long", "b", time.Hour))
	require.NoError(t, kv.SetTTL(ctx, "forever", "c", 0))
	require.NoError(t, kv.SetTTL(ctx, "renewed", "d", time.Minute))
	require.NoError(t, kv.Set(ctx, "renewed", "e"))

	v, ok, err := kv.Get(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	advance(2 * time.Minute)

	_, ok, err = kv.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
	for key, want := range map[string]string{"long": "b", "forever": "c", "renewed": "e"} {
		v, ok, err := kv.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
		assert.Equal(t, want, v, key)
	}

	// a new expiring write sweeps what has lapsed
	require.NoError(t, kv.SetTTL(ctx, "next", "f", time.Minute))
}

func TestMemory_SetTTL(t *testing.T) {
	m := NewMemory()
	clock := time.Now()
	m.now = func() time.Time { return clock }
	exerciseExpiry(t, m, func(d time.Duration) { clock = clock.Add(d) })
	assert.Equal(t, 4, m.Len())
}

func TestSQLite_SetTTL(t *testing.T) {
	kv, err := NewSQLite(filepath.Join(t.TempDir(), "attendance.db"))
	require.NoError(t, err)
	defer kv.Close()
	clock := time.Now()
	kv.now = func() time.Time { return clock }
	exerciseExpiry(t, kv, func(d time.Duration) { clock = clock.Add(d) })

	var rows, expiring int
	require.NoError(t, kv.db.QueryRow(`SELECT COUNT(*) FROM kv`).Scan(&rows))
	require.NoError(t, kv.db.QueryRow(`SELECT COUNT(*) FROM kv_expiry`).Scan(&expiring))
	assert.Equal(t, 4, rows)
	assert.Equal(t, 2, expiring)
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile", "attendance.db")
	kv, err := NewSQLite(path)
	require.NoError(t, err)
	defer kv.Close()
	exerciseKV(t, kv)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "attendance.db")

	kv, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, KeyCurrentUser, `{"id":"1"}`))
	require.NoError(t, kv.Close())

	kv, err = NewSQLite(path)
	require.NoError(t, err)
	defer kv.Close()
	v, ok, err := kv.Get(ctx, KeyCurrentUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"1"}`, v)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	r := NewRedis(addr, "attendance-test:"+t.Name()+":")
	defer r.Close()
	require.True(t, r.Healthy(context.Background()))
	_ = r.Remove(context.Background(), "items")
	exerciseKV(t, r)
}

func TestPostgres(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pg, err := NewPostgres(context.Background(), url)
	require.NoError(t, err)
	defer pg.Close()
	_ = pg.Remove(context.Background(), "items")
	exerciseKV(t, pg)
}

func TestCollection_MalformedBlobIsStorageFailure(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, "items", "{not json"))

	_, err := NewCollection[item](kv, "items").Read(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "decode", serr.Op)
	assert.Equal(t, "items", serr.Key)
}

func TestCollection_NullAndBlankReadAsEmpty(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	col := NewCollection[item](kv, "items")

	for _, raw := range []string{"null", "  ", "[]"} {
		require.NoError(t, kv.Set(ctx, "items", raw))
		got, err := col.Read(ctx)
		require.NoError(t, err, raw)
		assert.Equal(t, []item{}, got, raw)
	}
}

func TestClosedStoreFails(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Close())

	err := NewCollection[item](kv, "items").Write(ctx, []item{{ID: "1"}})
	assert.ErrorIs(t, err, ErrStorage)
	_, err = NewCollection[item](kv, "items").Read(ctx)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, kv.Remove(ctx, "items"), ErrStorage)
}

func TestDocument(t *testing.T) {
	ctx := context.Background()
	doc := NewDocument[item](NewMemory(), KeyCurrentUser)

	_, ok, err := doc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, doc.Save(ctx, item{ID: "7", Name: "Sam"}))
	got, ok, err := doc.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, item{ID: "7", Name: "Sam"}, got)

	require.NoError(t, doc.Clear(ctx))
	require.NoError(t, doc.Clear(ctx))
	_, ok, err = doc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	m := NewMemory()
	clock := time.Now()
	m.now = func() time.Time { return clock }
	doc = NewDocument[item](m, KeyCurrentUser+":sid")
	require.NoError(t, doc.SaveFor(ctx, item{ID: "8"}, time.Minute))
	_, ok, err = doc.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	clock = clock.Add(time.Minute)
	_, ok, err = doc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	kv, err := Open(ctx, Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, kv)

	kv, err = Open(ctx, Options{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "a.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, kv)
	require.NoError(t, kv.Close())

	_, err = Open(ctx, Options{Backend: "floppy"})
	assert.EqualError(t, err, `unknown store backend "floppy"`)

	_, err = Open(ctx, Options{Backend: "sqlite"})
	assert.ErrorIs(t, err, ErrStorage)
}
