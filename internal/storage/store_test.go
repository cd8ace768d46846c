package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whispr/internal/observability"
)

// runStoreContract exercises the behaviour every driver must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "whispr-user")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "whispr-user", []byte(`{"_id":"u1"}`)))
	got, err := s.Get(ctx, "whispr-user")
	require.NoError(t, err)
	assert.Equal(t, `{"_id":"u1"}`, string(got))

	require.NoError(t, s.Set(ctx, "whispr-user", []byte(`{"_id":"u2"}`)))
	got, err = s.Get(ctx, "whispr-user")
	require.NoError(t, err)
	assert.Equal(t, `{"_id":"u2"}`, string(got))

	require.NoError(t, s.Delete(ctx, "whispr-user"))
	_, err = s.Get(ctx, "whispr-user")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is fine.
	require.NoError(t, s.Delete(ctx, "whispr-user"))

	assert.Error(t, s.Set(ctx, "../escape", []byte("x")))
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, observability.NewDiscardLogger())
	require.NoError(t, err)
	runStoreContract(t, s)
}

func TestFileStore_PersistsAcrossInstancesWithPrivateMode(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewFileStore(dir, observability.NewDiscardLogger())
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "whispr-user", []byte("data")))

	info, err := os.Stat(filepath.Join(dir, "whispr-user.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	s2, err := NewFileStore(dir, observability.NewDiscardLogger())
	require.NoError(t, err)
	got, err := s2.Get(ctx, "whispr-user")
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client, observability.NewDiscardLogger())
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)

	require.NoError(t, s.Set(context.Background(), "whispr-cookies", []byte("c")))
	assert.True(t, mr.Exists("whispr:whispr-cookies"))
}

func TestDialRedis_URLAndFailure(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := DialRedis(context.Background(), "redis://"+mr.Addr(), observability.NewDiscardLogger())
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "k", []byte("v")))
	require.NoError(t, s.Close())

	mr.Close()
	_, err = DialRedis(context.Background(), mr.Addr(), observability.NewDiscardLogger())
	assert.Error(t, err)
}

func TestSQLStore_SQLite(t *testing.T) {
	s, err := OpenSQL("sqlite", ":memory:", observability.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)
}

func TestOpenSQL_UnknownDialect(t *testing.T) {
	_, err := OpenSQL("oracle", "x", nil)
	assert.Error(t, err)
}

func TestBadgerStore_InMemory(t *testing.T) {
	s, err := OpenBadger(BadgerConfig{InMemory: true, Logger: observability.NewDiscardLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runStoreContract(t, s)
}

func TestOpenBadger_RequiresPath(t *testing.T) {
	_, err := OpenBadger(BadgerConfig{})
	assert.Error(t, err)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, Options{Driver: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, Options{Driver: "badger", Dir: t.TempDir(), Logger: observability.NewDiscardLogger()})
	require.NoError(t, err)
	assert.IsType(t, &BadgerStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Options{Driver: "nope"})
	assert.Error(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, Options{Driver: "file"})
	assert.Error(t, err)
	assert.Nil(t, s)
}
