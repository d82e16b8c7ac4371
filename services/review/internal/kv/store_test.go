package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// exerciseStore runs the shared contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	b, ok, err := s.Get(ctx, "@frameio_comments")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, b)

	require.NoError(t, s.Set(ctx, "@frameio_comments", []byte(`[{"id":"a"}]`)))
	b, ok, err = s.Get(ctx, "@frameio_comments")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `[{"id":"a"}]`, string(b))

	require.NoError(t, s.Set(ctx, "@frameio_comments", []byte(`[]`)))
	b, _, err = s.Get(ctx, "@frameio_comments")
	require.NoError(t, err)
	require.Equal(t, "[]", string(b))

	require.NoError(t, s.Set(ctx, "@frameio_drawings", []byte(`[1]`)))

	require.NoError(t, s.Remove(ctx, "@frameio_comments"))
	_, ok, err = s.Get(ctx, "@frameio_comments")
	require.NoError(t, err)
	require.False(t, ok)

	// removing twice is fine
	require.NoError(t, s.Remove(ctx, "@frameio_comments"))

	_, ok, err = s.Get(ctx, "@frameio_drawings")
	require.NoError(t, err)
	require.True(t, ok, "other keys are untouched")
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	v := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", v))
	v[0] = 'z'

	got, _, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
	require.ElementsMatch(t, []string{"k"}, s.Keys())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), false)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFileStore_ReadableFileNames(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, false)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "@frameio_comments", []byte("[]")))

	_, err = os.Stat(filepath.Join(dir, "frameio_comments.json"))
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
}

func TestFileName_EncodesUnsafeKeys(t *testing.T) {
	name, err := fileName("../etc/passwd")
	require.NoError(t, err)
	require.NotContains(t, name, "/")
	require.NotContains(t, name, "..")

	_, err = fileName("")
	require.Error(t, err)
}

func TestFileStore_ReadOnly(t *testing.T) {
	dir := t.TempDir()
	rw, err := NewFileStore(dir, false)
	require.NoError(t, err)
	require.NoError(t, rw.Set(context.Background(), "k", []byte("v")))

	ro, err := NewFileStore(dir, true)
	require.NoError(t, err)
	b, ok, err := ro.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", string(b))

	require.ErrorIs(t, ro.Set(context.Background(), "k", []byte("x")), ErrReadOnly)
	require.ErrorIs(t, ro.Remove(context.Background(), "k"), ErrReadOnly)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "nested", "review.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Ping(context.Background()))
	exerciseStore(t, s)
}

func TestPing(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Ping(ctx, NewMemoryStore()))

	s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "review.db"))
	require.NoError(t, err)
	require.NoError(t, Ping(ctx, s))

	require.NoError(t, s.Close())
	require.Error(t, Ping(ctx, s), "a closed database is not ready")
}

func TestSQLiteStore_Reopen(t *testing.T) {
	p := filepath.Join(t.TempDir(), "review.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, p)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "@frameio_drawings", []byte(`[{"id":"s1"}]`)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	b, ok, err := s.Get(ctx, "@frameio_drawings")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `[{"id":"s1"}]`, string(b))
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	s, err := NewRedisStore(context.Background(), url, "kvtest:"+t.Name()+":")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestOpen_Backends(t *testing.T) {
	ctx := context.Background()

	s, closeFn, err := Open(ctx, Config{Backend: "memory"}, false)
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)
	require.NoError(t, closeFn())

	s, closeFn, err = Open(ctx, Config{Backend: "FILE", Dir: t.TempDir()}, true)
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, s)
	require.NoError(t, closeFn())

	s, closeFn, err = Open(ctx, Config{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db")}, true)
	require.NoError(t, err)
	require.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, closeFn())
}

func TestOpen_RejectsMemoryInProd(t *testing.T) {
	s, closeFn, err := Open(context.Background(), Config{Backend: "memory"}, true)
	require.Error(t, err)
	require.Nil(t, s)
	require.NotNil(t, closeFn)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Backend: "etcd"}, false)
	require.Error(t, err)
}

func TestOpen_RedisRequiresURL(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Backend: "redis"}, false)
	require.Error(t, err)
}
