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

	"github.com/wolfman30/barbershop-client/pkg/logging"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

// exerciseKV runs the same contract against every backend.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()
	keys := NewKeys("")

	_, ok, err := kv.Get(ctx, keys.Token())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, keys.Token(), "tok-1"))
	require.NoError(t, kv.Set(ctx, keys.Token(), "tok-2"))
	v, ok, err := kv.Get(ctx, keys.Token())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-2", v, "last writer wins")

	require.NoError(t, SetJSON(ctx, kv, keys.User(), map[string]string{"id": "1", "name": "Cliente"}))
	var user map[string]string
	require.NoError(t, GetJSON(ctx, kv, keys.User(), &user))
	assert.Equal(t, "Cliente", user["name"])

	require.NoError(t, kv.Delete(ctx, keys.Token(), keys.User(), keys.Shop()))
	_, ok, err = kv.Get(ctx, keys.User())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, GetJSON(ctx, kv, keys.User(), &user), ErrNotFound)

	require.NoError(t, kv.Delete(ctx, keys.Token()), "deleting missing keys is a no-op")
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseKV(t, s)
	assert.Equal(t, 0, s.Len())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s, err := NewFileStore(path, logging.Discard())
	require.NoError(t, err)
	exerciseKV(t, s)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	first, err := NewFileStore(path, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, "@BarberSaaS:shop", `{"slug":"victor-azambuja"}`))

	second, err := NewFileStore(path, logging.Discard())
	require.NoError(t, err)
	v, ok, err := second.Get(ctx, "@BarberSaaS:shop")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"slug":"victor-azambuja"}`, v)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	ctx := context.Background()
	s, err := NewFileStore(path, logging.Discard())
	require.NoError(t, err)
	_, _, err = s.Get(ctx, "@BarberSaaS:token")
	assert.ErrorIs(t, err, errCorrupt)

	require.NoError(t, s.Set(ctx, "@BarberSaaS:shop", `{"slug":"victor-azambuja"}`))
	kept, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(kept))

	reopened, err := NewFileStore(path, logging.Discard())
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, "@BarberSaaS:shop")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"slug":"victor-azambuja"}`, v)
}

func TestFileStore_DeleteRecoversCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("]["), 0o600))

	ctx := context.Background()
	s, err := NewFileStore(path, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "@BarberSaaS:user", "@BarberSaaS:token"))

	_, ok, err := s.Get(ctx, "@BarberSaaS:user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	_, err := NewFileStore("", logging.Discard())
	assert.Error(t, err)
}

func TestRedisStore(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStoreFromClient(client)
	exerciseKV(t, s)

	require.NoError(t, s.Set(context.Background(), "@BarberSaaS:token", "abc"))
	got, err := mr.Get("@BarberSaaS:token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
	assert.Equal(t, 0, int(mr.TTL("@BarberSaaS:token")), "session keys never expire server-side")
}

func TestRedisStore_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStoreFromClient(client)
	mr.Close()

	_, _, err := s.Get(context.Background(), "@BarberSaaS:token")
	assert.Error(t, err)
}

func TestNewKeys(t *testing.T) {
	k := NewKeys("@Test")
	assert.Equal(t, "@Test:token", k.Token())
	assert.Equal(t, "@Test:user", k.User())
	assert.Equal(t, "@Test:shop", k.Shop())
	assert.Equal(t, "@BarberSaaS:shop", NewKeys("").Shop())
}

func TestOpen(t *testing.T) {
	kv, closeFn, err := Open(OpenOptions{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, kv)
	assert.NoError(t, closeFn())

	kv, _, err = Open(OpenOptions{Backend: BackendFile, FilePath: filepath.Join(t.TempDir(), "s.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, kv)

	mr := miniredis.RunT(t)
	kv, closeFn, err = Open(OpenOptions{Backend: BackendRedis, Redis: RedisOptions{Addr: mr.Addr()}})
	require.NoError(t, err)
	assert.IsType(t, &RedisStore{}, kv)
	assert.NoError(t, closeFn())

	kv, _, err = Open(OpenOptions{Backend: BackendDynamo, Dynamo: DynamoOptions{Client: newFakeDynamo(), Table: "sessions"}})
	require.NoError(t, err)
	assert.IsType(t, &DynamoStore{}, kv)

	_, _, err = Open(OpenOptions{Backend: BackendDynamo})
	assert.Error(t, err, "dynamodb needs a client")

	_, _, err = Open(OpenOptions{Backend: "sqlite"})
	assert.Error(t, err)
}
