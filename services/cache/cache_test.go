package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/jifunze/core"
)

func testStore(t *testing.T, store core.KeyValueStore, key string) {
	ctx := context.Background()

	_, ok, err := store.GetAndDelete(ctx, key)
	assert.NoError(t, err)
	assert.False(t, ok, "absent key")

	// last writer wins
	assert.NoError(t, store.Put(ctx, key, "111111", time.Minute))
	assert.NoError(t, store.Put(ctx, key, "222222", time.Minute))

	ok, err = store.Consume(ctx, key, "111111")
	assert.NoError(t, err)
	assert.False(t, ok, "overwritten value")

	ok, err = store.Consume(ctx, key, "222222")
	assert.NoError(t, err)
	assert.True(t, ok, "current value")

	ok, err = store.Consume(ctx, key, "222222")
	assert.NoError(t, err)
	assert.False(t, ok, "already consumed")

	assert.NoError(t, store.Put(ctx, key, "333333", time.Minute))
	val, ok, err := store.GetAndDelete(ctx, key)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "333333", val)

	_, ok, err = store.GetAndDelete(ctx, key)
	assert.NoError(t, err)
	assert.False(t, ok, "single use")

	// expiry
	assert.NoError(t, store.Put(ctx, key, "444444", 50*time.Millisecond))
	time.Sleep(150 * time.Millisecond)
	ok, err = store.Consume(ctx, key, "444444")
	assert.NoError(t, err)
	assert.False(t, ok, "expired")
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	testStore(t, store, "password-reset:a@x.com")
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_OverwriteRestartsTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	assert.NoError(t, store.Put(ctx, "k", "old", 50*time.Millisecond))
	assert.NoError(t, store.Put(ctx, "k", "new", time.Minute))
	time.Sleep(150 * time.Millisecond)

	// the timer of the replaced entry must not drop the new one
	ok, err := store.Consume(ctx, "k", "new")
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	conf := core.NewTestConfig()
	conf.Cache.RedisAddr = addr
	rdb, err := NewRedisClient(context.Background(), conf)
	if err != nil {
		t.Fatalf("NewRedisClient() failed: %v", err)
	}
	defer func() { _ = rdb.Close() }()

	testStore(t, NewRedisStore(rdb), "test:password-reset:a@x.com")
}
