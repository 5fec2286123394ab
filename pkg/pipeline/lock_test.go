package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)

	require.NoError(t, release(ctx))
	// a second release must not free a lock taken by someone else
	again, err := locker.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
	_, err = locker.Acquire(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)
	require.NoError(t, again(ctx))
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	key := "etl:test-lock:" + time.Now().Format(time.RFC3339Nano)
	locker := NewRedisLocker(client, key, time.Minute)

	release, err := locker.Acquire(ctx)
	require.NoError(t, err)

	_, err = NewRedisLocker(client, key, time.Minute).Acquire(ctx)
	assert.ErrorIs(t, err, ErrRunInProgress)

	require.NoError(t, release(ctx))
	exists, err := client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)

	// a stale release leaves a newer holder alone
	other, err := locker.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
	exists, err = client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
	require.NoError(t, other(ctx))
}
