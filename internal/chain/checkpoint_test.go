package chain

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

func newTestCheckpoints(t *testing.T) *RedisCheckpoints {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisCheckpoints(rdb, "test-indexer")
}

func TestRedisCheckpointsRoundTrip(t *testing.T) {
	ctx := context.Background()
	checkpoints := newTestCheckpoints(t)

	_, ok, err := checkpoints.Load(ctx, models.EventRumorCreated)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, checkpoints.Save(ctx, models.EventRumorCreated, 1234))

	block, ok, err := checkpoints.Load(ctx, models.EventRumorCreated)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1234), block)
}

func TestRedisCheckpointsPerKindKeys(t *testing.T) {
	ctx := context.Background()
	checkpoints := newTestCheckpoints(t)

	require.NoError(t, checkpoints.Save(ctx, models.EventRumorCreated, 10))
	require.NoError(t, checkpoints.Save(ctx, models.EventRumorVerified, 20))

	created, ok, err := checkpoints.Load(ctx, models.EventRumorCreated)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(10), created)

	verified, ok, err := checkpoints.Load(ctx, models.EventRumorVerified)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(20), verified)
}

func TestRedisCheckpointsOverwrite(t *testing.T) {
	ctx := context.Background()
	checkpoints := newTestCheckpoints(t)

	require.NoError(t, checkpoints.Save(ctx, models.EventRumorCreated, 10))
	require.NoError(t, checkpoints.Save(ctx, models.EventRumorCreated, 42))

	block, ok, err := checkpoints.Load(ctx, models.EventRumorCreated)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), block)
}

func TestRedisCheckpointsCorruptValue(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	checkpoints := NewRedisCheckpoints(rdb, "test-indexer")

	require.NoError(t, mr.Set("test-indexer:cursor:RumorCreated", "not-a-number"))

	_, _, err := checkpoints.Load(ctx, models.EventRumorCreated)
	require.Error(t, err)
}
