package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/rumor-tracing/ledger-indexer/internal/models"
)

// CheckpointStore persists the last committed polling cursor per event
// kind so a restarted process can resume instead of re-anchoring at head.
type CheckpointStore interface {
	Load(ctx context.Context, kind models.EventKind) (block uint64, ok bool, err error)
	Save(ctx context.Context, kind models.EventKind, block uint64) error
}

// RedisCheckpoints implements CheckpointStore on Redis. Cursors are plain
// stringified block numbers with no TTL.
type RedisCheckpoints struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCheckpoints creates a checkpoint store. prefix namespaces the
// keys so multiple indexers can share one Redis.
func NewRedisCheckpoints(rdb *redis.Client, prefix string) *RedisCheckpoints {
	if prefix == "" {
		prefix = "ledger-indexer"
	}
	return &RedisCheckpoints{rdb: rdb, prefix: prefix}
}

func (r *RedisCheckpoints) key(kind models.EventKind) string {
	return fmt.Sprintf("%s:cursor:%s", r.prefix, kind)
}

// Load returns the stored cursor for kind, with ok=false when none exists.
func (r *RedisCheckpoints) Load(ctx context.Context, kind models.EventKind) (uint64, bool, error) {
	val, err := r.rdb.Get(ctx, r.key(kind)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load checkpoint: %w", err)
	}

	block, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse checkpoint %q: %w", val, err)
	}
	return block, true, nil
}

// Save stores the cursor for kind.
func (r *RedisCheckpoints) Save(ctx context.Context, kind models.EventKind, block uint64) error {
	if err := r.rdb.Set(ctx, r.key(kind), strconv.FormatUint(block, 10), 0).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
