package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/salescomp-agent/server/internal/agent/model"
	errx "github.com/salescomp-agent/server/internal/core/error"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// checkpointLockStripes bounds the in-process lock table. Writes to the same
// conversation id always hash to the same stripe, so per-conversation writes
// are serialized; distinct conversations usually proceed in parallel.
const checkpointLockStripes = 64

// RedisCheckpointRepository persists conversation checkpoints as JSON blobs
// with a TTL extended on every touch.
type RedisCheckpointRepository struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	locks [checkpointLockStripes]sync.Mutex
}

func NewRedisCheckpointRepository(rdb redis.Cmdable, ttl time.Duration) *RedisCheckpointRepository {
	return &RedisCheckpointRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisCheckpointRepository) checkpointKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:checkpoint", conversationID)
}

func (r *RedisCheckpointRepository) lockFor(conversationID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(conversationID))
	return &r.locks[h.Sum32()%checkpointLockStripes]
}

func (r *RedisCheckpointRepository) Save(ctx context.Context, conversationID string, cp *model.Checkpoint) error {
	if cp == nil {
		return fmt.Errorf("checkpoint is nil")
	}

	mu := r.lockFor(conversationID)
	mu.Lock()
	defer mu.Unlock()

	b, err := json.Marshal(cp)
	if err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to marshal checkpoint")
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	key := r.checkpointKey(conversationID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save checkpoint to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisCheckpointRepository) Load(ctx context.Context, conversationID string) (*model.Checkpoint, error) {
	key := r.checkpointKey(conversationID)

	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to load checkpoint from redis")
		}
		return nil, errx.WrapRedis(err)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		logx.Error().Err(err).Str("conversationID", conversationID).Msg("failed to unmarshal checkpoint")
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func (r *RedisCheckpointRepository) Delete(ctx context.Context, conversationID string) error {
	key := r.checkpointKey(conversationID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete checkpoint from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.CheckpointRepository = (*RedisCheckpointRepository)(nil)
