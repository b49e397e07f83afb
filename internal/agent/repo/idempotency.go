package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/salescomp-agent/server/internal/core/error"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// IdempotencyGuard suppresses duplicate side-effecting collaborator calls
// (booking confirmations, outbound email). Keys are deterministic over the
// conversation id, the stage, and the call payload, so a retried or replayed
// turn resolves to the same key and the side effect runs at most once within
// the TTL window.
type IdempotencyGuard struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewIdempotencyGuard(rdb redis.Cmdable, ttl time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{rdb: rdb, ttl: ttl}
}

// Key derives the deterministic idempotency key for a side-effecting call.
func Key(conversationID, stage string, payload ...string) string {
	h := sha256.New()
	h.Write([]byte(conversationID))
	h.Write([]byte{0})
	h.Write([]byte(stage))
	for _, p := range payload {
		h.Write([]byte{0})
		h.Write([]byte(strings.TrimSpace(p)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Acquire claims the key. It returns true when the caller is the first to
// claim it and should perform the side effect; false when the side effect
// already ran for this key.
func (g *IdempotencyGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, g.redisKey(key), 1, g.ttl).Result()
	if err != nil {
		logx.Error().Err(err).Str("idempotency_key", key).Msg("failed to acquire idempotency key")
		return false, errx.WrapRedis(err)
	}
	return ok, nil
}

// Release frees the key so the side effect may be attempted again, used when
// the guarded call failed and nothing was actually sent.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	if err := g.rdb.Del(ctx, g.redisKey(key)).Err(); err != nil {
		logx.Error().Err(err).Str("idempotency_key", key).Msg("failed to release idempotency key")
		return errx.WrapRedis(err)
	}
	return nil
}

func (g *IdempotencyGuard) redisKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}
