package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDeterministic(t *testing.T) {
	a := Key("conv-1", "contest-book", "2026-09-02T10:00:00Z", "alex@example.com")
	b := Key("conv-1", "contest-book", "2026-09-02T10:00:00Z", "alex@example.com")
	assert.Equal(t, a, b)

	// Payload whitespace is insignificant.
	c := Key("conv-1", "contest-book", " 2026-09-02T10:00:00Z ", "alex@example.com")
	assert.Equal(t, a, c)
}

func TestKeyDistinguishesInputs(t *testing.T) {
	base := Key("conv-1", "contest-book", "2026-09-02T10:00:00Z", "alex@example.com")

	assert.NotEqual(t, base, Key("conv-2", "contest-book", "2026-09-02T10:00:00Z", "alex@example.com"))
	assert.NotEqual(t, base, Key("conv-1", "contest-intake-email", "2026-09-02T10:00:00Z", "alex@example.com"))
	assert.NotEqual(t, base, Key("conv-1", "contest-book", "2026-09-02T14:00:00Z", "alex@example.com"))
	assert.NotEqual(t, base, Key("conv-1", "contest-book", "2026-09-02T10:00:00Z", "sam@example.com"))

	// Field boundaries matter: shifting bytes between payload parts changes the key.
	assert.NotEqual(t, Key("conv-1", "ab", "c"), Key("conv-1", "a", "bc"))
}

func TestIdempotencyGuardAcquireOnce(t *testing.T) {
	rdb := newTestRedis(t)
	guard := NewIdempotencyGuard(rdb, time.Hour)
	ctx := context.Background()

	key := Key("conv-1", "ticket-email")

	first, err := guard.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := guard.Acquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestIdempotencyGuardReleaseAllowsRetry(t *testing.T) {
	rdb := newTestRedis(t)
	guard := NewIdempotencyGuard(rdb, time.Hour)
	ctx := context.Background()

	key := Key("conv-1", "contest-intake-email", "2026-09-02T10:00:00Z", "alex@example.com")

	first, err := guard.Acquire(ctx, key)
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, guard.Release(ctx, key))

	again, err := guard.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, again)
}
