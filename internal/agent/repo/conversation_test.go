package repo

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationRepositoryAppendAndLoad(t *testing.T) {
	rdb := newTestRedis(t)
	repo := NewRedisConversationRepository(rdb, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.AddMessage(ctx, "conv-1", schema.UserMessage("hello")))
	require.NoError(t, repo.AddMessage(ctx, "conv-1", schema.AssistantMessage("hi, how can I help?", nil)))

	history, err := repo.LoadHistory(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, schema.User, history.Messages[0].Role)
	assert.Equal(t, "hello", history.Messages[0].Content)
	assert.Equal(t, schema.Assistant, history.Messages[1].Role)

	count, err := repo.GetMessageCount(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestConversationRepositoryEmptyHistory(t *testing.T) {
	rdb := newTestRedis(t)
	repo := NewRedisConversationRepository(rdb, time.Hour)

	history, err := repo.LoadHistory(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, history.Messages)
}

func TestConversationRepositoryClearHistory(t *testing.T) {
	rdb := newTestRedis(t)
	repo := NewRedisConversationRepository(rdb, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.AddMessage(ctx, "conv-2", schema.UserMessage("hello")))
	require.NoError(t, repo.ClearHistory(ctx, "conv-2"))

	count, err := repo.GetMessageCount(ctx, "conv-2")
	require.NoError(t, err)
	assert.Zero(t, count)
}
