package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/salescomp-agent/server/internal/agent/model"
)

type MessagesManager struct {
	conversationRepo model.ConversationRepository
	historyMaxTurns  int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		historyMaxTurns:  config.History.MaxTurns,
	}
}

// RecordUserMessage appends the triggering user message for this turn.
// Called once per turn before the graph runs, so a retried turn does not
// duplicate the message in history.
func (m *MessagesManager) RecordUserMessage(ctx context.Context, conversationID string, message string) error {
	return m.conversationRepo.AddMessage(ctx, conversationID, schema.UserMessage(message))
}

// HandlerHistory loads the recent conversation window handlers pass to their
// model calls. Conversation history is the only continuity mechanism between
// turns; the window is trimmed so long conversations cannot overflow context.
func (m *MessagesManager) HandlerHistory(ctx context.Context, conversationID string) ([]*schema.Message, error) {
	history, err := m.conversationRepo.LoadHistory(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	recent := trimTail(history.Messages, m.historyMaxTurns)

	messages := make([]*schema.Message, 0, len(recent))
	for _, msg := range recent {
		if msg == nil || msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User, schema.Assistant:
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// SaveResponse appends the assistant reply that ended the turn.
func (m *MessagesManager) SaveResponse(ctx context.Context, conversationID string, content string) error {
	assistantMsg := schema.AssistantMessage(content, nil)
	return m.conversationRepo.AddMessage(ctx, conversationID, assistantMsg)
}

// ====================== Helper function ======================
func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if maxTurns <= 0 || len(messages) <= maxTurns {
		result := make([]*schema.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]*schema.Message, len(source))
	copy(result, source)
	return result
}
