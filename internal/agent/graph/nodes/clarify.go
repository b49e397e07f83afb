package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/salescomp-agent/server/internal/agent/graph/prompts"
	"github.com/salescomp-agent/server/internal/agent/model"
	"github.com/salescomp-agent/server/internal/agent/structured"
)

// NewClarifyNode asks the user to restate an ambiguous or off-topic request.
// Plain completion, no side effects.
func NewClarifyNode(completer structured.Completer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.CategoryResult) (*model.TurnOutput, error) {
		var initialMessage string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			initialMessage = s.InitialMessage
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		clarifyPrompt, err := prompts.RenderClarify(ctx, initialMessage)
		if err != nil {
			return nil, err
		}

		response, usage, err := completer.Complete(ctx, clarifyPrompt)
		recordUsage(ctx, NodeClarify, completer.ModelName(), usage)
		if err != nil {
			return nil, err
		}

		out := &model.TurnOutput{
			AuditLabel: model.CategoryClarify,
			LNode:      NodeClarify,
			Response:   response,
		}
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			s.LNode = NodeClarify
			s.AuditLabel = model.CategoryClarify
			s.ResponseToUser = response
			out.ConversationID = s.ConversationID
			out.Category = s.ClassifiedCategory
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update state: %w", err)
		}
		return out, nil
	})
}
