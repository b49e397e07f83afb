package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/salescomp-agent/server/internal/agent/graph/prompts"
	"github.com/salescomp-agent/server/internal/agent/model"
	"github.com/salescomp-agent/server/internal/agent/structured"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// NewPolicyNode answers questions about the four fixed compensation policies.
// One structured call; the applied policy name becomes the audit label, never
// the classified category.
func NewPolicyNode(completer structured.Completer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.CategoryResult) (*model.TurnOutput, error) {
		var initialMessage string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			initialMessage = s.InitialMessage
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		instruction, err := prompts.RenderPolicySystem(ctx)
		if err != nil {
			return nil, err
		}

		var result model.PolicyResult
		usage, err := completer.Invoke(ctx, instruction, []*schema.Message{schema.UserMessage(initialMessage)}, &result)
		recordUsage(ctx, NodePolicy, completer.ModelName(), usage)
		if err != nil {
			return nil, err
		}

		logx.Debug().
			Str("policy", result.Policy).
			Msg("policy handler resolved")

		response := fmt.Sprintf("%s\n\nSource: %s", result.Response, result.Policy)

		out := &model.TurnOutput{
			AuditLabel: result.Policy,
			LNode:      NodePolicy,
			Response:   response,
		}
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			s.LNode = NodePolicy
			s.AuditLabel = result.Policy
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
