// Package nodes holds the Eino graph nodes of the intent-routing agent:
// the classifier, the router branch, one handler node per category, and the
// terminate node for unroutable classifications.
package nodes

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/salescomp-agent/server/internal/agent/graph/conversations"
	"github.com/salescomp-agent/server/internal/agent/graph/prompts"
	"github.com/salescomp-agent/server/internal/agent/model"
	"github.com/salescomp-agent/server/internal/agent/structured"
	errx "github.com/salescomp-agent/server/internal/core/error"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// Graph node identifiers.
const (
	NodeClassifier = "classifier"
	NodePolicy     = "policy"
	NodeCommission = "commission"
	NodeContest    = "contest"
	NodeTicket     = "ticket"
	NodeClarify    = "clarify"
	NodeTerminate  = "terminate"
)

// TerminateResponse is surfaced when classification lands outside the valid
// category set and the conversation ends without dispatching a handler.
const TerminateResponse = "I'm not sure how to help with that. Could you rephrase your request? " +
	"I can answer questions about compensation policies, commissions, sales contests, and support tickets."

// NewClassifierPreHandler seeds per-turn state from the input and, when a
// checkpoint exists, restores the cross-turn fields so a conversation resumes
// from its last completed step.
func NewClassifierPreHandler(checkpoints model.CheckpointRepository) func(context.Context, model.TurnInput, *model.AgentState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.AgentState) (model.TurnInput, error) {
		s.ConversationID = in.ConversationID
		s.InitialMessage = in.Message
		// Reset per-turn fields
		s.ClassifiedCategory = ""
		s.AuditLabel = ""
		s.ResponseToUser = ""
		s.TotalCostUSD = 0

		cp, err := checkpoints.Load(ctx, in.ConversationID)
		if err != nil {
			if errors.Is(err, errx.ErrNotFound) {
				return in, nil
			}
			return in, err
		}
		s.Seed(cp)
		return in, nil
	}
}

// NewClassifierNode creates the classification node. The call is single-shot:
// no voting, no confidence threshold; set membership is enforced only
// downstream by the router.
func NewClassifierNode(completer structured.Completer) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.TurnInput) (model.CategoryResult, error) {
		instruction, err := prompts.RenderClassifierSystem(ctx)
		if err != nil {
			return model.CategoryResult{}, err
		}

		var result model.CategoryResult
		usage, err := completer.Invoke(ctx, instruction, []*schema.Message{schema.UserMessage(input.Message)}, &result)
		recordUsage(ctx, NodeClassifier, completer.ModelName(), usage)
		if err != nil {
			return model.CategoryResult{}, err
		}

		result.Category = strings.TrimSpace(result.Category)
		logx.Debug().
			Str("conversation_id", input.ConversationID).
			Str("category", result.Category).
			Msg("classification complete")
		return result, nil
	})
}

// NewClassifierPostHandler records the classification into state and
// checkpoints the completed step.
func NewClassifierPostHandler(checkpoints model.CheckpointRepository) func(context.Context, model.CategoryResult, *model.AgentState) (model.CategoryResult, error) {
	return func(ctx context.Context, out model.CategoryResult, s *model.AgentState) (model.CategoryResult, error) {
		s.ClassifiedCategory = out.Category
		s.LNode = NodeClassifier

		if err := checkpoints.Save(ctx, s.ConversationID, s.Snapshot()); err != nil {
			logx.Error().Err(err).Str("conversation_id", s.ConversationID).Msg("failed to checkpoint classifier step")
		}
		return out, nil
	}
}

// NewTerminateNode ends a conversation whose classification fell outside the
// valid category set: diagnostic log, generic clarification prompt, no
// handler dispatched.
func NewTerminateNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.CategoryResult) (*model.TurnOutput, error) {
		logx.Warn().
			Str("category", input.Category).
			Err(errx.ErrClassification).
			Msg("terminating conversation without handler dispatch")

		out := &model.TurnOutput{
			LNode:    NodeTerminate,
			Response: TerminateResponse,
		}
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			s.LNode = NodeTerminate
			s.ResponseToUser = TerminateResponse
			out.ConversationID = s.ConversationID
			out.Category = s.ClassifiedCategory
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	})
}

// NewHandlerPostHandler checkpoints the handler step, appends the assistant
// reply to conversation history, and stamps the accumulated usage cost onto
// the turn output. Shared by every handler node and the terminate node.
func NewHandlerPostHandler(checkpoints model.CheckpointRepository, mm *conversations.MessagesManager) func(context.Context, *model.TurnOutput, *model.AgentState) (*model.TurnOutput, error) {
	return func(ctx context.Context, out *model.TurnOutput, s *model.AgentState) (*model.TurnOutput, error) {
		if out == nil {
			return nil, errors.New("handler produced no output")
		}

		if model.CostEnabled() && s.TotalCostUSD > 0 {
			if out.Extra == nil {
				out.Extra = map[string]any{}
			}
			out.Extra["usage_cost_total_usd"] = s.TotalCostUSD
		}

		if err := checkpoints.Save(ctx, s.ConversationID, s.Snapshot()); err != nil {
			logx.Error().Err(err).Str("conversation_id", s.ConversationID).Msg("failed to checkpoint handler step")
		}

		if strings.TrimSpace(out.Response) != "" {
			if err := mm.SaveResponse(ctx, s.ConversationID, out.Response); err != nil {
				logx.Error().Err(err).Str("conversation_id", s.ConversationID).Msg("failed to save assistant response")
			}
		}

		return out, nil
	}
}

// recordUsage accumulates model usage cost into per-turn state and logs it.
func recordUsage(ctx context.Context, node, modelName string, usage *schema.TokenUsage) {
	if !model.CostEnabled() || usage == nil {
		return
	}
	pricing := model.ResolvePricing(modelName)
	inC, outC, totalC := model.ComputeCost(usage, pricing)
	logx.Debug().
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")

	if err := compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
		s.TotalCostUSD += totalC
		return nil
	}); err != nil {
		logx.Debug().Err(err).Msg("usage cost not accumulated outside graph run")
	}
}
