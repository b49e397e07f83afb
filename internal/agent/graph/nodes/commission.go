package nodes

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/salescomp-agent/server/internal/agent/graph/prompts"
	"github.com/salescomp-agent/server/internal/agent/model"
	"github.com/salescomp-agent/server/internal/agent/structured"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// NewCommissionNode answers commission questions. The rate is derived in
// code from the fixed plan constants; the model supplies the explanation and
// its commission field is cross-checked against the deterministic value.
func NewCommissionNode(completer structured.Completer, plan model.CompPlanConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.CategoryResult) (*model.TurnOutput, error) {
		var initialMessage string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			initialMessage = s.InitialMessage
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		instruction, err := prompts.RenderCommissionSystem(ctx, plan)
		if err != nil {
			return nil, err
		}

		var result model.CommissionResult
		usage, err := completer.Invoke(ctx, instruction, []*schema.Message{schema.UserMessage(initialMessage)}, &result)
		recordUsage(ctx, NodeCommission, completer.ModelName(), usage)
		if err != nil {
			return nil, err
		}

		rate := plan.Rate()
		if !commissionMatchesRate(result.Commission, rate) {
			logx.Warn().
				Str("model_commission", result.Commission).
				Float64("derived_rate", rate).
				Msg("model commission disagrees with derived rate - overriding")
		}

		response := fmt.Sprintf("%s\n\nCalculation: %s\nCommission rate: %s",
			result.Response, result.Calculation, strconv.FormatFloat(rate, 'g', -1, 64))

		out := &model.TurnOutput{
			AuditLabel: result.Calculation,
			LNode:      NodeCommission,
			Response:   response,
		}
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			s.LNode = NodeCommission
			s.AuditLabel = result.Calculation
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

// commissionMatchesRate reports whether the model's commission field agrees
// with the derived rate, accepting the plain fraction or its percentage form.
func commissionMatchesRate(commission string, rate float64) bool {
	s := strings.TrimSpace(commission)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "$")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return false
	}
	const eps = 1e-9
	return math.Abs(v-rate) < eps || math.Abs(v-rate*100) < eps
}
