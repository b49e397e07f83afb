package nodes

import (
	"context"

	"github.com/salescomp-agent/server/internal/agent/model"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// categoryToNode binds each valid category to its handler node.
var categoryToNode = map[string]string{
	model.CategoryPolicy:     NodePolicy,
	model.CategoryCommission: NodeCommission,
	model.CategoryContest:    NodeContest,
	model.CategoryTicket:     NodeTicket,
	model.CategoryClarify:    NodeClarify,
}

// Route maps a classified category to the handler node that serves it.
// It is pure, deterministic, and total over all strings: anything outside the
// five valid categories routes to the terminate node.
func Route(category string) string {
	if node, ok := categoryToNode[category]; ok {
		return node
	}
	return NodeTerminate
}

// NewRouteCondition wraps Route as the branch condition after the classifier.
func NewRouteCondition() func(context.Context, model.CategoryResult) (string, error) {
	return func(ctx context.Context, input model.CategoryResult) (string, error) {
		node := Route(input.Category)
		if node == NodeTerminate {
			logx.Warn().Str("category", input.Category).Msg("unknown category - routing to terminate")
		} else {
			logx.Debug().Str("category", input.Category).Str("node", node).Msg("routing to handler")
		}
		return node, nil
	}
}
