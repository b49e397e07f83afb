// Package graph wires the classifier, router, and handler nodes into one
// compiled Eino graph and exposes it behind the Runner interface. Every turn
// is a full pass: classify, route, handle, terminate.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/salescomp-agent/server/internal/agent/graph/conversations"
	"github.com/salescomp-agent/server/internal/agent/graph/nodes"
	"github.com/salescomp-agent/server/internal/agent/graph/observers"
	"github.com/salescomp-agent/server/internal/agent/model"
	"github.com/salescomp-agent/server/internal/agent/repo"
	"github.com/salescomp-agent/server/internal/agent/structured"
	errx "github.com/salescomp-agent/server/internal/core/error"
	"github.com/salescomp-agent/server/internal/notify"
	"github.com/salescomp-agent/server/internal/scheduling"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// schemaFailureResponse is surfaced when the model's reply never conformed to
// the expected schema within the turn. The conversation stays open.
const schemaFailureResponse = "I had trouble understanding that request. " +
	"Could you rephrase it? I can help with compensation policies, commissions, sales contests, and support tickets."

// Runner executes one conversation turn through the compiled graph.
type Runner interface {
	Invoke(ctx context.Context, in model.TurnInput) (*model.TurnOutput, error)
}

// Config holds everything needed to compose the full agent graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs ChatModels
// and MessagesManager.
type Config struct {
	APIKey          string
	BaseURL         string
	ClassifierModel model.ClassifierModelConfig
	HandlerModel    model.HandlerModelConfig
	Conversation    model.ConversationConfig
	CompPlan        model.CompPlanConfig
	Support         model.SupportConfig
	Runtime         model.RuntimeConfig
	ContestFormURL  string

	ConversationRepo model.ConversationRepository
	CheckpointRepo   model.CheckpointRepository
	Scheduler        scheduling.Scheduler
	EmailSender      notify.EmailSender
	Idempotency      *repo.IdempotencyGuard
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	Classifier      structured.Completer
	Handler         structured.Completer
	MessagesManager *conversations.MessagesManager
	Checkpoints     model.CheckpointRepository
	Scheduler       scheduling.Scheduler
	EmailSender     notify.EmailSender
	Idempotency     *repo.IdempotencyGuard
	CompPlan        model.CompPlanConfig
	Support         model.SupportConfig
	ContestFormURL  string
}

// GraphBuilder handles the construction of the agent conversation graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.TurnInput, *model.TurnOutput]
}

type agentRunner struct {
	runnable compose.Runnable[model.TurnInput, *model.TurnOutput]
	messages *conversations.MessagesManager
	runtime  model.RuntimeConfig
}

// Invoke runs one turn under the configured deadline. Transient model
// unavailability is retried with doubling backoff; a reply that never
// conformed to its schema ends the turn gracefully instead of failing it.
func (r *agentRunner) Invoke(ctx context.Context, in model.TurnInput) (*model.TurnOutput, error) {
	if in.ConversationID == "" {
		return nil, fmt.Errorf("conversation id is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, r.runtime.TurnTimeout)
	defer cancel()

	// Recorded once, before any attempt, so retries never duplicate history.
	if err := r.messages.RecordUserMessage(ctx, in.ConversationID, in.Message); err != nil {
		return nil, fmt.Errorf("failed to record user message: %w", err)
	}

	attempts := r.runtime.ModelMaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := r.runtime.ModelRetryBackoff

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
		if err == nil {
			return out, nil
		}
		lastErr = err

		if errors.Is(err, errx.ErrSchemaValidation) {
			logx.Warn().Err(err).Str("conversation_id", in.ConversationID).Msg("model output never conformed to schema")
			return &model.TurnOutput{
				ConversationID: in.ConversationID,
				Response:       schemaFailureResponse,
			}, nil
		}
		if !errors.Is(err, errx.ErrModelUnavailable) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		logx.Warn().
			Err(err).
			Str("conversation_id", in.ConversationID).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("model unavailable - retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("model unavailable after %d attempts: %w", attempts, lastErr)
}

// BuildAgentGraph composes ChatModels, MessagesManager, builds the graph, and
// returns a Runner.
func BuildAgentGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.CheckpointRepo == nil {
		return nil, fmt.Errorf("checkpoint repo is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		ClassifierConfig: &cfg.ClassifierModel,
		HandlerConfig:    &cfg.HandlerModel,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)

	runnable, err := BuildGraph(ctx, &GraphConfig{
		Classifier:      structured.NewGeminiCompleter(cms.Classifier, cms.ClassifierModelName),
		Handler:         structured.NewGeminiCompleter(cms.Handler, cms.HandlerModelName),
		MessagesManager: mm,
		Checkpoints:     cfg.CheckpointRepo,
		Scheduler:       cfg.Scheduler,
		EmailSender:     cfg.EmailSender,
		Idempotency:     cfg.Idempotency,
		CompPlan:        cfg.CompPlan,
		Support:         cfg.Support,
		ContestFormURL:  cfg.ContestFormURL,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Agent graph built successfully")
	return &agentRunner{runnable: runnable, messages: mm, runtime: cfg.Runtime}, nil
}

// BuildGraph constructs and returns the compiled agent graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.TurnInput, *model.TurnOutput], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Classifier == nil || config.Handler == nil {
		return nil, fmt.Errorf("completers are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Checkpoints == nil {
		return nil, fmt.Errorf("checkpoint repo is nil")
	}
	if err := validateWiring(config); err != nil {
		return nil, err
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.TurnInput, *model.TurnOutput](
			compose.WithGenLocalState(func(ctx context.Context) *model.AgentState {
				return &model.AgentState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// validateWiring fails startup when a valid category has no handler node or a
// handler collaborator it depends on is missing. Routing gaps must never be
// discovered mid-conversation.
func validateWiring(config *GraphConfig) error {
	for _, category := range model.ValidCategories {
		if nodes.Route(category) == nodes.NodeTerminate {
			return fmt.Errorf("%w: category %q has no handler node", errx.ErrIncompleteWiring, category)
		}
	}
	if config.Scheduler == nil {
		return fmt.Errorf("%w: contest handler requires a scheduler", errx.ErrIncompleteWiring)
	}
	if config.EmailSender == nil {
		return fmt.Errorf("%w: contest and ticket handlers require an email sender", errx.ErrIncompleteWiring)
	}
	if config.Idempotency == nil {
		return fmt.Errorf("%w: contest and ticket handlers require the idempotency guard", errx.ErrIncompleteWiring)
	}
	if config.ContestFormURL == "" {
		return fmt.Errorf("%w: contest form URL is empty", errx.ErrIncompleteWiring)
	}
	return nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	handlerPost := nodes.NewHandlerPostHandler(b.config.Checkpoints, b.config.MessagesManager)

	b.graph.AddLambdaNode(nodes.NodeClassifier,
		nodes.NewClassifierNode(b.config.Classifier),
		compose.WithStatePreHandler(nodes.NewClassifierPreHandler(b.config.Checkpoints)),
		compose.WithStatePostHandler(nodes.NewClassifierPostHandler(b.config.Checkpoints)),
	)

	b.graph.AddLambdaNode(nodes.NodePolicy,
		nodes.NewPolicyNode(b.config.Handler),
		compose.WithStatePostHandler(handlerPost),
	)

	b.graph.AddLambdaNode(nodes.NodeCommission,
		nodes.NewCommissionNode(b.config.Handler, b.config.CompPlan),
		compose.WithStatePostHandler(handlerPost),
	)

	b.graph.AddLambdaNode(nodes.NodeContest,
		nodes.NewContestNode(nodes.ContestDeps{
			Completer:      b.config.Handler,
			Messages:       b.config.MessagesManager,
			Scheduler:      b.config.Scheduler,
			EmailSender:    b.config.EmailSender,
			Idempotency:    b.config.Idempotency,
			ContestFormURL: b.config.ContestFormURL,
			FromEmail:      b.config.Support.FromEmail,
		}),
		compose.WithStatePostHandler(handlerPost),
	)

	b.graph.AddLambdaNode(nodes.NodeTicket,
		nodes.NewTicketNode(nodes.TicketDeps{
			Completer:   b.config.Handler,
			Messages:    b.config.MessagesManager,
			EmailSender: b.config.EmailSender,
			Idempotency: b.config.Idempotency,
			Support:     b.config.Support,
		}),
		compose.WithStatePostHandler(handlerPost),
	)

	b.graph.AddLambdaNode(nodes.NodeClarify,
		nodes.NewClarifyNode(b.config.Handler),
		compose.WithStatePostHandler(handlerPost),
	)

	b.graph.AddLambdaNode(nodes.NodeTerminate,
		nodes.NewTerminateNode(),
		compose.WithStatePostHandler(handlerPost),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeClassifier},
		{nodes.NodePolicy, compose.END},
		{nodes.NodeCommission, compose.END},
		{nodes.NodeContest, compose.END},
		{nodes.NodeTicket, compose.END},
		{nodes.NodeClarify, compose.END},
		{nodes.NodeTerminate, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the routing branch after classification
func (b *GraphBuilder) addBranches() error {
	routeBranch := compose.NewGraphBranch(
		nodes.NewRouteCondition(),
		map[string]bool{
			nodes.NodePolicy:     true,
			nodes.NodeCommission: true,
			nodes.NodeContest:    true,
			nodes.NodeTicket:     true,
			nodes.NodeClarify:    true,
			nodes.NodeTerminate:  true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeClassifier, routeBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding routing branch")
		return fmt.Errorf("error adding routing branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.TurnInput, *model.TurnOutput], error) {
	// Every turn is one linear pass: classify, route, handle.
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
