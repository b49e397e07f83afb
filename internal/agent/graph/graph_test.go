package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salescomp-agent/server/internal/agent/graph/conversations"
	"github.com/salescomp-agent/server/internal/agent/graph/nodes"
	"github.com/salescomp-agent/server/internal/agent/model"
	"github.com/salescomp-agent/server/internal/agent/repo"
	errx "github.com/salescomp-agent/server/internal/core/error"
	"github.com/salescomp-agent/server/internal/notify"
	"github.com/salescomp-agent/server/internal/scheduling"
)

// fakeCompleter serves canned structured payloads (or errors) in order.
type fakeCompleter struct {
	payloads      []string
	completeReply string
	errs          []error
}

func (f *fakeCompleter) Invoke(ctx context.Context, instruction string, history []*schema.Message, out model.Schema) (*schema.TokenUsage, error) {
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(f.payloads) == 0 {
		return nil, fmt.Errorf("%w: no payload queued", errx.ErrSchemaValidation)
	}
	payload := f.payloads[0]
	f.payloads = f.payloads[1:]
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return nil, fmt.Errorf("%w: %v", errx.ErrSchemaValidation, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errx.ErrSchemaValidation, err)
	}
	return nil, nil
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, *schema.TokenUsage, error) {
	return f.completeReply, nil, nil
}

func (f *fakeCompleter) ModelName() string { return "fake-model" }

type nullSender struct{}

func (nullSender) Send(ctx context.Context, msg notify.EmailMessage) error { return nil }

type testFixture struct {
	rdb         redis.Cmdable
	messages    *conversations.MessagesManager
	checkpoints model.CheckpointRepository
	config      *GraphConfig
}

func newFixture(t *testing.T, classifier, handler *fakeCompleter) *testFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	var convCfg model.ConversationConfig
	convCfg.TTL = "24h"
	convCfg.History.MaxTurns = 12

	mm := conversations.NewMessagesManager(repo.NewRedisConversationRepository(rdb, time.Hour), convCfg)
	checkpoints := repo.NewRedisCheckpointRepository(rdb, time.Hour)

	return &testFixture{
		rdb:         rdb,
		messages:    mm,
		checkpoints: checkpoints,
		config: &GraphConfig{
			Classifier:      classifier,
			Handler:         handler,
			MessagesManager: mm,
			Checkpoints:     checkpoints,
			Scheduler:       scheduling.NewStaticScheduler(3),
			EmailSender:     nullSender{},
			Idempotency:     repo.NewIdempotencyGuard(rdb, time.Hour),
			CompPlan:        model.CompPlanConfig{OnTargetIncentive: 100000, AnnualQuota: 2000000},
			Support:         model.SupportConfig{FromEmail: "agent@example.com", TeamEmail: "support@example.com"},
			ContestFormURL:  "https://forms.example.com/contest-intake",
		},
	}
}

func TestGraphRoutesPolicyTurn(t *testing.T) {
	classifier := &fakeCompleter{payloads: []string{`{"category": "policy"}`}}
	handler := &fakeCompleter{payloads: []string{
		`{"policy": "Leave of absence", "response": "Commissions continue during protected leave."}`,
	}}
	fx := newFixture(t, classifier, handler)

	runnable, err := BuildGraph(context.Background(), fx.config)
	require.NoError(t, err)

	out, err := runnable.Invoke(context.Background(), model.TurnInput{
		ConversationID: "conv-1",
		Message:        "what happens to my commissions on leave?",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPolicy, out.Category)
	assert.Equal(t, model.PolicyLeaveOfAbsence, out.AuditLabel)
	assert.Contains(t, out.Response, "Source: Leave of absence")

	// The handler step was checkpointed.
	cp, err := fx.checkpoints.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPolicy, cp.ClassifiedCategory)
	assert.Equal(t, nodes.NodePolicy, cp.LNode)
}

func TestGraphTerminatesUnknownCategory(t *testing.T) {
	classifier := &fakeCompleter{payloads: []string{`{"category": "weather"}`}}
	handler := &fakeCompleter{}
	fx := newFixture(t, classifier, handler)

	runnable, err := BuildGraph(context.Background(), fx.config)
	require.NoError(t, err)

	out, err := runnable.Invoke(context.Background(), model.TurnInput{
		ConversationID: "conv-1",
		Message:        "will it rain tomorrow?",
	})
	require.NoError(t, err)
	assert.Equal(t, nodes.NodeTerminate, out.LNode)
	assert.Equal(t, nodes.TerminateResponse, out.Response)
	assert.Equal(t, "weather", out.Category)
}

func TestGraphRestoresTicketFlagAcrossTurns(t *testing.T) {
	classifier := &fakeCompleter{payloads: []string{
		`{"category": "ticket"}`,
		`{"category": "ticket"}`,
	}}
	handler := &fakeCompleter{payloads: []string{
		`{"response": "Filed a ticket about your payout.", "createTicket": true}`,
		`{"response": "summary", "htmlEmail": "<p>Payout case.</p>"}`,
	}}
	fx := newFixture(t, classifier, handler)

	runnable, err := BuildGraph(context.Background(), fx.config)
	require.NoError(t, err)

	ctx := context.Background()
	out, err := runnable.Invoke(ctx, model.TurnInput{ConversationID: "conv-1", Message: "my payout is wrong"})
	require.NoError(t, err)
	assert.Equal(t, true, out.Extra["ticket_created"])

	// Second turn: the checkpoint restores TicketCreated and the handler
	// short-circuits without another model call or email.
	out, err = runnable.Invoke(ctx, model.TurnInput{ConversationID: "conv-1", Message: "any update?"})
	require.NoError(t, err)
	assert.Contains(t, out.Response, "already been filed")
}

func TestBuildGraphRejectsIncompleteWiring(t *testing.T) {
	fx := newFixture(t, &fakeCompleter{}, &fakeCompleter{})

	fx.config.ContestFormURL = ""
	_, err := BuildGraph(context.Background(), fx.config)
	require.Error(t, err)
	assert.ErrorIs(t, err, errx.ErrIncompleteWiring)

	fx.config.ContestFormURL = "https://forms.example.com/contest-intake"
	fx.config.Scheduler = nil
	_, err = BuildGraph(context.Background(), fx.config)
	assert.ErrorIs(t, err, errx.ErrIncompleteWiring)
}

// fakeRunnable scripts outcomes for the runner's retry policy.
type fakeRunnable struct {
	outcomes []error
	out      *model.TurnOutput
	calls    int
}

func (f *fakeRunnable) Invoke(ctx context.Context, in model.TurnInput, opts ...compose.Option) (*model.TurnOutput, error) {
	f.calls++
	if len(f.outcomes) > 0 {
		err := f.outcomes[0]
		f.outcomes = f.outcomes[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.out, nil
}

func (f *fakeRunnable) Stream(ctx context.Context, in model.TurnInput, opts ...compose.Option) (*schema.StreamReader[*model.TurnOutput], error) {
	return nil, fmt.Errorf("stream not supported")
}

func (f *fakeRunnable) Collect(ctx context.Context, in *schema.StreamReader[model.TurnInput], opts ...compose.Option) (*model.TurnOutput, error) {
	return nil, fmt.Errorf("collect not supported")
}

func (f *fakeRunnable) Transform(ctx context.Context, in *schema.StreamReader[model.TurnInput], opts ...compose.Option) (*schema.StreamReader[*model.TurnOutput], error) {
	return nil, fmt.Errorf("transform not supported")
}

func newTestRunner(t *testing.T, runnable compose.Runnable[model.TurnInput, *model.TurnOutput]) *agentRunner {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	var convCfg model.ConversationConfig
	convCfg.TTL = "24h"
	convCfg.History.MaxTurns = 12
	return &agentRunner{
		runnable: runnable,
		messages: conversations.NewMessagesManager(repo.NewRedisConversationRepository(rdb, time.Hour), convCfg),
		runtime: model.RuntimeConfig{
			TurnTimeout:       5 * time.Second,
			ModelMaxAttempts:  3,
			ModelRetryBackoff: time.Millisecond,
		},
	}
}

func TestRunnerRetriesModelUnavailable(t *testing.T) {
	fr := &fakeRunnable{
		outcomes: []error{
			fmt.Errorf("%w: 503", errx.ErrModelUnavailable),
			fmt.Errorf("%w: 503", errx.ErrModelUnavailable),
			nil,
		},
		out: &model.TurnOutput{ConversationID: "conv-1", Response: "done"},
	}
	runner := newTestRunner(t, fr)

	out, err := runner.Invoke(context.Background(), model.TurnInput{ConversationID: "conv-1", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "done", out.Response)
	assert.Equal(t, 3, fr.calls)
}

func TestRunnerGivesUpAfterMaxAttempts(t *testing.T) {
	fr := &fakeRunnable{
		outcomes: []error{
			fmt.Errorf("%w: 503", errx.ErrModelUnavailable),
			fmt.Errorf("%w: 503", errx.ErrModelUnavailable),
			fmt.Errorf("%w: 503", errx.ErrModelUnavailable),
		},
	}
	runner := newTestRunner(t, fr)

	_, err := runner.Invoke(context.Background(), model.TurnInput{ConversationID: "conv-1", Message: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errx.ErrModelUnavailable)
	assert.Equal(t, 3, fr.calls)
}

func TestRunnerEndsTurnGracefullyOnSchemaFailure(t *testing.T) {
	fr := &fakeRunnable{
		outcomes: []error{fmt.Errorf("%w: bad json", errx.ErrSchemaValidation)},
	}
	runner := newTestRunner(t, fr)

	out, err := runner.Invoke(context.Background(), model.TurnInput{ConversationID: "conv-1", Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, schemaFailureResponse, out.Response)
	assert.Equal(t, 1, fr.calls)
}

func TestRunnerDoesNotRetryOtherErrors(t *testing.T) {
	fr := &fakeRunnable{
		outcomes: []error{fmt.Errorf("boom")},
	}
	runner := newTestRunner(t, fr)

	_, err := runner.Invoke(context.Background(), model.TurnInput{ConversationID: "conv-1", Message: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, fr.calls)
}

func TestRunnerRejectsEmptyConversationID(t *testing.T) {
	runner := newTestRunner(t, &fakeRunnable{out: &model.TurnOutput{}})

	_, err := runner.Invoke(context.Background(), model.TurnInput{Message: "hi"})
	assert.Error(t, err)
}
