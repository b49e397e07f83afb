package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/salescomp-agent/server/internal/agent/graph"
	"github.com/salescomp-agent/server/internal/agent/model"
	"github.com/salescomp-agent/server/internal/agent/repo"
	"github.com/salescomp-agent/server/internal/core"
	"github.com/salescomp-agent/server/internal/notify"
	"github.com/salescomp-agent/server/internal/scheduling"
	logx "github.com/salescomp-agent/server/pkg/logger"
	pkgredis "github.com/salescomp-agent/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the agent example,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Collaborators
	SendGridAPIKey string `envconfig:"SENDGRID_API_KEY"`
	SchedulerDays  int    `envconfig:"SCHEDULER_DAYS" default:"3"`

	// Agent configs
	Classifier   model.ClassifierModelConfig
	Handler      model.HandlerModelConfig
	Conversation model.ConversationConfig
	CompPlan     model.CompPlanConfig
	Support      model.SupportConfig
	Contest      model.ContestConfig
	Runtime      model.RuntimeConfig
}

func main() {
	fmt.Println("Sales Comp Support Agent...")
	ctx := context.Background()

	// Load .env file
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(os.Getenv("ENVIRONMENT"))})

	// Load structured config from env
	var envCfg AppConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	rdb, err := envCfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	fmt.Println("Connected to Redis successfully")

	// Contest form URL is loaded once at startup; a missing file is fatal so a
	// broken contest flow is never discovered mid-conversation.
	formURLRaw, err := os.ReadFile(envCfg.Contest.FormURLFile)
	if err != nil {
		log.Fatalf("Failed to read contest form URL file %q: %v", envCfg.Contest.FormURLFile, err)
	}
	contestFormURL := strings.TrimSpace(string(formURLRaw))
	if contestFormURL == "" {
		log.Fatalf("Contest form URL file %q is empty", envCfg.Contest.FormURLFile)
	}

	ttl, err := time.ParseDuration(envCfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL '%s': %v", envCfg.Conversation.TTL, err)
	}

	var emailSender notify.EmailSender = notify.NewStubSender()
	if sg := notify.NewSendGridSender(envCfg.SendGridAPIKey); sg != nil {
		emailSender = sg
	} else {
		log.Printf("Warning: SENDGRID_API_KEY not set - using stub email sender")
	}

	cfg := graph.Config{
		APIKey:           envCfg.APIKey,
		BaseURL:          envCfg.BaseURL,
		ClassifierModel:  envCfg.Classifier,
		HandlerModel:     envCfg.Handler,
		Conversation:     envCfg.Conversation,
		CompPlan:         envCfg.CompPlan,
		Support:          envCfg.Support,
		Runtime:          envCfg.Runtime,
		ContestFormURL:   contestFormURL,
		ConversationRepo: repo.NewRedisConversationRepository(rdb, ttl),
		CheckpointRepo:   repo.NewRedisCheckpointRepository(rdb, ttl),
		Scheduler:        scheduling.NewStaticScheduler(envCfg.SchedulerDays),
		EmailSender:      emailSender,
		Idempotency:      repo.NewIdempotencyGuard(rdb, ttl),
	}

	runner, err := graph.BuildAgentGraph(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}

	testQueries := []struct {
		description string
		query       string
	}{
		{
			description: "Policy question",
			query:       "What happens to my commission if my customer churns before paying?",
		},
		{
			description: "Commission math",
			query:       "I closed a $150,000 deal - what commission do I earn on it?",
		},
		{
			description: "Contest signup",
			query:       "I want to join the Q3 sales contest. My name is Alex Doe, email alex@example.com.",
		},
		{
			description: "Escalation to a ticket",
			query:       "My September payout is missing a $30,000 deal and nobody can explain why.",
		},
	}

	conversationID := uuid.NewString()

	for i, test := range testQueries {
		fmt.Printf("\nTest %d: %s\n", i+1, test.description)
		fmt.Printf("Query: \"%s\"\n", test.query)
		fmt.Println("Processing...")

		out, err := runner.Invoke(ctx, model.TurnInput{
			ConversationID: conversationID,
			Message:        test.query,
		})
		if err != nil {
			log.Fatalf("Failed to invoke graph for test %d: %v", i+1, err)
		}

		fmt.Printf("Category: %s | Label: %s\n", out.Category, out.AuditLabel)
		fmt.Printf("Response %d: %s\n", i+1, out.Response)
		fmt.Println("-----------------------------------------------")

		// add slight delay between tests for readability
		time.Sleep(500 * time.Millisecond)
	}

	fmt.Println("All turns completed successfully!")
}
