package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/salescomp-agent/server/internal/agent/model"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey           string
	BaseURL          string
	ClassifierConfig *model.ClassifierModelConfig
	HandlerConfig    *model.HandlerModelConfig
}

// ChatModels holds the classifier and handler chat models
type ChatModels struct {
	Classifier          *gemini.ChatModel
	Handler             *gemini.ChatModel
	ClassifierModelName string
	HandlerModelName    string
}

// NewChatModels creates both chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {

	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	// Classifier model: deterministic single-shot classification
	classifierModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ClassifierConfig.Model,
		Temperature: &config.ClassifierConfig.Temperature,
		MaxTokens:   &config.ClassifierConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	// Handler model: drives every handler's structured and plain calls
	handlerModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.HandlerConfig.Model,
		Temperature: &config.HandlerConfig.Temperature,
		MaxTokens:   &config.HandlerConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating handler model")
		return nil, fmt.Errorf("error creating handler model: %w", err)
	}

	return &ChatModels{
		Classifier:          classifierModel,
		Handler:             handlerModel,
		ClassifierModelName: config.ClassifierConfig.Model,
		HandlerModelName:    config.HandlerConfig.Model,
	}, nil
}
