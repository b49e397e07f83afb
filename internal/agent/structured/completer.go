// Package structured constrains chat-model calls to schema-conforming
// output. It is the one primitive every handler depends on: an instruction
// plus conversation history in, a validated record out, or a typed error.
package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/salescomp-agent/server/internal/agent/model"
	errx "github.com/salescomp-agent/server/internal/core/error"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// Completer invokes a language model constrained to a declared schema.
// Neither method caches or retries: every call is a fresh request, and the
// caller owns the retry policy.
type Completer interface {
	// Invoke runs a structured call. The decoded value is written into out
	// and validated; a non-conforming reply yields an error matching
	// errx.ErrSchemaValidation, a transport/provider failure one matching
	// errx.ErrModelUnavailable.
	Invoke(ctx context.Context, instruction string, history []*schema.Message, out model.Schema) (*schema.TokenUsage, error)

	// Complete runs a plain free-text completion.
	Complete(ctx context.Context, prompt string) (string, *schema.TokenUsage, error)

	// ModelName reports the underlying model identifier, used for cost
	// accounting.
	ModelName() string
}

// jsonDirective is appended to every structured instruction. The per-call
// instruction describes the fields; this enforces the envelope.
const jsonDirective = "\n\nReply with exactly one JSON object containing only the fields described above. " +
	"Do not add any other fields, prose, or markdown outside the JSON object."

// GeminiCompleter implements Completer over an Eino chat model.
type GeminiCompleter struct {
	chatModel einomodel.BaseChatModel
	modelName string
}

// NewGeminiCompleter wraps an Eino chat model for structured invocation.
func NewGeminiCompleter(chatModel einomodel.BaseChatModel, modelName string) *GeminiCompleter {
	return &GeminiCompleter{chatModel: chatModel, modelName: modelName}
}

// ModelName reports the underlying model identifier, used for cost accounting.
func (c *GeminiCompleter) ModelName() string {
	return c.modelName
}

func (c *GeminiCompleter) Invoke(ctx context.Context, instruction string, history []*schema.Message, out model.Schema) (*schema.TokenUsage, error) {
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(instruction+jsonDirective))
	messages = append(messages, history...)

	resp, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		logx.Error().Err(err).Str("model", c.modelName).Msg("structured completion transport failure")
		return nil, fmt.Errorf("%w: %v", errx.ErrModelUnavailable, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%w: empty model response", errx.ErrSchemaValidation)
	}

	payload, err := extractJSON(resp.Content)
	if err != nil {
		return usageOf(resp), fmt.Errorf("%w: %v", errx.ErrSchemaValidation, err)
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		logx.Warn().Err(err).Str("model", c.modelName).Msg("structured output failed strict decode")
		return usageOf(resp), fmt.Errorf("%w: %v", errx.ErrSchemaValidation, err)
	}
	if err := out.Validate(); err != nil {
		logx.Warn().Err(err).Str("model", c.modelName).Msg("structured output failed validation")
		return usageOf(resp), fmt.Errorf("%w: %v", errx.ErrSchemaValidation, err)
	}

	return usageOf(resp), nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, *schema.TokenUsage, error) {
	resp, err := c.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		logx.Error().Err(err).Str("model", c.modelName).Msg("plain completion transport failure")
		return "", nil, fmt.Errorf("%w: %v", errx.ErrModelUnavailable, err)
	}
	if resp == nil {
		return "", nil, fmt.Errorf("%w: empty model response", errx.ErrModelUnavailable)
	}
	return resp.Content, usageOf(resp), nil
}

// extractJSON locates the JSON object in a model reply, tolerating markdown
// code fences and leading/trailing chatter around the object itself.
func extractJSON(content string) (string, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model reply")
	}
	return s[start : end+1], nil
}

func usageOf(resp *schema.Message) *schema.TokenUsage {
	if resp == nil || resp.ResponseMeta == nil {
		return nil
	}
	return resp.ResponseMeta.Usage
}

var _ Completer = (*GeminiCompleter)(nil)
