// Package prompts renders the system instructions for the classifier and
// every handler. Templates are embedded and rendered through the Eino prompt
// component so prompt callbacks fire on every render.
package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/salescomp-agent/server/internal/agent/model"
)

//go:embed template/classifier_prompt.txt
var classifierSystemPrompt string

//go:embed template/policy_prompt.txt
var policySystemPrompt string

//go:embed template/commission_prompt.txt
var commissionSystemPrompt string

//go:embed template/contest_prompt.txt
var contestSystemPrompt string

//go:embed template/slot_list_prompt.txt
var slotListPrompt string

//go:embed template/ticket_prompt.txt
var ticketSystemPrompt string

//go:embed template/ticket_email_prompt.txt
var ticketEmailSystemPrompt string

//go:embed template/clarify_prompt.txt
var clarifyPrompt string

// RenderClassifierSystem returns the classification instruction enumerating
// the five categories.
func RenderClassifierSystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, classifierSystemPrompt)
}

// RenderPolicySystem returns the policy handler instruction enumerating the
// four fixed policies.
func RenderPolicySystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, policySystemPrompt)
}

// RenderCommissionSystem substitutes the fixed compensation plan constants
// and the code-derived rate into the commission instruction.
func RenderCommissionSystem(ctx context.Context, plan model.CompPlanConfig) (string, error) {
	content := strings.NewReplacer(
		"{on_target_incentive}", strconv.FormatFloat(plan.OnTargetIncentive, 'f', -1, 64),
		"{annual_quota}", strconv.FormatFloat(plan.AnnualQuota, 'f', -1, 64),
		"{commission_rate}", strconv.FormatFloat(plan.Rate(), 'g', -1, 64),
	).Replace(commissionSystemPrompt)
	return renderStatic(ctx, content)
}

// RenderContestSystem returns the multi-stage contest negotiation instruction.
func RenderContestSystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, contestSystemPrompt)
}

// RenderSlotList builds the plain-completion prompt that formats available
// slots for the user.
func RenderSlotList(ctx context.Context, slots []string) (string, error) {
	content := strings.Replace(slotListPrompt, "{available_slots}", strings.Join(slots, "\n"), 1)
	return renderStatic(ctx, content)
}

// RenderTicketSystem returns the ticket triage instruction.
func RenderTicketSystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, ticketSystemPrompt)
}

// RenderTicketEmailSystem returns the support email drafting instruction.
func RenderTicketEmailSystem(ctx context.Context) (string, error) {
	return renderStatic(ctx, ticketEmailSystemPrompt)
}

// RenderClarify builds the plain-completion prompt asking the user to
// restate an unclassifiable request.
func RenderClarify(ctx context.Context, userMessage string) (string, error) {
	content := strings.Replace(clarifyPrompt, "{user_message}", userMessage, 1)
	return renderStatic(ctx, content)
}

// renderStatic wraps pre-substituted content via the Eino prompt component
// using a messages placeholder, so templates with literal braces render
// untouched while callbacks still fire.
func renderStatic(ctx context.Context, content string) (string, error) {
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
