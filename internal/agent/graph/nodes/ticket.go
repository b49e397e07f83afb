package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/salescomp-agent/server/internal/agent/graph/conversations"
	"github.com/salescomp-agent/server/internal/agent/graph/prompts"
	"github.com/salescomp-agent/server/internal/agent/model"
	"github.com/salescomp-agent/server/internal/agent/repo"
	"github.com/salescomp-agent/server/internal/agent/structured"
	"github.com/salescomp-agent/server/internal/notify"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

const (
	ticketEmailSubject = "New Ticket from Sales Comp Agent"

	ticketAlreadyCreatedResponse = "A ticket has already been filed for this conversation. " +
		"The Sales Comp team will follow up with you directly - no further action is needed."
)

// TicketDeps bundles the collaborators of the ticket handler.
type TicketDeps struct {
	Completer   structured.Completer
	Messages    *conversations.MessagesManager
	EmailSender notify.EmailSender
	Idempotency *repo.IdempotencyGuard
	Support     model.SupportConfig
}

// NewTicketNode gathers the details of a case the agent cannot answer and
// files it with the support team by email. The created flag flips to true
// only after a confirmed delivery, so a failed send leaves the conversation
// eligible to retry on the next turn.
func NewTicketNode(deps TicketDeps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.CategoryResult) (*model.TurnOutput, error) {
		var (
			conversationID string
			alreadyCreated bool
		)
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			conversationID = s.ConversationID
			alreadyCreated = s.TicketCreated
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		var response string
		ticketCreated := alreadyCreated

		if alreadyCreated {
			response = ticketAlreadyCreatedResponse
		} else {
			history, err := deps.Messages.HandlerHistory(ctx, conversationID)
			if err != nil {
				return nil, err
			}

			instruction, err := prompts.RenderTicketSystem(ctx)
			if err != nil {
				return nil, err
			}

			var result model.TicketResult
			usage, err := deps.Completer.Invoke(ctx, instruction, history, &result)
			recordUsage(ctx, NodeTicket, deps.Completer.ModelName(), usage)
			if err != nil {
				return nil, err
			}
			response = result.Response

			if result.CreateTicket {
				sent, err := deps.fileTicket(ctx, conversationID, history)
				if err != nil {
					return nil, err
				}
				if sent {
					ticketCreated = true
				} else {
					response += "\n\nI couldn't deliver the ticket to the support team just now. " +
						"Please send your next message and I'll retry."
				}
			}
		}

		if ticketCreated && !alreadyCreated {
			err = compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
				s.TicketCreated = true
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to update state: %w", err)
			}
		}

		out := &model.TurnOutput{
			AuditLabel: model.CategoryTicket,
			LNode:      NodeTicket,
			Response:   response,
		}
		out.Extra = map[string]any{"ticket_created": ticketCreated}
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			s.LNode = NodeTicket
			s.AuditLabel = model.CategoryTicket
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

// fileTicket drafts the ticket email from the conversation and sends it to
// the support team. Delivery is idempotency-guarded per conversation: a
// replayed turn never files the same ticket twice. Returns whether the ticket
// email is known to be delivered.
func (d TicketDeps) fileTicket(ctx context.Context, conversationID string, history []*schema.Message) (bool, error) {
	mailKey := repo.Key(conversationID, "ticket-email")
	first, err := d.Idempotency.Acquire(ctx, mailKey)
	if err != nil {
		logx.Error().Err(err).Msg("failed to check ticket email idempotency")
		return false, nil
	}
	if !first {
		logx.Info().Str("conversation_id", conversationID).Msg("duplicate ticket email suppressed")
		return true, nil
	}

	instruction, err := prompts.RenderTicketEmailSystem(ctx)
	if err != nil {
		return false, err
	}

	var draft model.TicketEmailDraft
	usage, err := d.Completer.Invoke(ctx, instruction, history, &draft)
	recordUsage(ctx, NodeTicket, d.Completer.ModelName(), usage)
	if err != nil {
		if relErr := d.Idempotency.Release(ctx, mailKey); relErr != nil {
			logx.Error().Err(relErr).Msg("failed to release ticket email idempotency key")
		}
		return false, err
	}

	msg := notify.EmailMessage{
		From:    d.Support.FromEmail,
		To:      d.Support.TeamEmail,
		Subject: ticketEmailSubject,
		HTML:    draft.HTMLEmail,
	}
	if err := d.EmailSender.Send(ctx, msg); err != nil {
		logx.Error().Err(err).Str("to", d.Support.TeamEmail).Msg("ticket email delivery failed")
		if relErr := d.Idempotency.Release(ctx, mailKey); relErr != nil {
			logx.Error().Err(relErr).Msg("failed to release ticket email idempotency key")
		}
		return false, nil
	}

	logx.Info().Str("conversation_id", conversationID).Msg("ticket filed with support team")
	return true, nil
}
