package nodes

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"

	"github.com/salescomp-agent/server/internal/agent/graph/conversations"
	"github.com/salescomp-agent/server/internal/agent/graph/prompts"
	"github.com/salescomp-agent/server/internal/agent/model"
	"github.com/salescomp-agent/server/internal/agent/repo"
	"github.com/salescomp-agent/server/internal/agent/structured"
	"github.com/salescomp-agent/server/internal/notify"
	"github.com/salescomp-agent/server/internal/scheduling"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

const intakeEmailSubject = "Please complete the SPIF/Sales Contest Intake Form"

// ContestDeps bundles the collaborators of the contest negotiation.
type ContestDeps struct {
	Completer      structured.Completer
	Messages       *conversations.MessagesManager
	Scheduler      scheduling.Scheduler
	EmailSender    notify.EmailSender
	Idempotency    *repo.IdempotencyGuard
	ContestFormURL string
	FromEmail      string
}

// NewContestNode drives the multi-stage contest booking negotiation. One
// structured decision per turn selects the stage; booking and the intake
// email are idempotency-guarded so a replayed turn never repeats a side
// effect. The audit label is always the literal "contest" regardless of the
// internal stage.
func NewContestNode(deps ContestDeps) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.CategoryResult) (*model.TurnOutput, error) {
		var conversationID string
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			conversationID = s.ConversationID
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		history, err := deps.Messages.HandlerHistory(ctx, conversationID)
		if err != nil {
			return nil, err
		}

		instruction, err := prompts.RenderContestSystem(ctx)
		if err != nil {
			return nil, err
		}

		var decision model.ContestDecision
		usage, err := deps.Completer.Invoke(ctx, instruction, history, &decision)
		recordUsage(ctx, NodeContest, deps.Completer.ModelName(), usage)
		if err != nil {
			return nil, err
		}

		logx.Debug().
			Str("conversation_id", conversationID).
			Str("stage", string(decision.Decision)).
			Msg("contest stage decided")

		var response string
		switch decision.Decision {
		case model.StageBookAppointment:
			response, err = deps.presentSlots(ctx)
			if err != nil {
				return nil, err
			}
			err = compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
				s.Name = decision.Name
				s.Email = decision.Email
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to update state: %w", err)
			}

		case model.StageConfirmAppointment:
			response = deps.confirmAndInvite(ctx, conversationID, &decision)
			err = compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
				s.Email = decision.Email
				s.Timeslot = decision.Timeslot
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("failed to update state: %w", err)
			}

		default:
			// askForUserInfo, AppointmentComplete, Other: surface nextsteps verbatim
			response = decision.Nextsteps
		}

		out := &model.TurnOutput{
			AuditLabel: model.CategoryContest,
			LNode:      NodeContest,
			Response:   response,
		}
		err = compose.ProcessState(ctx, func(_ context.Context, s *model.AgentState) error {
			s.LNode = NodeContest
			s.AuditLabel = model.CategoryContest
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

// presentSlots fetches the open consultation slots and formats them with a
// plain completion. Each slot keeps its RFC 3339 value so the user's choice
// can be echoed back verbatim in the next turn.
func (d ContestDeps) presentSlots(ctx context.Context) (string, error) {
	slots, err := d.Scheduler.AvailableSlots(ctx)
	if err != nil {
		logx.Error().Err(err).Msg("failed to fetch available slots")
		return "I couldn't reach the scheduling system just now. Please try again in a moment.", nil
	}

	lines := make([]string, 0, len(slots))
	for _, slot := range slots {
		lines = append(lines, fmt.Sprintf("- %s (%s)", slot.Label, slot.Start.Format(time.RFC3339)))
	}

	listPrompt, err := prompts.RenderSlotList(ctx, lines)
	if err != nil {
		return "", err
	}

	formatted, usage, err := d.Completer.Complete(ctx, listPrompt)
	recordUsage(ctx, NodeContest, d.Completer.ModelName(), usage)
	if err != nil {
		return "", err
	}
	return formatted, nil
}

// confirmAndInvite books the chosen slot and sends the intake-form email.
// Both side effects carry deterministic idempotency keys, so replaying the
// turn books once and emails once. A failed call releases its key and is
// reported to the user without corrupting state.
func (d ContestDeps) confirmAndInvite(ctx context.Context, conversationID string, decision *model.ContestDecision) string {
	slotTime, err := decision.SlotTime()
	if err != nil {
		// Validate already enforced this; defensive parse failure means no booking.
		return "I couldn't read the chosen time slot. Please pick one of the listed slots again."
	}

	bookKey := repo.Key(conversationID, "contest-book", decision.Timeslot, decision.Email)
	first, err := d.Idempotency.Acquire(ctx, bookKey)
	if err != nil {
		logx.Error().Err(err).Msg("failed to check booking idempotency")
		return "I couldn't confirm the appointment just now. Please try again in a moment."
	}
	if first {
		if _, err := d.Scheduler.Book(ctx, slotTime, decision.Email); err != nil {
			logx.Error().Err(err).Str("email", decision.Email).Msg("booking failed")
			if relErr := d.Idempotency.Release(ctx, bookKey); relErr != nil {
				logx.Error().Err(relErr).Msg("failed to release booking idempotency key")
			}
			return "I couldn't book that slot. It may no longer be available - please choose another one."
		}
	} else {
		logx.Info().Str("conversation_id", conversationID).Msg("duplicate booking suppressed")
	}

	mailKey := repo.Key(conversationID, "contest-intake-email", decision.Timeslot, decision.Email)
	first, err = d.Idempotency.Acquire(ctx, mailKey)
	if err != nil {
		logx.Error().Err(err).Msg("failed to check intake email idempotency")
		return confirmationMessage(slotTime) + " I couldn't send the Intake Form yet; it will follow shortly."
	}
	if first {
		msg := notify.EmailMessage{
			From:    d.FromEmail,
			To:      decision.Email,
			Subject: intakeEmailSubject,
			HTML:    fmt.Sprintf(`<p>Please complete the Intake Form before your consultation: <a href="%s">%s</a></p>`, d.ContestFormURL, d.ContestFormURL),
		}
		if err := d.EmailSender.Send(ctx, msg); err != nil {
			logx.Error().Err(err).Str("to", decision.Email).Msg("intake email delivery failed")
			if relErr := d.Idempotency.Release(ctx, mailKey); relErr != nil {
				logx.Error().Err(relErr).Msg("failed to release intake email idempotency key")
			}
			return confirmationMessage(slotTime) + " I couldn't send the Intake Form email; I'll retry on your next message."
		}
	} else {
		logx.Info().Str("conversation_id", conversationID).Msg("duplicate intake email suppressed")
	}

	return confirmationMessage(slotTime) + " The Intake Form has been sent to your email - please complete it before the meeting."
}

func confirmationMessage(slot time.Time) string {
	return fmt.Sprintf("Your consultation with the Sales Comp team is booked for %s.", slot.Format("Mon Jan 2, 3:04 PM"))
}
