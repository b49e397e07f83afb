// Package notify is the outbound email collaborator boundary.
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	errx "github.com/salescomp-agent/server/internal/core/error"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// EmailSender defines the interface for sending emails. Implementations can
// be swapped (SendGrid, SES, SMTP) without changing callers.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage represents an email to be sent.
type EmailMessage struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// SendGridSender sends emails via the SendGrid API.
type SendGridSender struct {
	client *sendgrid.Client
}

// NewSendGridSender creates a SendGrid-backed sender. An empty API key yields
// nil so callers can fall back to the stub sender.
func NewSendGridSender(apiKey string) *SendGridSender {
	if apiKey == "" {
		return nil
	}
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey)}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("%w: sendgrid client not configured", errx.ErrDelivery)
	}

	from := mail.NewEmail("", msg.From)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.HTML, msg.HTML)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		logx.Error().Err(err).Str("to", msg.To).Msg("sendgrid send failed")
		return fmt.Errorf("%w: %v", errx.ErrDelivery, err)
	}
	if response.StatusCode >= 400 {
		logx.Error().Int("status", response.StatusCode).Str("to", msg.To).Msg("sendgrid returned error status")
		return fmt.Errorf("%w: sendgrid status %d", errx.ErrDelivery, response.StatusCode)
	}

	logx.Info().Str("to", msg.To).Str("subject", msg.Subject).Int("status", response.StatusCode).Msg("email sent")
	return nil
}

// StubSender logs the email but doesn't deliver it, for local runs and tests.
type StubSender struct{}

func NewStubSender() *StubSender {
	return &StubSender{}
}

func (s *StubSender) Send(ctx context.Context, msg EmailMessage) error {
	logx.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("stub email sender: would send email")
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubSender)(nil)
)
