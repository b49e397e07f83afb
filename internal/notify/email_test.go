package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSendGridSenderEmptyKey(t *testing.T) {
	assert.Nil(t, NewSendGridSender(""))
	assert.NotNil(t, NewSendGridSender("SG.test-key"))
}

func TestStubSenderNeverFails(t *testing.T) {
	s := NewStubSender()
	err := s.Send(context.Background(), EmailMessage{
		From:    "agent@example.com",
		To:      "user@example.com",
		Subject: "hello",
		HTML:    "<p>hi</p>",
	})
	assert.NoError(t, err)
}
