package model

import "context"

// Checkpoint is the persisted snapshot of a conversation, written at every
// step boundary so a conversation can resume from its last completed step
// after a process restart.
type Checkpoint struct {
	ConversationID     string `json:"conversation_id"`
	InitialMessage     string `json:"initial_message"`
	ClassifiedCategory string `json:"classified_category"`
	AuditLabel         string `json:"audit_label"`
	LNode              string `json:"lnode"`
	ResponseToUser     string `json:"response_to_user"`
	Name               string `json:"name,omitempty"`
	Email              string `json:"email,omitempty"`
	Timeslot           string `json:"timeslot,omitempty"`
	TicketCreated      bool   `json:"ticket_created,omitempty"`
}

// CheckpointRepository persists conversation checkpoints keyed by
// conversation id. Implementations must serialize writes per conversation id;
// distinct conversations may be accessed concurrently.
type CheckpointRepository interface {
	// Save persists the checkpoint for the given conversation.
	Save(ctx context.Context, conversationID string, cp *Checkpoint) error

	// Load retrieves the last saved checkpoint. A conversation with no
	// checkpoint yet yields an error matching errx.ErrNotFound.
	Load(ctx context.Context, conversationID string) (*Checkpoint, error)

	// Delete removes the checkpoint for a finished conversation.
	Delete(ctx context.Context, conversationID string) error
}
