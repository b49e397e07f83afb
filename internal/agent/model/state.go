package model

// AgentState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - Durable continuity lives in the CheckpointRepository; AgentState is
//     seeded from the last checkpoint at turn start and snapshotted back at
//     every step boundary.
type AgentState struct {
	ConversationID string
	InitialMessage string // triggering user utterance, immutable once set

	// ClassifiedCategory is written once by the classifier and is the only
	// field the router reads. Handlers never touch it.
	ClassifiedCategory string

	// AuditLabel is the handler-writable audit trail (e.g. the policy name
	// the policy handler applied). Kept separate from ClassifiedCategory so
	// routing can never confuse an audit value for a category.
	AuditLabel string

	LNode          string // identifier of the last node that wrote the state
	ResponseToUser string

	// Collected across contest negotiation turns.
	Name     string
	Email    string
	Timeslot string

	// TicketCreated records that a support ticket was already opened for
	// this conversation. Duplicate suppression reads this flag, not the
	// model's memory of the transcript.
	TicketCreated bool

	// Accumulated total LLM cost (USD) across model invocations for this turn.
	TotalCostUSD float64
}

// Seed restores cross-turn fields from the last persisted checkpoint.
// InitialMessage is not restored: each turn carries its own triggering message.
func (s *AgentState) Seed(cp *Checkpoint) {
	if cp == nil {
		return
	}
	s.Name = cp.Name
	s.Email = cp.Email
	s.Timeslot = cp.Timeslot
	s.TicketCreated = cp.TicketCreated
}

// Snapshot produces the persistable view of the state.
func (s *AgentState) Snapshot() *Checkpoint {
	return &Checkpoint{
		ConversationID:     s.ConversationID,
		InitialMessage:     s.InitialMessage,
		ClassifiedCategory: s.ClassifiedCategory,
		AuditLabel:         s.AuditLabel,
		LNode:              s.LNode,
		ResponseToUser:     s.ResponseToUser,
		Name:               s.Name,
		Email:              s.Email,
		Timeslot:           s.Timeslot,
		TicketCreated:      s.TicketCreated,
	}
}

// TurnInput represents one user message addressed to a conversation.
type TurnInput struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// TurnOutput is the terminal result of one conversation turn.
type TurnOutput struct {
	ConversationID string         `json:"conversation_id"`
	Category       string         `json:"category"`
	AuditLabel     string         `json:"audit_label"`
	LNode          string         `json:"lnode"`
	Response       string         `json:"response"`
	Extra          map[string]any `json:"extra,omitempty"`
}
