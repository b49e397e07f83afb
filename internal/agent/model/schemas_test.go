package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsValidCategory(t *testing.T) {
	for _, c := range ValidCategories {
		assert.True(t, IsValidCategory(c), "category %q should be valid", c)
	}

	invalid := []string{"", "billing", "POLICY", "policy ", "unknown"}
	for _, c := range invalid {
		assert.False(t, IsValidCategory(c), "category %q should be invalid", c)
	}
}

func TestPolicyResultValidate(t *testing.T) {
	tests := []struct {
		name       string
		result     PolicyResult
		wantErr    bool
		wantPolicy string
	}{
		{
			name:       "exact known policy",
			result:     PolicyResult{Policy: "Air cover bonus", Response: "Here is how it works."},
			wantPolicy: PolicyAirCoverBonus,
		},
		{
			name:       "case-insensitive match normalizes",
			result:     PolicyResult{Policy: "minimum COMMISSION guarantee", Response: "Answer."},
			wantPolicy: PolicyMinimumCommissionGuarantee,
		},
		{
			name:       "surrounding whitespace tolerated",
			result:     PolicyResult{Policy: "  Windfall activation  ", Response: "Answer."},
			wantPolicy: PolicyWindfallActivation,
		},
		{
			name:    "unknown policy rejected",
			result:  PolicyResult{Policy: "Accelerator clause", Response: "Answer."},
			wantErr: true,
		},
		{
			name:    "empty response rejected",
			result:  PolicyResult{Policy: "Leave of absence", Response: "  "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPolicy, tt.result.Policy)
		})
	}
}

func TestContestDecisionValidate(t *testing.T) {
	tests := []struct {
		name     string
		decision ContestDecision
		wantErr  bool
	}{
		{
			name:     "ask for user info needs nextsteps",
			decision: ContestDecision{Decision: StageAskForUserInfo, Nextsteps: "Please share your name and email."},
		},
		{
			name:     "ask for user info without nextsteps rejected",
			decision: ContestDecision{Decision: StageAskForUserInfo},
			wantErr:  true,
		},
		{
			name:     "book appointment needs name and email",
			decision: ContestDecision{Decision: StageBookAppointment, Name: "Alex Doe", Email: "alex@example.com"},
		},
		{
			name:     "book appointment without name rejected",
			decision: ContestDecision{Decision: StageBookAppointment, Email: "alex@example.com"},
			wantErr:  true,
		},
		{
			name:     "book appointment with bad email rejected",
			decision: ContestDecision{Decision: StageBookAppointment, Name: "Alex", Email: "not-an-email"},
			wantErr:  true,
		},
		{
			name: "confirm appointment needs RFC 3339 timeslot",
			decision: ContestDecision{
				Decision: StageConfirmAppointment,
				Email:    "alex@example.com",
				Timeslot: "2026-09-02T10:00:00Z",
			},
		},
		{
			name: "confirm appointment with loose timeslot rejected",
			decision: ContestDecision{
				Decision: StageConfirmAppointment,
				Email:    "alex@example.com",
				Timeslot: "next Tuesday at 10",
			},
			wantErr: true,
		},
		{
			name:     "complete stage carries nextsteps",
			decision: ContestDecision{Decision: StageAppointmentComplete, Nextsteps: "You are all set."},
		},
		{
			name:     "unknown stage rejected",
			decision: ContestDecision{Decision: ContestStage("Reschedule"), Nextsteps: "?"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decision.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestContestDecisionSlotTime(t *testing.T) {
	d := ContestDecision{Timeslot: " 2026-09-02T14:00:00Z "}
	ts, err := d.SlotTime()
	require.NoError(t, err)
	assert.Equal(t, 14, ts.Hour())

	d.Timeslot = "02/09/2026 2pm"
	_, err = d.SlotTime()
	assert.Error(t, err)
}

func TestTicketSchemasValidate(t *testing.T) {
	ok := TicketResult{Response: "I'll file this for you.", CreateTicket: true}
	assert.NoError(t, ok.Validate())

	empty := TicketResult{CreateTicket: true}
	assert.Error(t, empty.Validate())

	draft := TicketEmailDraft{HTMLEmail: "<p>Summary</p>"}
	assert.NoError(t, draft.Validate())

	blank := TicketEmailDraft{Response: "done"}
	assert.Error(t, blank.Validate())
}

func TestCompPlanRate(t *testing.T) {
	plan := CompPlanConfig{OnTargetIncentive: 100000, AnnualQuota: 2000000}
	assert.InDelta(t, 0.05, plan.Rate(), 1e-12)

	zero := CompPlanConfig{OnTargetIncentive: 100000}
	assert.Zero(t, zero.Rate())
}
