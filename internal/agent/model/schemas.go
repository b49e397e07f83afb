package model

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Valid classification categories. The set is closed: any classifier output
// outside it terminates the conversation without dispatching a handler.
const (
	CategoryPolicy     = "policy"
	CategoryCommission = "commission"
	CategoryContest    = "contest"
	CategoryTicket     = "ticket"
	CategoryClarify    = "clarify"
)

// ValidCategories lists every routable category.
var ValidCategories = []string{
	CategoryPolicy,
	CategoryCommission,
	CategoryContest,
	CategoryTicket,
	CategoryClarify,
}

// IsValidCategory reports set membership in ValidCategories.
func IsValidCategory(category string) bool {
	for _, c := range ValidCategories {
		if category == c {
			return true
		}
	}
	return false
}

// The four sales compensation policies the policy handler may attribute.
const (
	PolicyMinimumCommissionGuarantee = "Minimum commission guarantee"
	PolicyAirCoverBonus              = "Air cover bonus"
	PolicyWindfallActivation         = "Windfall activation"
	PolicyLeaveOfAbsence             = "Leave of absence"
)

// KnownPolicies lists the fixed policy names.
var KnownPolicies = []string{
	PolicyMinimumCommissionGuarantee,
	PolicyAirCoverBonus,
	PolicyWindfallActivation,
	PolicyLeaveOfAbsence,
}

// Schema is implemented by every structured-output record. Validate must
// reject any value whose shape or content violates the declared contract;
// values are never silently coerced.
type Schema interface {
	Validate() error
}

// CategoryResult is the classifier's structured output.
type CategoryResult struct {
	Category string `json:"category"`
}

func (r *CategoryResult) Validate() error {
	if strings.TrimSpace(r.Category) == "" {
		return fmt.Errorf("category is empty")
	}
	return nil
}

// PolicyResult names which of the four fixed policies applied and carries the
// user-facing answer.
type PolicyResult struct {
	Policy   string `json:"policy"`
	Response string `json:"response"`
}

func (r *PolicyResult) Validate() error {
	if strings.TrimSpace(r.Response) == "" {
		return fmt.Errorf("response is empty")
	}
	for _, p := range KnownPolicies {
		if strings.EqualFold(strings.TrimSpace(r.Policy), p) {
			r.Policy = p
			return nil
		}
	}
	return fmt.Errorf("policy %q is not one of the four known policies", r.Policy)
}

// CommissionResult carries the commission answer plus the calculation the
// model claims to have used. The handler verifies the number independently.
type CommissionResult struct {
	Commission  string `json:"commission"`
	Calculation string `json:"calculation"`
	Response    string `json:"response"`
}

func (r *CommissionResult) Validate() error {
	if strings.TrimSpace(r.Commission) == "" {
		return fmt.Errorf("commission is empty")
	}
	if strings.TrimSpace(r.Calculation) == "" {
		return fmt.Errorf("calculation is empty")
	}
	if strings.TrimSpace(r.Response) == "" {
		return fmt.Errorf("response is empty")
	}
	return nil
}

// ContestStage is the explicit negotiation stage of the contest handler.
type ContestStage string

const (
	StageAskForUserInfo      ContestStage = "askForUserInfo"
	StageBookAppointment     ContestStage = "BookAppointment"
	StageConfirmAppointment  ContestStage = "ConfirmAppointment"
	StageAppointmentComplete ContestStage = "AppointmentComplete"
	StageOther               ContestStage = "Other"
)

// ContestDecision is the per-turn structured output of the contest handler.
// Each stage carries exactly the fields it needs; Validate enforces the
// per-stage requirements so a flat record cannot smuggle a half-filled stage
// through.
type ContestDecision struct {
	Decision  ContestStage `json:"decision"`
	Nextsteps string       `json:"nextsteps"`
	Timeslot  string       `json:"timeslot,omitempty"`
	Email     string       `json:"email,omitempty"`
	Name      string       `json:"name,omitempty"`
}

func (d *ContestDecision) Validate() error {
	switch d.Decision {
	case StageAskForUserInfo, StageAppointmentComplete, StageOther:
		if strings.TrimSpace(d.Nextsteps) == "" {
			return fmt.Errorf("stage %s requires nextsteps", d.Decision)
		}
	case StageBookAppointment:
		if strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("stage %s requires a collected name", d.Decision)
		}
		if err := validateEmail(d.Email); err != nil {
			return fmt.Errorf("stage %s: %w", d.Decision, err)
		}
	case StageConfirmAppointment:
		if err := validateEmail(d.Email); err != nil {
			return fmt.Errorf("stage %s: %w", d.Decision, err)
		}
		if _, err := d.SlotTime(); err != nil {
			return fmt.Errorf("stage %s: %w", d.Decision, err)
		}
	default:
		return fmt.Errorf("unknown contest stage %q", d.Decision)
	}
	return nil
}

// SlotTime parses the chosen timeslot. RFC 3339 is the wire format the slot
// listing presents, so that is what the model must echo back.
func (d *ContestDecision) SlotTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(d.Timeslot))
	if err != nil {
		return time.Time{}, fmt.Errorf("timeslot %q is not RFC 3339: %w", d.Timeslot, err)
	}
	return t, nil
}

// TicketResult decides whether a support ticket is warranted.
type TicketResult struct {
	Response     string `json:"response"`
	CreateTicket bool   `json:"createTicket"`
}

func (r *TicketResult) Validate() error {
	if strings.TrimSpace(r.Response) == "" {
		return fmt.Errorf("response is empty")
	}
	return nil
}

// TicketEmailDraft is the HTML email body drafted for the support team.
type TicketEmailDraft struct {
	Response  string `json:"response"`
	HTMLEmail string `json:"htmlEmail"`
}

func (r *TicketEmailDraft) Validate() error {
	if strings.TrimSpace(r.HTMLEmail) == "" {
		return fmt.Errorf("htmlEmail is empty")
	}
	return nil
}

func validateEmail(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("email is empty")
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return fmt.Errorf("email %q is invalid: %w", addr, err)
	}
	return nil
}
