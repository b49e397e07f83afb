// Package scheduling is the calendar collaborator boundary: slot discovery
// and appointment booking for the sales compensation team.
package scheduling

import (
	"context"
	"fmt"
	"time"

	errx "github.com/salescomp-agent/server/internal/core/error"
	logx "github.com/salescomp-agent/server/pkg/logger"
)

// Slot is one bookable consultation window.
type Slot struct {
	Start time.Time `json:"start"`
	Label string    `json:"label"`
}

// Confirmation records a successfully booked appointment.
type Confirmation struct {
	Slot     time.Time `json:"slot"`
	Email    string    `json:"email"`
	BookedAt time.Time `json:"booked_at"`
}

// Scheduler exposes the external calendar system at its interface boundary.
type Scheduler interface {
	// AvailableSlots returns the currently open consultation slots in order.
	AvailableSlots(ctx context.Context) ([]Slot, error)

	// Book reserves the given slot for the given email address.
	Book(ctx context.Context, slot time.Time, email string) (*Confirmation, error)
}

// slotHours are the consultation windows offered on each business day.
var slotHours = []int{10, 14, 16}

// StaticScheduler offers fixed business-hour slots over the next few business
// days. It stands in for a real calendar integration.
type StaticScheduler struct {
	days int
	now  func() time.Time
}

// NewStaticScheduler creates a scheduler offering slots over the next `days`
// business days.
func NewStaticScheduler(days int) *StaticScheduler {
	if days <= 0 {
		days = 3
	}
	return &StaticScheduler{days: days, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (s *StaticScheduler) WithClock(now func() time.Time) *StaticScheduler {
	s.now = now
	return s
}

func (s *StaticScheduler) AvailableSlots(ctx context.Context) ([]Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errx.ErrCollaborator, err)
	}

	var slots []Slot
	day := s.now().Truncate(24 * time.Hour)
	for added := 0; added < s.days; {
		day = day.Add(24 * time.Hour)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for _, h := range slotHours {
			start := day.Add(time.Duration(h) * time.Hour)
			slots = append(slots, Slot{
				Start: start,
				Label: start.Format("Mon Jan 2, 3:04 PM"),
			})
		}
		added++
	}
	return slots, nil
}

func (s *StaticScheduler) Book(ctx context.Context, slot time.Time, email string) (*Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errx.ErrCollaborator, err)
	}
	if slot.Before(s.now()) {
		return nil, fmt.Errorf("%w: slot %s is in the past", errx.ErrCollaborator, slot.Format(time.RFC3339))
	}

	logx.Info().
		Time("slot", slot).
		Str("email", email).
		Msg("appointment booked")

	return &Confirmation{
		Slot:     slot,
		Email:    email,
		BookedAt: s.now(),
	}, nil
}

var _ Scheduler = (*StaticScheduler)(nil)
