package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/salescomp-agent/server/internal/core/error"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestAvailableSlotsSkipsWeekends(t *testing.T) {
	// Friday: the next business days are Mon, Tue, Wed.
	friday := time.Date(2026, time.September, 4, 9, 0, 0, 0, time.UTC)
	s := NewStaticScheduler(3).WithClock(fixedClock(friday))

	slots, err := s.AvailableSlots(context.Background())
	require.NoError(t, err)
	require.Len(t, slots, 9)

	for _, slot := range slots {
		wd := slot.Start.Weekday()
		assert.NotEqual(t, time.Saturday, wd)
		assert.NotEqual(t, time.Sunday, wd)
	}
	assert.Equal(t, time.Monday, slots[0].Start.Weekday())
	assert.Equal(t, 10, slots[0].Start.Hour())
}

func TestAvailableSlotsOrderedAndLabeled(t *testing.T) {
	monday := time.Date(2026, time.August, 31, 8, 0, 0, 0, time.UTC)
	s := NewStaticScheduler(2).WithClock(fixedClock(monday))

	slots, err := s.AvailableSlots(context.Background())
	require.NoError(t, err)
	require.Len(t, slots, 6)

	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i].Start.After(slots[i-1].Start), "slots must be in order")
	}
	for _, slot := range slots {
		assert.Equal(t, slot.Start.Format("Mon Jan 2, 3:04 PM"), slot.Label)
	}
}

func TestBookFutureSlot(t *testing.T) {
	now := time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC)
	s := NewStaticScheduler(3).WithClock(fixedClock(now))

	slot := now.Add(24 * time.Hour)
	conf, err := s.Book(context.Background(), slot, "alex@example.com")
	require.NoError(t, err)
	assert.Equal(t, slot, conf.Slot)
	assert.Equal(t, "alex@example.com", conf.Email)
	assert.Equal(t, now, conf.BookedAt)
}

func TestBookPastSlotRejected(t *testing.T) {
	now := time.Date(2026, time.September, 1, 9, 0, 0, 0, time.UTC)
	s := NewStaticScheduler(3).WithClock(fixedClock(now))

	_, err := s.Book(context.Background(), now.Add(-time.Hour), "alex@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, errx.ErrCollaborator)
}
