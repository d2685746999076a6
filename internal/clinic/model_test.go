package clinic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveTime(t *testing.T) {
	scheduled := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	appt := Appointment{ScheduledAt: scheduled, Status: StatusScheduled}

	assert.Equal(t, scheduled, appt.EffectiveTime())

	arrived := scheduled.Add(5 * time.Minute)
	appt.CheckedInAt = &arrived
	appt.Status = StatusWaiting

	assert.Equal(t, arrived, appt.EffectiveTime())
}

func TestWaitingForRequiresCheckIn(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	appt := Appointment{ScheduledAt: now.Add(-time.Hour), Status: StatusScheduled}

	_, ok := appt.WaitingFor(now)
	assert.False(t, ok)

	arrived := now.Add(-10 * time.Minute)
	appt.CheckedInAt = &arrived
	appt.Status = StatusWaiting

	wait, ok := appt.WaitingFor(now)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Minute, wait)
}

func TestQueueFilterWindowDefaultsToToday(t *testing.T) {
	now := time.Date(2024, 6, 1, 14, 45, 3, 0, time.UTC)

	start, end := QueueFilter{}.Window(now)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC), end)
}

func TestQueueFilterWindowUsesGivenDay(t *testing.T) {
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	start, end := QueueFilter{Day: day}.Window(now)
	assert.Equal(t, day, start)
	assert.Equal(t, day.Add(24*time.Hour), end)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusInProgress.Valid())
	assert.False(t, Status("archived").Valid())

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusWaiting.Terminal())
}
