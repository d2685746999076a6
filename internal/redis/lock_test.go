package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisAppointmentLocker(client, 5*time.Second), mr
}

func TestWithAppointmentLockRunsAndReleases(t *testing.T) {
	locker, mr := newTestLocker(t)
	apptID := uuid.New()
	key := "lock:appointment:" + apptID.String()

	ran := false
	err := locker.WithAppointmentLock(context.Background(), apptID, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists(key))
		return nil
	})

	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(key))
}

func TestWithAppointmentLockIsExclusive(t *testing.T) {
	locker, _ := newTestLocker(t)
	apptID := uuid.New()

	err := locker.WithAppointmentLock(context.Background(), apptID, func(ctx context.Context) error {
		inner := locker.WithAppointmentLock(ctx, apptID, func(ctx context.Context) error {
			t.Fatal("critical section must not run while the lock is held")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})

	require.NoError(t, err)
}

func TestLocksAreScopedPerAppointment(t *testing.T) {
	locker, _ := newTestLocker(t)

	err := locker.WithAppointmentLock(context.Background(), uuid.New(), func(ctx context.Context) error {
		return locker.WithAppointmentLock(ctx, uuid.New(), func(ctx context.Context) error {
			return nil
		})
	})

	require.NoError(t, err)
}

func TestLockReleasedAfterCallbackError(t *testing.T) {
	locker, mr := newTestLocker(t)
	apptID := uuid.New()
	key := "lock:appointment:" + apptID.String()

	boom := assert.AnError
	err := locker.WithAppointmentLock(context.Background(), apptID, func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(key))
}
