package documentstore

import (
	"context"
	"testing"
	"time"

	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var baseTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestStore() *MemoryStore {
	store := NewMemoryStore(zap.NewNop())
	store.SetClock(func() time.Time { return baseTime })
	return store
}

func newWaitingAppointment(id string) *models.Appointment {
	return &models.Appointment{
		ID:          id,
		PatientID:   "patient-1",
		PatientName: "Pat",
		DoctorID:    "doctor-1",
		DoctorName:  "Doc",
		ScheduledAt: baseTime,
		Session:     models.AppointmentSession{Status: models.SessionStatusWaiting},
		CreatedAt:   baseTime,
	}
}

func nextSnapshot(t *testing.T, ch <-chan models.AppointmentSnapshot) models.AppointmentSnapshot {
	t.Helper()
	select {
	case snapshot := <-ch:
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for appointment snapshot")
		return models.AppointmentSnapshot{}
	}
}

func nextMessages(t *testing.T, ch <-chan []models.Message) []models.Message {
	t.Helper()
	select {
	case messages := <-ch:
		return messages
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message list")
		return nil
	}
}

func TestMemoryStoreAppointments(t *testing.T) {
	ctx := context.Background()

	t.Run("create then find returns an independent copy", func(t *testing.T) {
		store := newTestStore()
		require.NoError(t, store.CreateAppointment(ctx, newWaitingAppointment("appt-1")))

		found, err := store.FindAppointmentByID(ctx, "appt-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, models.SessionStatusWaiting, found.Session.Status)

		found.Session.Status = models.SessionStatusEnded
		again, _ := store.FindAppointmentByID(ctx, "appt-1")
		assert.Equal(t, models.SessionStatusWaiting, again.Session.Status)
	})

	t.Run("duplicate create is rejected", func(t *testing.T) {
		store := newTestStore()
		require.NoError(t, store.CreateAppointment(ctx, newWaitingAppointment("appt-1")))
		err := store.CreateAppointment(ctx, newWaitingAppointment("appt-1"))
		assert.ErrorIs(t, err, models.ErrAppointmentAlreadyExists)
	})

	t.Run("missing appointment is nil without error", func(t *testing.T) {
		store := newTestStore()
		found, err := store.FindAppointmentByID(ctx, "nope")
		assert.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("activate is conditional on waiting and stamps the store clock", func(t *testing.T) {
		store := newTestStore()
		require.NoError(t, store.CreateAppointment(ctx, newWaitingAppointment("appt-1")))

		input := &contracts.ActivateSessionInput{AppointmentID: "appt-1", StartedBy: "doctor-1", DurationSeconds: 900}
		require.NoError(t, store.ActivateSession(ctx, input))

		found, _ := store.FindAppointmentByID(ctx, "appt-1")
		assert.Equal(t, models.SessionStatusActive, found.Session.Status)
		require.NotNil(t, found.Session.StartTime)
		assert.True(t, found.Session.StartTime.Equal(baseTime))
		assert.Equal(t, "doctor-1", found.Session.StartedBy)
		assert.Equal(t, int64(900), found.Session.DurationSeconds)

		assert.ErrorIs(t, store.ActivateSession(ctx, input), models.ErrTransitionRejected)
		assert.ErrorIs(t, store.ActivateSession(ctx, &contracts.ActivateSessionInput{AppointmentID: "nope"}), models.ErrAppointmentNotFound)
	})

	t.Run("end requires active and deletes the document", func(t *testing.T) {
		store := newTestStore()
		require.NoError(t, store.CreateAppointment(ctx, newWaitingAppointment("appt-1")))

		endInput := &contracts.EndSessionInput{AppointmentID: "appt-1", EndedBy: "patient-1", Reason: models.EndReasonManual}
		_, err := store.EndSession(ctx, endInput)
		assert.ErrorIs(t, err, models.ErrTransitionRejected)

		require.NoError(t, store.ActivateSession(ctx, &contracts.ActivateSessionInput{AppointmentID: "appt-1", StartedBy: "doctor-1"}))
		final, err := store.EndSession(ctx, endInput)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusEnded, final.Session.Status)
		assert.Equal(t, "patient-1", final.Session.EndedBy)
		assert.Equal(t, models.EndReasonManual, final.Session.EndReason)
		assert.NotNil(t, final.Session.EndTime)

		found, err := store.FindAppointmentByID(ctx, "appt-1")
		assert.NoError(t, err)
		assert.Nil(t, found)

		_, err = store.EndSession(ctx, endInput)
		assert.ErrorIs(t, err, models.ErrAppointmentNotFound)
	})

	t.Run("active sessions started before a cutoff", func(t *testing.T) {
		store := newTestStore()
		require.NoError(t, store.CreateAppointment(ctx, newWaitingAppointment("old")))
		require.NoError(t, store.CreateAppointment(ctx, newWaitingAppointment("waiting")))
		require.NoError(t, store.ActivateSession(ctx, &contracts.ActivateSessionInput{AppointmentID: "old", StartedBy: "doctor-1"}))

		stale, err := store.FindActiveSessionsStartedBefore(ctx, baseTime.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "old", stale[0].ID)

		none, err := store.FindActiveSessionsStartedBefore(ctx, baseTime)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMemoryStoreWatchAppointment(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers the lifecycle from missing to deleted", func(t *testing.T) {
		store := newTestStore()
		snapshots := make(chan models.AppointmentSnapshot, 16)

		unsubscribe, err := store.WatchAppointment(ctx, "appt-1", func(s models.AppointmentSnapshot) { snapshots <- s }, nil)
		require.NoError(t, err)
		defer unsubscribe()

		initial := nextSnapshot(t, snapshots)
		assert.False(t, initial.Exists)

		require.NoError(t, store.CreateAppointment(ctx, newWaitingAppointment("appt-1")))
		created := nextSnapshot(t, snapshots)
		require.True(t, created.Exists)
		assert.Equal(t, models.SessionStatusWaiting, created.Appointment.Session.Status)

		require.NoError(t, store.ActivateSession(ctx, &contracts.ActivateSessionInput{AppointmentID: "appt-1", StartedBy: "doctor-1"}))
		active := nextSnapshot(t, snapshots)
		assert.Equal(t, models.SessionStatusActive, active.Appointment.Session.Status)

		_, err = store.EndSession(ctx, &contracts.EndSessionInput{AppointmentID: "appt-1", EndedBy: "doctor-1", Reason: models.EndReasonManual})
		require.NoError(t, err)
		deleted := nextSnapshot(t, snapshots)
		assert.False(t, deleted.Exists)
		assert.Equal(t, "appt-1", deleted.ID)
	})

	t.Run("unsubscribe stops deliveries and is idempotent", func(t *testing.T) {
		store := newTestStore()
		require.NoError(t, store.CreateAppointment(ctx, newWaitingAppointment("appt-1")))
		snapshots := make(chan models.AppointmentSnapshot, 16)

		unsubscribe, err := store.WatchAppointment(ctx, "appt-1", func(s models.AppointmentSnapshot) { snapshots <- s }, nil)
		require.NoError(t, err)
		nextSnapshot(t, snapshots)

		unsubscribe()
		unsubscribe()

		require.NoError(t, store.ActivateSession(ctx, &contracts.ActivateSessionInput{AppointmentID: "appt-1", StartedBy: "doctor-1"}))
		select {
		case s := <-snapshots:
			t.Fatalf("unexpected snapshot after unsubscribe: %+v", s)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("context cancellation releases the subscription", func(t *testing.T) {
		store := newTestStore()
		watchCtx, cancel := context.WithCancel(ctx)

		_, err := store.WatchAppointment(watchCtx, "appt-1", func(models.AppointmentSnapshot) {}, nil)
		require.NoError(t, err)
		cancel()

		assert.Eventually(t, func() bool {
			store.mu.Lock()
			defer store.mu.Unlock()
			return len(store.appointmentWatchers) == 0
		}, time.Second, 10*time.Millisecond)
	})
}

func TestMemoryStoreMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("observers receive the list ordered by creation time", func(t *testing.T) {
		store := newTestStore()
		lists := make(chan []models.Message, 16)

		unsubscribe, err := store.WatchMessages(ctx, "appt-1", func(m []models.Message) { lists <- m }, nil)
		require.NoError(t, err)
		defer unsubscribe()
		assert.Empty(t, nextMessages(t, lists))

		for _, offset := range []int{3, 1, 2} {
			_, err := store.AppendMessage(ctx, &models.Message{
				AppointmentID: "appt-1",
				SenderID:      "patient-1",
				Text:          "m",
				CreatedAt:     baseTime.Add(time.Duration(offset) * time.Second),
			})
			require.NoError(t, err)
		}

		var latest []models.Message
		for i := 0; i < 3; i++ {
			latest = nextMessages(t, lists)
		}
		require.Len(t, latest, 3)
		for i := 1; i < len(latest); i++ {
			assert.True(t, latest[i-1].CreatedAt.Before(latest[i].CreatedAt))
		}
		assert.NotEmpty(t, latest[0].ID)
		assert.NotNil(t, latest[0].Timestamp)
	})

	t.Run("delete removes and reports the count", func(t *testing.T) {
		store := newTestStore()
		for i := 0; i < 2; i++ {
			_, err := store.AppendMessage(ctx, &models.Message{AppointmentID: "appt-1", Text: "x", CreatedAt: baseTime})
			require.NoError(t, err)
		}

		count, err := store.DeleteMessages(ctx, "appt-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		messages, err := store.FindMessages(ctx, "appt-1")
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}
