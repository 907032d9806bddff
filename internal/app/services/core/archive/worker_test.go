package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"telesession-service/internal/app/config"
	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/app/services/shared/documentstore"
	"telesession-service/internal/pkg/constvars"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockLockerService struct {
	mock.Mock
}

func (m *MockLockerService) TryLock(ctx context.Context, key string, expiration time.Duration) (bool, string, error) {
	args := m.Called(ctx, key, expiration)
	return args.Bool(0), args.String(1), args.Error(2)
}

func (m *MockLockerService) Unlock(ctx context.Context, key, lockValue string) error {
	return m.Called(ctx, key, lockValue).Error(0)
}

func (m *MockLockerService) Refresh(ctx context.Context, key, lockValue string, expiration time.Duration) error {
	return m.Called(ctx, key, lockValue, expiration).Error(0)
}

type MockSessionEventQueue struct {
	mock.Mock
}

func (m *MockSessionEventQueue) Publish(ctx context.Context, event *models.SessionEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockSessionEventQueue) FetchN(ctx context.Context, input *contracts.FetchSessionEventsInput) (*contracts.FetchSessionEventsOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*contracts.FetchSessionEventsOutput)
	return out, args.Error(1)
}

func (m *MockSessionEventQueue) Ack(ctx context.Context, deliveryTag uint64) error {
	return m.Called(ctx, deliveryTag).Error(0)
}

func (m *MockSessionEventQueue) Reenqueue(ctx context.Context, event *models.SessionEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockSessionEventQueue) EnqueueToDeadQueue(ctx context.Context, event *models.SessionEvent) error {
	return m.Called(ctx, event).Error(0)
}

type MockTranscriptStorage struct {
	mock.Mock
}

func (m *MockTranscriptStorage) EnsureBucket(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockTranscriptStorage) SaveTranscript(ctx context.Context, transcript *models.SessionTranscript) (string, error) {
	args := m.Called(ctx, transcript)
	return args.String(0), args.Error(1)
}

var archiveNow = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type workerFixture struct {
	worker  *Worker
	locker  *MockLockerService
	queue   *MockSessionEventQueue
	storage *MockTranscriptStorage
	store   *documentstore.MemoryStore
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	cfg := &config.InternalConfig{
		Archive: config.AppArchive{
			Enabled:                 true,
			WorkerIntervalInSeconds: 1,
			MaxQueue:                10,
			MaxRetries:              3,
			LockTTLInSeconds:        30,
		},
	}
	f := &workerFixture{
		locker:  new(MockLockerService),
		queue:   new(MockSessionEventQueue),
		storage: new(MockTranscriptStorage),
		store:   documentstore.NewMemoryStore(zap.NewNop()),
	}
	f.worker = NewWorker(zap.NewNop(), cfg, f.locker, f.queue, f.store, f.storage)
	f.worker.now = func() time.Time { return archiveNow }

	f.locker.On("TryLock", mock.Anything, constvars.LockKeyArchiveWorker, 30*time.Second).Return(true, "token", nil)
	f.locker.On("Unlock", mock.Anything, constvars.LockKeyArchiveWorker, "token").Return(nil)
	return f
}

func (f *workerFixture) seedMessages(t *testing.T, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		_, err := f.store.AppendMessage(context.Background(), &models.Message{
			AppointmentID: "appt-1",
			SenderID:      "patient-1",
			Text:          "hello",
			CreatedAt:     archiveNow.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
}

func endedEvent(failedCount int) *models.SessionEvent {
	return &models.SessionEvent{
		ID:            "evt-1",
		Type:          constvars.SessionEventEnded,
		AppointmentID: "appt-1",
		Reason:        models.EndReasonTimeUp,
		Appointment:   &models.Appointment{ID: "appt-1", PatientID: "patient-1", DoctorID: "doctor-1"},
		FailedCount:   failedCount,
	}
}

func (f *workerFixture) fetchReturns(events ...*models.SessionEvent) {
	items := make([]contracts.QueuedSessionEvent, 0, len(events))
	for i, event := range events {
		items = append(items, contracts.QueuedSessionEvent{DeliveryTag: uint64(i + 1), Event: event})
	}
	f.queue.On("FetchN", mock.Anything, &contracts.FetchSessionEventsInput{Max: 10}).
		Return(&contracts.FetchSessionEventsOutput{Items: items}, nil).Once()
}

func TestArchiveWorkerRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("ended session transcript is saved then messages are removed", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.seedMessages(t, 2)
		f.fetchReturns(endedEvent(0))
		f.storage.On("SaveTranscript", mock.Anything, mock.MatchedBy(func(transcript *models.SessionTranscript) bool {
			return transcript.Appointment.ID == "appt-1" && len(transcript.Messages) == 2 && transcript.ArchivedAt.Equal(archiveNow)
		})).Return("transcripts/appt-1.json", nil).Once()
		f.queue.On("Ack", mock.Anything, uint64(1)).Return(nil).Once()

		f.worker.runOnce(ctx, archiveNow)

		messages, err := f.store.FindMessages(ctx, "appt-1")
		require.NoError(t, err)
		assert.Empty(t, messages)
		f.storage.AssertExpectations(t)
		f.queue.AssertExpectations(t)
		f.locker.AssertExpectations(t)
	})

	t.Run("started events are acknowledged without archiving", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.fetchReturns(&models.SessionEvent{Type: constvars.SessionEventStarted, AppointmentID: "appt-1"})
		f.queue.On("Ack", mock.Anything, uint64(1)).Return(nil).Once()

		f.worker.runOnce(ctx, archiveNow)

		f.storage.AssertNotCalled(t, "SaveTranscript", mock.Anything, mock.Anything)
		f.queue.AssertExpectations(t)
	})

	t.Run("redelivery after cleanup does not overwrite the transcript", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.fetchReturns(endedEvent(0))
		f.queue.On("Ack", mock.Anything, uint64(1)).Return(nil).Once()

		f.worker.runOnce(ctx, archiveNow)

		f.storage.AssertNotCalled(t, "SaveTranscript", mock.Anything, mock.Anything)
		f.queue.AssertExpectations(t)
	})

	t.Run("storage failure requeues with an incremented failed count", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.seedMessages(t, 1)
		f.fetchReturns(endedEvent(0))
		f.storage.On("SaveTranscript", mock.Anything, mock.Anything).Return("", errors.New("minio down")).Once()
		f.queue.On("Reenqueue", mock.Anything, mock.MatchedBy(func(event *models.SessionEvent) bool {
			return event.FailedCount == 1
		})).Return(nil).Once()
		f.queue.On("Ack", mock.Anything, uint64(1)).Return(nil).Once()

		f.worker.runOnce(ctx, archiveNow)

		messages, _ := f.store.FindMessages(ctx, "appt-1")
		assert.Len(t, messages, 1)
		f.queue.AssertExpectations(t)
	})

	t.Run("exhausted retries go to the dead letter queue", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.seedMessages(t, 1)
		f.fetchReturns(endedEvent(2))
		f.storage.On("SaveTranscript", mock.Anything, mock.Anything).Return("", errors.New("minio down")).Once()
		f.queue.On("EnqueueToDeadQueue", mock.Anything, mock.MatchedBy(func(event *models.SessionEvent) bool {
			return event.FailedCount == 3
		})).Return(nil).Once()
		f.queue.On("Ack", mock.Anything, uint64(1)).Return(nil).Once()

		f.worker.runOnce(ctx, archiveNow)

		f.queue.AssertNotCalled(t, "Reenqueue", mock.Anything, mock.Anything)
		f.queue.AssertExpectations(t)
	})

	t.Run("another instance holding the lock skips the batch", func(t *testing.T) {
		f := newWorkerFixture(t)
		f.locker.ExpectedCalls = nil
		f.locker.On("TryLock", mock.Anything, constvars.LockKeyArchiveWorker, mock.Anything).Return(false, "", nil)

		f.worker.runOnce(ctx, archiveNow)

		f.queue.AssertNotCalled(t, "FetchN", mock.Anything, mock.Anything)
		f.locker.AssertNotCalled(t, "Unlock", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestArchiveWorkerStop(t *testing.T) {
	f := newWorkerFixture(t)
	f.queue.On("FetchN", mock.Anything, mock.Anything).Return(&contracts.FetchSessionEventsOutput{}, nil).Maybe()

	stop := f.worker.Start(context.Background())
	done := make(chan struct{})
	go func() {
		stop()
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
