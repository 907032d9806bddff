package sessions

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"telesession-service/internal/app/config"
	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/app/services/shared/documentstore"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/dto/requests"
	"telesession-service/internal/pkg/exceptions"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockSessionEventPublisher struct {
	mock.Mock
}

func (m *MockSessionEventPublisher) Publish(ctx context.Context, event *models.SessionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockResourceLimiter struct {
	mock.Mock
}

func (m *MockResourceLimiter) ApplyResourceLimiter(ctx context.Context, input *contracts.ApplyResourceLimiterInput) (*contracts.ApplyResourceLimiterOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*contracts.ApplyResourceLimiterOutput)
	return out, args.Error(1)
}

var serviceNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestConfig() *config.InternalConfig {
	return &config.InternalConfig{
		Session: config.AppSession{
			DurationInSeconds:          900,
			TickIntervalInMilliseconds: 1000,
			MessageMaxLength:           20,
			MessageRateLimitPerMinute:  30,
			OperationTimeoutInSeconds:  5,
			DoctorAutoStart:            true,
		},
	}
}

func newTestService(publisher contracts.SessionEventPublisher, limiter contracts.ResourceLimiter) (*sessionService, *documentstore.MemoryStore) {
	store := documentstore.NewMemoryStore(zap.NewNop())
	store.SetClock(func() time.Time { return serviceNow })
	svc := NewSessionService(store, publisher, limiter, newTestConfig(), zap.NewNop()).(*sessionService)
	svc.now = func() time.Time { return serviceNow }
	return svc, store
}

func seedAppointment(t *testing.T, store contracts.AppointmentStore, id string, status models.SessionStatus) {
	t.Helper()
	appointment := &models.Appointment{
		ID:          id,
		PatientID:   "patient-1",
		PatientName: "Pat",
		DoctorID:    "doctor-1",
		DoctorName:  "Doc",
		ScheduledAt: serviceNow,
		CreatedAt:   serviceNow,
		Session:     models.AppointmentSession{Status: models.SessionStatusWaiting},
	}
	require.NoError(t, store.CreateAppointment(context.Background(), appointment))
	if status == models.SessionStatusActive {
		require.NoError(t, store.ActivateSession(context.Background(), &contracts.ActivateSessionInput{
			AppointmentID:   id,
			StartedBy:       "doctor-1",
			DurationSeconds: 900,
		}))
	}
}

func statusCode(t *testing.T, err error) int {
	t.Helper()
	var customErr *exceptions.CustomError
	require.True(t, errors.As(err, &customErr), "expected a CustomError, got %v", err)
	return customErr.StatusCode
}

var (
	doctor  = models.Participant{UserID: "doctor-1", Name: "Doc", Role: constvars.RoleDoctor}
	patient = models.Participant{UserID: "patient-1", Name: "Pat", Role: constvars.RolePatient}
)

func TestSessionServiceCreateAppointment(t *testing.T) {
	ctx := context.Background()
	request := &requests.CreateAppointment{
		AppointmentID: "appt-1",
		PatientID:     "patient-1",
		PatientName:   " Pat ",
		DoctorID:      "doctor-1",
		DoctorName:    "Doc",
		ScheduledAt:   serviceNow.Add(time.Hour),
	}

	t.Run("doctor creates a waiting appointment", func(t *testing.T) {
		svc, store := newTestService(nil, nil)

		appointment, err := svc.CreateAppointment(ctx, doctor, request)
		require.NoError(t, err)
		assert.Equal(t, models.SessionStatusWaiting, appointment.Session.Status)
		assert.Equal(t, int64(900), appointment.Session.DurationSeconds)
		assert.Equal(t, "Pat", appointment.PatientName)

		stored, err := store.FindAppointmentByID(ctx, "appt-1")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, serviceNow, stored.CreatedAt)
	})

	t.Run("generates an id when none is given", func(t *testing.T) {
		svc, _ := newTestService(nil, nil)
		withoutID := *request
		withoutID.AppointmentID = ""

		appointment, err := svc.CreateAppointment(ctx, doctor, &withoutID)
		require.NoError(t, err)
		assert.NotEmpty(t, appointment.ID)
	})

	t.Run("another doctor is rejected", func(t *testing.T) {
		svc, _ := newTestService(nil, nil)
		other := models.Participant{UserID: "doctor-2", Role: constvars.RoleDoctor}

		_, err := svc.CreateAppointment(ctx, other, request)
		assert.Equal(t, http.StatusForbidden, statusCode(t, err))
	})

	t.Run("duplicate id is a conflict", func(t *testing.T) {
		svc, _ := newTestService(nil, nil)
		_, err := svc.CreateAppointment(ctx, doctor, request)
		require.NoError(t, err)

		_, err = svc.CreateAppointment(ctx, doctor, request)
		assert.Equal(t, http.StatusConflict, statusCode(t, err))
	})
}

func TestSessionServiceStartSession(t *testing.T) {
	ctx := context.Background()

	t.Run("doctor starts a waiting session and an event is published", func(t *testing.T) {
		publisher := new(MockSessionEventPublisher)
		publisher.On("Publish", mock.Anything, mock.MatchedBy(func(event *models.SessionEvent) bool {
			return event.Type == constvars.SessionEventStarted && event.AppointmentID == "appt-1" && event.ID != ""
		})).Return(nil).Once()
		svc, store := newTestService(publisher, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusWaiting)

		require.NoError(t, svc.StartSession(ctx, "appt-1", "doctor-1"))

		stored, _ := store.FindAppointmentByID(ctx, "appt-1")
		assert.Equal(t, models.SessionStatusActive, stored.Session.Status)
		require.NotNil(t, stored.Session.StartTime)
		assert.Equal(t, serviceNow, *stored.Session.StartTime)
		publisher.AssertExpectations(t)
	})

	t.Run("second start is a no-op and keeps the start time", func(t *testing.T) {
		svc, store := newTestService(nil, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusActive)
		store.SetClock(func() time.Time { return serviceNow.Add(time.Minute) })

		require.NoError(t, svc.StartSession(ctx, "appt-1", "doctor-1"))

		stored, _ := store.FindAppointmentByID(ctx, "appt-1")
		assert.Equal(t, serviceNow, *stored.Session.StartTime)
	})

	t.Run("patient cannot start", func(t *testing.T) {
		svc, store := newTestService(nil, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusWaiting)

		err := svc.StartSession(ctx, "appt-1", "patient-1")
		assert.Equal(t, http.StatusForbidden, statusCode(t, err))
	})

	t.Run("unknown appointment is not found", func(t *testing.T) {
		svc, _ := newTestService(nil, nil)

		err := svc.StartSession(ctx, "missing", "doctor-1")
		assert.Equal(t, http.StatusNotFound, statusCode(t, err))
	})

	t.Run("publish failure does not fail the transition", func(t *testing.T) {
		publisher := new(MockSessionEventPublisher)
		publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
		svc, store := newTestService(publisher, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusWaiting)

		assert.NoError(t, svc.StartSession(ctx, "appt-1", "doctor-1"))
	})
}

func TestSessionServiceEndSession(t *testing.T) {
	ctx := context.Background()

	t.Run("participant ends an active session and the document is removed", func(t *testing.T) {
		publisher := new(MockSessionEventPublisher)
		publisher.On("Publish", mock.Anything, mock.MatchedBy(func(event *models.SessionEvent) bool {
			return event.Type == constvars.SessionEventEnded &&
				event.Reason == models.EndReasonManual &&
				event.Appointment != nil &&
				event.Appointment.Session.Status == models.SessionStatusEnded
		})).Return(nil).Once()
		svc, store := newTestService(publisher, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusActive)

		require.NoError(t, svc.EndSession(ctx, "appt-1", "patient-1", models.EndReasonManual))

		stored, err := store.FindAppointmentByID(ctx, "appt-1")
		require.NoError(t, err)
		assert.Nil(t, stored)
		publisher.AssertExpectations(t)
	})

	t.Run("ending twice is a no-op", func(t *testing.T) {
		svc, store := newTestService(nil, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusActive)

		require.NoError(t, svc.EndSession(ctx, "appt-1", "doctor-1", models.EndReasonCompleted))
		assert.NoError(t, svc.EndSession(ctx, "appt-1", "doctor-1", models.EndReasonCompleted))
	})

	t.Run("system actor may end on time up", func(t *testing.T) {
		svc, store := newTestService(nil, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusActive)

		assert.NoError(t, svc.EndSession(ctx, "appt-1", constvars.SystemActorID, models.EndReasonTimeUp))
	})

	t.Run("waiting session cannot be ended", func(t *testing.T) {
		svc, store := newTestService(nil, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusWaiting)

		err := svc.EndSession(ctx, "appt-1", "doctor-1", models.EndReasonManual)
		assert.Equal(t, http.StatusConflict, statusCode(t, err))
	})

	t.Run("outsider is rejected", func(t *testing.T) {
		svc, store := newTestService(nil, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusActive)

		err := svc.EndSession(ctx, "appt-1", "stranger", models.EndReasonManual)
		assert.Equal(t, http.StatusForbidden, statusCode(t, err))
	})

	t.Run("invalid reason is a validation error", func(t *testing.T) {
		svc, store := newTestService(nil, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusActive)

		err := svc.EndSession(ctx, "appt-1", "doctor-1", models.EndReason("bored"))
		assert.Equal(t, http.StatusBadRequest, statusCode(t, err))
	})
}

func TestSessionServiceSendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("participant sends a trimmed message", func(t *testing.T) {
		svc, store := newTestService(nil, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusActive)
		createdAt := serviceNow.Add(5 * time.Second)

		message, err := svc.SendMessage(ctx, &contracts.SendMessageInput{
			AppointmentID: "appt-1",
			Sender:        models.Participant{UserID: "patient-1"},
			Text:          "  hello  ",
			CreatedAt:     createdAt,
		})
		require.NoError(t, err)
		assert.Equal(t, "hello", message.Text)
		assert.Equal(t, "Pat", message.SenderName)
		assert.Equal(t, constvars.RolePatient, message.SenderRole)
		assert.Equal(t, createdAt, message.CreatedAt)
		assert.NotEmpty(t, message.ID)
	})

	t.Run("blank text is rejected without touching the store", func(t *testing.T) {
		svc, _ := newTestService(nil, nil)

		_, err := svc.SendMessage(ctx, &contracts.SendMessageInput{AppointmentID: "appt-1", Sender: patient, Text: " \n\t "})
		assert.Equal(t, http.StatusBadRequest, statusCode(t, err))
	})

	t.Run("text over the limit is rejected", func(t *testing.T) {
		svc, store := newTestService(nil, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusActive)

		_, err := svc.SendMessage(ctx, &contracts.SendMessageInput{AppointmentID: "appt-1", Sender: patient, Text: strings.Repeat("a", 21)})
		assert.Equal(t, http.StatusBadRequest, statusCode(t, err))
	})

	t.Run("waiting session rejects messages", func(t *testing.T) {
		svc, store := newTestService(nil, nil)
		seedAppointment(t, store, "appt-1", models.SessionStatusWaiting)

		_, err := svc.SendMessage(ctx, &contracts.SendMessageInput{AppointmentID: "appt-1", Sender: patient, Text: "hi"})
		assert.Equal(t, http.StatusConflict, statusCode(t, err))
	})

	t.Run("rate limited sender is rejected", func(t *testing.T) {
		limiter := new(MockResourceLimiter)
		limiter.On("ApplyResourceLimiter", mock.Anything, mock.MatchedBy(func(in *contracts.ApplyResourceLimiterInput) bool {
			return in.ResourceName == "appt-1:patient-1" && in.LimiterGroupName == constvars.RateLimitGroupMessages
		})).Return(&contracts.ApplyResourceLimiterOutput{Allowed: false, RetryAfterSecs: 10}, nil)
		svc, store := newTestService(nil, limiter)
		seedAppointment(t, store, "appt-1", models.SessionStatusActive)

		_, err := svc.SendMessage(ctx, &contracts.SendMessageInput{AppointmentID: "appt-1", Sender: patient, Text: "hi"})
		assert.Equal(t, http.StatusTooManyRequests, statusCode(t, err))
		limiter.AssertExpectations(t)
	})

	t.Run("limiter failure lets the message through", func(t *testing.T) {
		limiter := new(MockResourceLimiter)
		limiter.On("ApplyResourceLimiter", mock.Anything, mock.Anything).Return(nil, errors.New("redis down"))
		svc, store := newTestService(nil, limiter)
		seedAppointment(t, store, "appt-1", models.SessionStatusActive)

		_, err := svc.SendMessage(ctx, &contracts.SendMessageInput{AppointmentID: "appt-1", Sender: patient, Text: "hi"})
		assert.NoError(t, err)
	})
}

func TestSessionServiceListMessages(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(nil, nil)
	seedAppointment(t, store, "appt-1", models.SessionStatusActive)

	_, err := svc.SendMessage(ctx, &contracts.SendMessageInput{AppointmentID: "appt-1", Sender: doctor, Text: "second", CreatedAt: serviceNow.Add(2 * time.Second)})
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, &contracts.SendMessageInput{AppointmentID: "appt-1", Sender: patient, Text: "first", CreatedAt: serviceNow.Add(time.Second)})
	require.NoError(t, err)

	t.Run("messages come back in creation order", func(t *testing.T) {
		messages, err := svc.ListMessages(ctx, "appt-1", "doctor-1")
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "first", messages[0].Text)
		assert.Equal(t, "second", messages[1].Text)
	})

	t.Run("outsider cannot read", func(t *testing.T) {
		_, err := svc.ListMessages(ctx, "appt-1", "stranger")
		assert.Equal(t, http.StatusForbidden, statusCode(t, err))
	})
}
