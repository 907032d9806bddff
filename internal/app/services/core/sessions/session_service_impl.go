package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"telesession-service/internal/app/config"
	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/dto/requests"
	"telesession-service/internal/pkg/exceptions"
	"telesession-service/internal/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sessionService struct {
	Store          contracts.AppointmentStore
	Publisher      contracts.SessionEventPublisher
	Limiter        contracts.ResourceLimiter
	InternalConfig *config.InternalConfig
	Log            *zap.Logger
	now            func() time.Time
}

// NewSessionService builds the session lifecycle service. publisher and
// limiter are optional.
func NewSessionService(
	store contracts.AppointmentStore,
	publisher contracts.SessionEventPublisher,
	limiter contracts.ResourceLimiter,
	internalConfig *config.InternalConfig,
	logger *zap.Logger,
) contracts.SessionService {
	return &sessionService{
		Store:          store,
		Publisher:      publisher,
		Limiter:        limiter,
		InternalConfig: internalConfig,
		Log:            logger,
		now:            time.Now,
	}
}

func (s *sessionService) CreateAppointment(ctx context.Context, approver models.Participant, request *requests.CreateAppointment) (*models.Appointment, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	s.Log.Info("sessionService.CreateAppointment called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingUserIDKey, approver.UserID),
	)

	if !approver.IsDoctor() || approver.UserID != request.DoctorID {
		return nil, exceptions.ErrNotSessionDoctor(nil)
	}

	appointmentID := request.AppointmentID
	if appointmentID == "" {
		appointmentID = utils.GenerateAppointmentID()
	}
	durationSeconds := request.DurationInSeconds
	if durationSeconds <= 0 {
		durationSeconds = int64(s.InternalConfig.Session.DurationInSeconds)
	}

	appointment := &models.Appointment{
		ID:          appointmentID,
		PatientID:   request.PatientID,
		PatientName: strings.TrimSpace(request.PatientName),
		DoctorID:    request.DoctorID,
		DoctorName:  strings.TrimSpace(request.DoctorName),
		ScheduledAt: request.ScheduledAt.UTC(),
		CreatedAt:   s.now().UTC(),
		Session: models.AppointmentSession{
			Status:          models.SessionStatusWaiting,
			DurationSeconds: durationSeconds,
		},
	}

	err := s.Store.CreateAppointment(ctx, appointment)
	if errors.Is(err, models.ErrAppointmentAlreadyExists) {
		return nil, exceptions.ErrAppointmentAlreadyExists(err)
	}
	if err != nil {
		s.Log.Error("sessionService.CreateAppointment error calling Store.CreateAppointment",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.Error(err),
		)
		return nil, err
	}

	s.Log.Info("sessionService.CreateAppointment succeeded",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
	)
	return appointment, nil
}

func (s *sessionService) GetAppointment(ctx context.Context, appointmentID, userID string) (*models.Appointment, error) {
	appointment, err := s.Store.FindAppointmentByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appointment == nil {
		return nil, exceptions.ErrAppointmentNotFound(models.ErrAppointmentNotFound)
	}
	if !appointment.IsParticipant(userID) {
		return nil, exceptions.ErrNotParticipant(nil)
	}
	return appointment, nil
}

// StartSession moves a waiting session to active. Starting a session that is
// already active is a no-op so concurrent starts cannot reset the start time.
func (s *sessionService) StartSession(ctx context.Context, appointmentID, doctorID string) error {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	s.Log.Info("sessionService.StartSession called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		zap.String(constvars.LoggingUserIDKey, doctorID),
	)

	appointment, err := s.Store.FindAppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appointment == nil {
		return exceptions.ErrAppointmentNotFound(models.ErrAppointmentNotFound)
	}
	if appointment.DoctorID != doctorID {
		return exceptions.ErrNotSessionDoctor(nil)
	}
	if appointment.Session.Status == models.SessionStatusActive {
		s.Log.Info("sessionService.StartSession session already active",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		)
		return nil
	}
	if appointment.Session.Status != models.SessionStatusWaiting {
		return exceptions.ErrSessionNotWaiting(nil)
	}

	durationSeconds := int64(appointment.Session.Duration(s.InternalConfig.Session.Duration()) / time.Second)
	err = s.Store.ActivateSession(ctx, &contracts.ActivateSessionInput{
		AppointmentID:   appointmentID,
		StartedBy:       doctorID,
		DurationSeconds: durationSeconds,
	})
	switch {
	case errors.Is(err, models.ErrTransitionRejected):
		s.Log.Info("sessionService.StartSession lost the race to another start",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		)
		return nil
	case errors.Is(err, models.ErrAppointmentNotFound):
		return exceptions.ErrAppointmentNotFound(err)
	case err != nil:
		s.Log.Error("sessionService.StartSession error calling Store.ActivateSession",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.Error(err),
		)
		return err
	}

	s.publish(ctx, &models.SessionEvent{
		Type:          constvars.SessionEventStarted,
		AppointmentID: appointmentID,
		ActorID:       doctorID,
	})

	s.Log.Info("sessionService.StartSession succeeded",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
	)
	return nil
}

// EndSession ends an active session. A session that is already gone counts as ended.
func (s *sessionService) EndSession(ctx context.Context, appointmentID, userID string, reason models.EndReason) error {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	s.Log.Info("sessionService.EndSession called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		zap.String(constvars.LoggingUserIDKey, userID),
		zap.String(constvars.LoggingEndReasonKey, string(reason)),
	)

	if !reason.IsValid() {
		return exceptions.ErrInputValidation(fmt.Errorf("invalid end reason %q", reason))
	}

	appointment, err := s.Store.FindAppointmentByID(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appointment == nil {
		s.Log.Info("sessionService.EndSession appointment already removed",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		)
		return nil
	}
	if userID != constvars.SystemActorID && !appointment.IsParticipant(userID) {
		return exceptions.ErrNotParticipant(nil)
	}
	if appointment.Session.Status == models.SessionStatusWaiting {
		return exceptions.ErrSessionNotActive(nil)
	}

	final, err := s.Store.EndSession(ctx, &contracts.EndSessionInput{
		AppointmentID: appointmentID,
		EndedBy:       userID,
		Reason:        reason,
	})
	if errors.Is(err, models.ErrAppointmentNotFound) || errors.Is(err, models.ErrTransitionRejected) {
		s.Log.Info("sessionService.EndSession session ended concurrently",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		)
		return nil
	}
	if err != nil {
		s.Log.Error("sessionService.EndSession error calling Store.EndSession",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.Error(err),
		)
		return err
	}

	s.publish(ctx, &models.SessionEvent{
		Type:          constvars.SessionEventEnded,
		AppointmentID: appointmentID,
		ActorID:       userID,
		Reason:        reason,
		Appointment:   final,
	})

	s.Log.Info("sessionService.EndSession succeeded",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
	)
	return nil
}

func (s *sessionService) SendMessage(ctx context.Context, input *contracts.SendMessageInput) (*models.Message, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, exceptions.ErrEmptyMessage(nil)
	}
	maxLength := s.InternalConfig.Session.MessageMaxLength
	if maxLength > 0 && utf8.RuneCountInString(text) > maxLength {
		return nil, exceptions.ErrMessageTooLong(nil, maxLength)
	}

	appointment, err := s.GetAppointment(ctx, input.AppointmentID, input.Sender.UserID)
	if err != nil {
		return nil, err
	}
	if appointment.Session.Status != models.SessionStatusActive {
		return nil, exceptions.ErrSessionNotActive(nil)
	}

	if err := s.applyMessageLimit(ctx, input); err != nil {
		return nil, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	senderName := strings.TrimSpace(input.Sender.Name)
	role := appointment.RoleOf(input.Sender.UserID)
	if senderName == "" {
		senderName = appointment.PatientName
		if role == constvars.RoleDoctor {
			senderName = appointment.DoctorName
		}
	}

	message, err := s.Store.AppendMessage(ctx, &models.Message{
		AppointmentID: input.AppointmentID,
		SenderID:      input.Sender.UserID,
		SenderName:    senderName,
		SenderRole:    role,
		Text:          text,
		CreatedAt:     createdAt.UTC(),
	})
	if err != nil {
		s.Log.Error("sessionService.SendMessage error calling Store.AppendMessage",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.String(constvars.LoggingAppointmentIDKey, input.AppointmentID),
			zap.Error(err),
		)
		return nil, err
	}
	return message, nil
}

func (s *sessionService) ListMessages(ctx context.Context, appointmentID, userID string) ([]models.Message, error) {
	if _, err := s.GetAppointment(ctx, appointmentID, userID); err != nil {
		return nil, err
	}
	return s.Store.FindMessages(ctx, appointmentID)
}

// applyMessageLimit fails open when the limiter backend is unavailable.
func (s *sessionService) applyMessageLimit(ctx context.Context, input *contracts.SendMessageInput) error {
	if s.Limiter == nil {
		return nil
	}

	out, err := s.Limiter.ApplyResourceLimiter(ctx, &contracts.ApplyResourceLimiterInput{
		ResourceName:      input.AppointmentID + ":" + input.Sender.UserID,
		LimiterGroupName:  constvars.RateLimitGroupMessages,
		WindowDurationSec: 60,
		MaxQuota:          s.InternalConfig.Session.MessageRateLimitPerMinute,
	})
	if err != nil {
		s.Log.Warn("sessionService.SendMessage rate limiter unavailable",
			zap.String(constvars.LoggingAppointmentIDKey, input.AppointmentID),
			zap.Error(err),
		)
		return nil
	}
	if !out.Allowed {
		return exceptions.ErrTooManyRequests(nil)
	}
	return nil
}

// publish is best effort. The transition already happened and must not be
// reported as failed because the event could not be queued.
func (s *sessionService) publish(ctx context.Context, event *models.SessionEvent) {
	if s.Publisher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = s.now().UTC()

	if err := s.Publisher.Publish(ctx, event); err != nil {
		s.Log.Error("sessionService.publish failed",
			zap.String(constvars.LoggingEventTypeKey, event.Type),
			zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
			zap.Error(err),
		)
	}
}
