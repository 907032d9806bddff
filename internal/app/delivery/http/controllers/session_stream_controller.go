package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"telesession-service/internal/app/config"
	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/app/services/core/sessions"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/dto/requests"
	"telesession-service/internal/pkg/dto/responses"
	"telesession-service/internal/pkg/exceptions"
	"telesession-service/internal/pkg/utils"

	"github.com/fasthttp/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SessionStreamController serves the live session stream. Each connection
// owns one Coordinator for the authenticated participant.
type SessionStreamController struct {
	Log            *zap.Logger
	SessionService contracts.SessionService
	Store          contracts.AppointmentStore
	InternalConfig *config.InternalConfig
	Upgrader       websocket.Upgrader
}

func NewSessionStreamController(
	logger *zap.Logger,
	sessionService contracts.SessionService,
	store contracts.AppointmentStore,
	internalConfig *config.InternalConfig,
) *SessionStreamController {
	return &SessionStreamController{
		Log:            logger,
		SessionService: sessionService,
		Store:          store,
		InternalConfig: internalConfig,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are enforced by the cors middleware and the identity token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (ctrl *SessionStreamController) Stream(w http.ResponseWriter, r *http.Request) {
	requestID := utils.GetRequestIDFromContext(r.Context())
	caller, ok := utils.GetIdentityFromContext(r.Context())
	if !ok {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrIdentityMissing(nil))
		return
	}
	appointmentID := chi.URLParam(r, URLParamAppointmentID)
	if appointmentID == "" {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrURLParamIDValidation(nil, URLParamAppointmentID))
		return
	}

	log := ctrl.Log.With(
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		zap.String(constvars.LoggingUserIDKey, caller.UserID),
	)
	log.Info("SessionStreamController.Stream called")

	ctx, cancel := context.WithTimeout(context.Background(), ctrl.operationTimeout())
	_, err := ctrl.SessionService.GetAppointment(ctx, appointmentID, caller.UserID)
	cancel()
	if err != nil {
		log.Info("SessionStreamController.Stream access rejected", zap.Error(err))
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}

	conn, err := ctrl.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("SessionStreamController.Stream upgrade failed", zap.Error(err))
		return
	}

	client := newStreamClient(conn, log, ctrl.InternalConfig.Stream)
	stream := &sessionStream{
		log:    log,
		client: client,
		caller: caller,
		limiter: rate.NewLimiter(
			rate.Limit(max(ctrl.InternalConfig.Stream.InboundFramesPerSecond, 1)),
			max(ctrl.InternalConfig.Stream.InboundBurst, 1),
		),
		timeout: ctrl.operationTimeout(),
	}
	stream.coordinator = sessions.NewCoordinator(sessions.CoordinatorInput{
		AppointmentID: appointmentID,
		Participant:   caller,
		Service:       ctrl.SessionService,
		Store:         ctrl.Store,
		Config: sessions.CoordinatorConfig{
			SessionDuration:  ctrl.InternalConfig.Session.Duration(),
			TickInterval:     ctrl.InternalConfig.Session.TickInterval(),
			AutoStart:        ctrl.InternalConfig.Session.DoctorAutoStart,
			OperationTimeout: ctrl.operationTimeout(),
		},
		Hooks: sessions.CoordinatorHooks{
			OnCountdownTick:     stream.onCountdownTick,
			OnSessionEnded:      stream.onSessionEnded,
			OnOperationError:    stream.onOperationError,
			OnSubscriptionError: stream.onSubscriptionError,
		},
		Log: ctrl.Log,
	})

	go client.writePump()

	streamCtx, streamCancel := context.WithCancel(context.Background())
	defer streamCancel()

	err = stream.coordinator.Open(streamCtx, sessions.OpenInput{
		OnAppointment: stream.onAppointment,
		OnMessages:    stream.onMessages,
	})
	if err != nil {
		log.Error("SessionStreamController.Stream error opening coordinator", zap.Error(err))
		stream.onSubscriptionError(constvars.ResourceAppointments, err)
		stream.coordinator.Close()
		return
	}

	client.readPump(stream.handleCommand)

	stream.coordinator.Close()
	client.shutdown()
	log.Info("SessionStreamController.Stream closed")
}

func (ctrl *SessionStreamController) operationTimeout() time.Duration {
	timeout := ctrl.InternalConfig.Session.OperationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

// sessionStream translates coordinator callbacks into frames and inbound
// commands into coordinator operations for one connection.
type sessionStream struct {
	log         *zap.Logger
	client      *streamClient
	coordinator *sessions.Coordinator
	caller      models.Participant
	limiter     *rate.Limiter
	timeout     time.Duration

	mu   sync.Mutex
	seen bool
}

func (s *sessionStream) onAppointment(snapshot models.AppointmentSnapshot) {
	s.mu.Lock()
	seen := s.seen
	if snapshot.Exists {
		s.seen = true
	}
	s.mu.Unlock()

	if !snapshot.Exists || snapshot.Appointment == nil {
		// After a sighting, a missing document is the end of the session and
		// is reported through onSessionEnded.
		if !seen {
			s.client.enqueue(responses.StreamFrame{Type: constvars.StreamFrameNotFound})
		}
		return
	}

	s.client.enqueue(responses.StreamFrame{
		Type:        constvars.StreamFrameAppointment,
		Appointment: utils.MapAppointmentToResponse(snapshot.Appointment),
	})
}

func (s *sessionStream) onMessages(messages []models.Message) {
	s.client.enqueue(responses.StreamFrame{
		Type:     constvars.StreamFrameMessages,
		Messages: utils.MapMessagesToResponse(messages),
	})
}

func (s *sessionStream) onCountdownTick(remaining time.Duration) {
	seconds := utils.RemainingSeconds(remaining)
	s.client.enqueue(responses.StreamFrame{
		Type:               constvars.StreamFrameCountdown,
		RemainingInSeconds: &seconds,
	})
}

func (s *sessionStream) onSessionEnded(reason models.EndReason) {
	s.client.enqueue(responses.StreamFrame{
		Type:   constvars.StreamFrameSessionEnded,
		Reason: string(reason),
	})
	s.client.finish()
}

func (s *sessionStream) onOperationError(operation string, err error) {
	customErr := utils.AsCustomError(s.log, err)
	s.log.Warn("sessionStream operation failed",
		zap.String(constvars.LoggingOperationKey, operation),
		zap.Bool(constvars.LoggingRetryableKey, customErr.Retryable()),
		zap.Error(err),
	)
	s.client.enqueue(responses.StreamFrame{
		Type:      constvars.StreamFrameOperationError,
		Operation: operation,
		Message:   customErr.ClientMessage,
		Retryable: customErr.Retryable(),
	})
}

func (s *sessionStream) onSubscriptionError(resource string, err error) {
	customErr := utils.AsCustomError(s.log, err)
	s.client.enqueue(responses.StreamFrame{
		Type:    constvars.StreamFrameSubscriptionError,
		Message: customErr.ClientMessage,
	})
	s.client.finish()
}

func (s *sessionStream) handleCommand(payload []byte) {
	if !s.limiter.Allow() {
		s.onOperationError(constvars.ResponseUnknown, exceptions.ErrTooManyRequests(nil))
		return
	}

	command := new(requests.StreamCommand)
	if err := json.Unmarshal(payload, command); err != nil {
		s.onOperationError(constvars.ResponseUnknown, exceptions.ErrCannotParseJSON(err))
		return
	}
	if err := utils.ValidateStruct(command); err != nil {
		s.onOperationError(command.Type, exceptions.ErrInputValidation(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	switch command.Type {
	case constvars.StreamCommandStartSession:
		if !s.caller.IsDoctor() {
			err = exceptions.ErrNotSessionDoctor(nil)
			break
		}
		err = s.coordinator.StartSession(ctx, s.caller.UserID)
	case constvars.StreamCommandEndSession:
		reason := models.EndReason(command.Reason)
		if command.Reason == "" {
			reason = models.EndReasonManual
		}
		if !reason.IsValid() {
			err = exceptions.ErrInputValidation(nil)
			break
		}
		err = s.coordinator.EndSession(ctx, s.caller.UserID, reason)
	case constvars.StreamCommandSendMessage:
		err = s.coordinator.SendMessage(ctx, s.caller.UserID, s.caller.Name, s.caller.Role, command.Text)
	}

	if err != nil {
		s.onOperationError(command.Type, err)
	}
}
