package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"telesession-service/internal/app/config"
	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/dto/requests"
	"telesession-service/internal/pkg/exceptions"
	"telesession-service/internal/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const URLParamAppointmentID = "appointmentID"

type SessionController struct {
	Log            *zap.Logger
	SessionService contracts.SessionService
	InternalConfig *config.InternalConfig
}

func NewSessionController(logger *zap.Logger, sessionService contracts.SessionService, internalConfig *config.InternalConfig) *SessionController {
	return &SessionController{
		Log:            logger,
		SessionService: sessionService,
		InternalConfig: internalConfig,
	}
}

func (ctrl *SessionController) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	requestID := utils.GetRequestIDFromContext(r.Context())
	caller, ok := ctrl.identity(w, r, "SessionController.CreateAppointment")
	if !ok {
		return
	}

	ctrl.Log.Info("SessionController.CreateAppointment called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingUserIDKey, caller.UserID),
	)

	request := new(requests.CreateAppointment)
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		ctrl.Log.Error("SessionController.CreateAppointment error decoding request body",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.Error(err),
		)
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrCannotParseJSON(err))
		return
	}

	if err := utils.ValidateStruct(request); err != nil {
		ctrl.Log.Error("SessionController.CreateAppointment validation error",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.Error(err),
		)
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrInputValidation(err))
		return
	}

	ctx, cancel := ctrl.operationContext(r)
	defer cancel()

	appointment, err := ctrl.SessionService.CreateAppointment(ctx, caller, request)
	if err != nil {
		ctrl.renderServiceError(w, requestID, "SessionService.CreateAppointment", err)
		return
	}

	ctrl.Log.Info("SessionController.CreateAppointment succeeded",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointment.ID),
	)
	utils.BuildSuccessResponse(w, constvars.StatusCreated, constvars.ResponseAppointmentCreated, utils.MapAppointmentToResponse(appointment))
}

func (ctrl *SessionController) GetAppointment(w http.ResponseWriter, r *http.Request) {
	requestID := utils.GetRequestIDFromContext(r.Context())
	caller, ok := ctrl.identity(w, r, "SessionController.GetAppointment")
	if !ok {
		return
	}
	appointmentID, ok := ctrl.appointmentID(w, r, "SessionController.GetAppointment")
	if !ok {
		return
	}

	ctrl.Log.Info("SessionController.GetAppointment called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		zap.String(constvars.LoggingUserIDKey, caller.UserID),
	)

	ctx, cancel := ctrl.operationContext(r)
	defer cancel()

	appointment, err := ctrl.SessionService.GetAppointment(ctx, appointmentID, caller.UserID)
	if err != nil {
		ctrl.renderServiceError(w, requestID, "SessionService.GetAppointment", err)
		return
	}

	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.ResponseAppointmentFound, utils.MapAppointmentToResponse(appointment))
}

func (ctrl *SessionController) StartSession(w http.ResponseWriter, r *http.Request) {
	requestID := utils.GetRequestIDFromContext(r.Context())
	caller, ok := ctrl.identity(w, r, "SessionController.StartSession")
	if !ok {
		return
	}
	appointmentID, ok := ctrl.appointmentID(w, r, "SessionController.StartSession")
	if !ok {
		return
	}

	ctrl.Log.Info("SessionController.StartSession called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		zap.String(constvars.LoggingUserIDKey, caller.UserID),
	)

	ctx, cancel := ctrl.operationContext(r)
	defer cancel()

	if err := ctrl.SessionService.StartSession(ctx, appointmentID, caller.UserID); err != nil {
		ctrl.renderServiceError(w, requestID, "SessionService.StartSession", err)
		return
	}

	appointment, err := ctrl.SessionService.GetAppointment(ctx, appointmentID, caller.UserID)
	if err != nil {
		ctrl.renderServiceError(w, requestID, "SessionService.GetAppointment", err)
		return
	}

	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.ResponseSessionStarted, utils.MapAppointmentToResponse(appointment))
}

// EndSession accepts an empty body as a manual end.
func (ctrl *SessionController) EndSession(w http.ResponseWriter, r *http.Request) {
	requestID := utils.GetRequestIDFromContext(r.Context())
	caller, ok := ctrl.identity(w, r, "SessionController.EndSession")
	if !ok {
		return
	}
	appointmentID, ok := ctrl.appointmentID(w, r, "SessionController.EndSession")
	if !ok {
		return
	}

	request := &requests.EndSession{Reason: constvars.EndReasonManual}
	if err := json.NewDecoder(r.Body).Decode(request); err != nil && !errors.Is(err, io.EOF) {
		ctrl.Log.Error("SessionController.EndSession error decoding request body",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.Error(err),
		)
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrCannotParseJSON(err))
		return
	}

	if err := utils.ValidateStruct(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrInputValidation(err))
		return
	}

	ctrl.Log.Info("SessionController.EndSession called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		zap.String(constvars.LoggingUserIDKey, caller.UserID),
		zap.String(constvars.LoggingEndReasonKey, request.Reason),
	)

	ctx, cancel := ctrl.operationContext(r)
	defer cancel()

	if err := ctrl.SessionService.EndSession(ctx, appointmentID, caller.UserID, models.EndReason(request.Reason)); err != nil {
		ctrl.renderServiceError(w, requestID, "SessionService.EndSession", err)
		return
	}

	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.ResponseSessionEnded, nil)
}

func (ctrl *SessionController) ListMessages(w http.ResponseWriter, r *http.Request) {
	requestID := utils.GetRequestIDFromContext(r.Context())
	caller, ok := ctrl.identity(w, r, "SessionController.ListMessages")
	if !ok {
		return
	}
	appointmentID, ok := ctrl.appointmentID(w, r, "SessionController.ListMessages")
	if !ok {
		return
	}

	ctx, cancel := ctrl.operationContext(r)
	defer cancel()

	messages, err := ctrl.SessionService.ListMessages(ctx, appointmentID, caller.UserID)
	if err != nil {
		ctrl.renderServiceError(w, requestID, "SessionService.ListMessages", err)
		return
	}

	ctrl.Log.Info("SessionController.ListMessages succeeded",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
		zap.Int(constvars.LoggingMessageCountKey, len(messages)),
	)
	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.ResponseMessagesFound, utils.MapMessagesToResponse(messages))
}

func (ctrl *SessionController) SendMessage(w http.ResponseWriter, r *http.Request) {
	requestID := utils.GetRequestIDFromContext(r.Context())
	caller, ok := ctrl.identity(w, r, "SessionController.SendMessage")
	if !ok {
		return
	}
	appointmentID, ok := ctrl.appointmentID(w, r, "SessionController.SendMessage")
	if !ok {
		return
	}

	request := new(requests.SendMessage)
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		ctrl.Log.Error("SessionController.SendMessage error decoding request body",
			zap.String(constvars.LoggingRequestIDKey, requestID),
			zap.Error(err),
		)
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrCannotParseJSON(err))
		return
	}

	if err := utils.ValidateStruct(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrEmptyMessage(err))
		return
	}

	input := &contracts.SendMessageInput{
		AppointmentID: appointmentID,
		Sender:        caller,
		Text:          request.Text,
	}
	if request.CreatedAt != nil {
		input.CreatedAt = *request.CreatedAt
	}

	ctx, cancel := ctrl.operationContext(r)
	defer cancel()

	message, err := ctrl.SessionService.SendMessage(ctx, input)
	if err != nil {
		ctrl.renderServiceError(w, requestID, "SessionService.SendMessage", err)
		return
	}

	ctrl.Log.Info("SessionController.SendMessage succeeded",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
	)
	utils.BuildSuccessResponse(w, constvars.StatusCreated, constvars.ResponseMessageSent, utils.MapMessageToResponse(message))
}

func (ctrl *SessionController) identity(w http.ResponseWriter, r *http.Request, method string) (models.Participant, bool) {
	caller, ok := utils.GetIdentityFromContext(r.Context())
	if !ok {
		ctrl.Log.Error(method+" identity not found in context",
			zap.String(constvars.LoggingRequestIDKey, utils.GetRequestIDFromContext(r.Context())),
		)
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrIdentityMissing(nil))
		return models.Participant{}, false
	}
	return caller, true
}

func (ctrl *SessionController) appointmentID(w http.ResponseWriter, r *http.Request, method string) (string, bool) {
	appointmentID := chi.URLParam(r, URLParamAppointmentID)
	if appointmentID == "" {
		ctrl.Log.Error(method+" missing appointment id",
			zap.String(constvars.LoggingRequestIDKey, utils.GetRequestIDFromContext(r.Context())),
		)
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrURLParamIDValidation(nil, URLParamAppointmentID))
		return "", false
	}
	return appointmentID, true
}

func (ctrl *SessionController) operationContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := ctrl.InternalConfig.Session.OperationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx := context.WithValue(context.Background(), constvars.CONTEXT_REQUEST_ID_KEY, utils.GetRequestIDFromContext(r.Context()))
	return context.WithTimeout(ctx, timeout)
}

func (ctrl *SessionController) renderServiceError(w http.ResponseWriter, requestID, operation string, err error) {
	ctrl.Log.Error("SessionController "+operation+" error",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.Error(err),
	)
	if errors.Is(err, context.DeadlineExceeded) {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrServerDeadlineExceeded(err))
		return
	}
	utils.BuildErrorResponse(ctrl.Log, w, err)
}
