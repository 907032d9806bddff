package sessions

import (
	"context"
	"strings"
	"sync"
	"time"

	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"

	"go.uber.org/zap"
)

type CoordinatorConfig struct {
	// SessionDuration is used when the appointment does not carry its own duration.
	SessionDuration  time.Duration
	TickInterval     time.Duration
	AutoStart        bool
	OperationTimeout time.Duration
}

// CoordinatorHooks are invoked outside the coordinator lock, possibly from
// timer or store goroutines. Any hook may be nil.
type CoordinatorHooks struct {
	OnCountdownTick func(remaining time.Duration)
	// OnSessionEnded fires at most once. reason is empty when only the
	// document removal was observed.
	OnSessionEnded      func(reason models.EndReason)
	OnOperationError    func(operation string, err error)
	OnSubscriptionError func(resource string, err error)
}

type CoordinatorInput struct {
	AppointmentID string
	Participant   models.Participant
	Service       contracts.SessionService
	Store         contracts.AppointmentStore
	Config        CoordinatorConfig
	Hooks         CoordinatorHooks
	Log           *zap.Logger
}

type OpenInput struct {
	OnAppointment func(snapshot models.AppointmentSnapshot)
	OnMessages    func(messages []models.Message)
}

// Coordinator owns one participant's view of an appointment session. Two
// participants never talk to each other directly; each runs its own
// Coordinator and they meet in the document store.
type Coordinator struct {
	appointmentID string
	participant   models.Participant
	service       contracts.SessionService
	store         contracts.AppointmentStore
	cfg           CoordinatorConfig
	hooks         CoordinatorHooks
	log           *zap.Logger
	now           func() time.Time

	mu              sync.Mutex
	lastStatus      models.SessionStatus
	lastAppointment *models.Appointment
	seenDocument    bool
	startRequested  bool
	endRequested    bool
	sessionEnded    bool
	closed          bool
	countdown       *Countdown
	onAppointment   func(models.AppointmentSnapshot)
	onMessages      func([]models.Message)
	unsubAppt       contracts.Unsubscribe
	unsubMessages   contracts.Unsubscribe
}

func NewCoordinator(input CoordinatorInput) *Coordinator {
	cfg := input.Config
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	logger := input.Log
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Coordinator{
		appointmentID: input.AppointmentID,
		participant:   input.Participant,
		service:       input.Service,
		store:         input.Store,
		cfg:           cfg,
		hooks:         input.Hooks,
		log: logger.With(
			zap.String(constvars.LoggingAppointmentIDKey, input.AppointmentID),
			zap.String(constvars.LoggingUserIDKey, input.Participant.UserID),
			zap.String(constvars.LoggingRoleKey, input.Participant.Role),
		),
		now: time.Now,
	}
}

// Open subscribes to the appointment and its messages. If the second
// subscription fails the first one is released. ctx only bounds the
// subscribe calls; the subscriptions stay live until Cleanup or Close.
func (c *Coordinator) Open(ctx context.Context, input OpenInput) error {
	if err := c.SubscribeToAppointment(ctx, input.OnAppointment); err != nil {
		return err
	}
	if err := c.SubscribeToMessages(ctx, input.OnMessages); err != nil {
		c.Cleanup()
		return err
	}
	c.log.Info("Coordinator.Open succeeded")
	return nil
}

func (c *Coordinator) SubscribeToAppointment(ctx context.Context, onUpdate func(models.AppointmentSnapshot)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return exceptions.ErrCoordinatorClosed(nil)
	}
	if c.unsubAppt != nil {
		c.mu.Unlock()
		return exceptions.ErrAlreadySubscribed(nil, constvars.ResourceAppointments)
	}
	c.onAppointment = onUpdate
	c.mu.Unlock()

	unsubscribe, err := c.store.WatchAppointment(context.WithoutCancel(ctx), c.appointmentID, c.handleSnapshot, func(err error) {
		c.handleSubscriptionError(constvars.ResourceAppointments, err)
	})
	if err != nil {
		c.log.Error("Coordinator.SubscribeToAppointment error calling Store.WatchAppointment", zap.Error(err))
		return exceptions.ErrSessionSubscription(err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return exceptions.ErrCoordinatorClosed(nil)
	}
	c.unsubAppt = unsubscribe
	c.mu.Unlock()
	return nil
}

func (c *Coordinator) SubscribeToMessages(ctx context.Context, onUpdate func([]models.Message)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return exceptions.ErrCoordinatorClosed(nil)
	}
	if c.unsubMessages != nil {
		c.mu.Unlock()
		return exceptions.ErrAlreadySubscribed(nil, constvars.ResourceMessages)
	}
	c.onMessages = onUpdate
	c.mu.Unlock()

	unsubscribe, err := c.store.WatchMessages(context.WithoutCancel(ctx), c.appointmentID, c.handleMessages, func(err error) {
		c.handleSubscriptionError(constvars.ResourceMessages, err)
	})
	if err != nil {
		c.log.Error("Coordinator.SubscribeToMessages error calling Store.WatchMessages", zap.Error(err))
		return exceptions.ErrSessionSubscription(err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsubscribe()
		return exceptions.ErrCoordinatorClosed(nil)
	}
	c.unsubMessages = unsubscribe
	c.mu.Unlock()
	return nil
}

// StartSession moves the session to active. It writes at most once per
// coordinator and only while the last observed status is waiting.
func (c *Coordinator) StartSession(ctx context.Context, doctorID string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return exceptions.ErrCoordinatorClosed(nil)
	}
	if c.startRequested || (c.seenDocument && c.lastStatus != models.SessionStatusWaiting) {
		c.mu.Unlock()
		return nil
	}
	c.startRequested = true
	c.mu.Unlock()

	err := c.service.StartSession(ctx, c.appointmentID, doctorID)
	if err != nil {
		c.mu.Lock()
		c.startRequested = false
		c.mu.Unlock()
		c.log.Warn("Coordinator.StartSession failed", zap.Error(err))
		return err
	}
	return nil
}

// EndSession ends the session once. The countdown is released before the
// write; if a manual end fails the countdown is re-armed and the call may be retried.
func (c *Coordinator) EndSession(ctx context.Context, userID string, reason models.EndReason) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return exceptions.ErrCoordinatorClosed(nil)
	}
	if c.endRequested || c.sessionEnded {
		c.mu.Unlock()
		return nil
	}
	c.endRequested = true
	countdown := c.countdown
	c.countdown = nil
	c.mu.Unlock()

	if countdown != nil {
		countdown.Stop()
	}

	err := c.service.EndSession(ctx, c.appointmentID, userID, reason)
	if err != nil {
		c.log.Warn("Coordinator.EndSession failed",
			zap.String(constvars.LoggingEndReasonKey, string(reason)),
			zap.Error(err),
		)
		c.mu.Lock()
		c.endRequested = false
		var rearmed *Countdown
		// An expired deadline is not re-armed; the sweeper ends the session instead.
		if reason != models.EndReasonTimeUp {
			rearmed = c.armCountdownLocked()
		}
		c.mu.Unlock()
		if rearmed != nil {
			rearmed.Start()
		}
		return err
	}

	c.mu.Lock()
	ended := c.markEndedLocked()
	c.mu.Unlock()
	if ended {
		c.log.Info("Coordinator.EndSession succeeded", zap.String(constvars.LoggingEndReasonKey, string(reason)))
		c.fireSessionEnded(reason)
	}
	return nil
}

func (c *Coordinator) SendMessage(ctx context.Context, senderID, senderName, senderRole, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return exceptions.ErrEmptyMessage(nil)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return exceptions.ErrCoordinatorClosed(nil)
	}
	if c.sessionEnded || c.lastStatus != models.SessionStatusActive {
		c.mu.Unlock()
		return exceptions.ErrSessionNotActive(nil)
	}
	c.mu.Unlock()

	_, err := c.service.SendMessage(ctx, &contracts.SendMessageInput{
		AppointmentID: c.appointmentID,
		Sender:        models.Participant{UserID: senderID, Name: senderName, Role: senderRole},
		Text:          text,
		CreatedAt:     c.now().UTC(),
	})
	return err
}

// Status is the last status this coordinator observed.
func (c *Coordinator) Status() models.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatus
}

func (c *Coordinator) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionEnded
}

// Cleanup releases both subscriptions and the countdown. Safe to call repeatedly.
func (c *Coordinator) Cleanup() {
	c.mu.Lock()
	unsubAppt, unsubMessages, countdown := c.unsubAppt, c.unsubMessages, c.countdown
	c.unsubAppt, c.unsubMessages, c.countdown = nil, nil, nil
	c.mu.Unlock()

	if countdown != nil {
		countdown.Stop()
	}
	if unsubAppt != nil {
		unsubAppt()
	}
	if unsubMessages != nil {
		unsubMessages()
	}
}

// Close releases every resource and rejects further operations.
func (c *Coordinator) Close() {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	c.mu.Unlock()

	c.Cleanup()
	if !alreadyClosed {
		c.log.Info("Coordinator.Close called")
	}
}

func (c *Coordinator) handleSnapshot(snapshot models.AppointmentSnapshot) {
	var (
		countdown *Countdown
		autoStart bool
		ended     bool
		reason    models.EndReason
	)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if !snapshot.Exists || snapshot.Appointment == nil {
		// Not found before the first sighting is the initial subscribe race.
		if c.seenDocument {
			ended = c.markEndedLocked()
			countdown = c.countdown
			c.countdown = nil
		}
	} else {
		status := snapshot.Appointment.Session.Status
		if status.Rank() < c.lastStatus.Rank() {
			c.mu.Unlock()
			c.log.Debug("Coordinator dropped stale snapshot",
				zap.String(constvars.LoggingSessionStatusKey, string(status)),
			)
			return
		}

		previous := c.lastStatus
		c.seenDocument = true
		c.lastStatus = status
		c.lastAppointment = snapshot.Appointment.Clone()

		switch status {
		case models.SessionStatusWaiting:
			autoStart = previous != models.SessionStatusWaiting &&
				c.cfg.AutoStart &&
				c.participant.IsDoctor() &&
				!c.startRequested
		case models.SessionStatusActive:
			if previous != models.SessionStatusActive {
				countdown = c.armCountdownLocked()
			}
		case models.SessionStatusEnded:
			ended = c.markEndedLocked()
			reason = snapshot.Appointment.Session.EndReason
			countdown = c.countdown
			c.countdown = nil
		}
	}
	onAppointment := c.onAppointment
	c.mu.Unlock()

	if onAppointment != nil {
		onAppointment(snapshot)
	}

	switch {
	case ended:
		if countdown != nil {
			countdown.Stop()
		}
		c.log.Info("Coordinator observed session end", zap.String(constvars.LoggingEndReasonKey, string(reason)))
		c.fireSessionEnded(reason)
	case countdown != nil:
		countdown.Start()
	}

	if autoStart {
		go c.autoStart()
	}
}

func (c *Coordinator) handleMessages(messages []models.Message) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	onMessages := c.onMessages
	c.mu.Unlock()

	if onMessages != nil {
		onMessages(messages)
	}
}

func (c *Coordinator) handleSubscriptionError(resource string, err error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	c.log.Error("Coordinator subscription failed", zap.String(constvars.LoggingDataKey, resource), zap.Error(err))
	if c.hooks.OnSubscriptionError != nil {
		c.hooks.OnSubscriptionError(resource, exceptions.ErrSessionSubscription(err))
	}
}

func (c *Coordinator) autoStart() {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
	defer cancel()

	if err := c.StartSession(ctx, c.participant.UserID); err != nil {
		c.reportOperationError(constvars.OperationStartSession, err)
	}
}

func (c *Coordinator) handleExpire() {
	c.log.Info("Coordinator countdown expired")

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.OperationTimeout)
	defer cancel()

	if err := c.EndSession(ctx, c.participant.UserID, models.EndReasonTimeUp); err != nil {
		c.reportOperationError(constvars.OperationEndSession, err)
	}
}

func (c *Coordinator) reportOperationError(operation string, err error) {
	if c.hooks.OnOperationError != nil {
		c.hooks.OnOperationError(operation, err)
	}
}

func (c *Coordinator) fireSessionEnded(reason models.EndReason) {
	if c.hooks.OnSessionEnded != nil {
		c.hooks.OnSessionEnded(reason)
	}
}

// armCountdownLocked builds a countdown for the remaining session time when
// the session is active and nothing else owns the timer. The caller starts
// it after releasing the lock.
func (c *Coordinator) armCountdownLocked() *Countdown {
	if c.closed || c.sessionEnded || c.endRequested || c.countdown != nil {
		return nil
	}
	if c.lastStatus != models.SessionStatusActive || c.lastAppointment == nil {
		return nil
	}

	session := c.lastAppointment.Session
	duration := session.Duration(c.cfg.SessionDuration)
	remaining := duration
	if session.StartTime != nil {
		remaining = duration - c.now().Sub(*session.StartTime)
	}
	if remaining > duration {
		remaining = duration
	}
	if remaining < 0 {
		remaining = 0
	}

	c.countdown = NewCountdown(remaining, c.cfg.TickInterval, c.hooks.OnCountdownTick, c.handleExpire)
	return c.countdown
}

func (c *Coordinator) markEndedLocked() bool {
	if c.sessionEnded {
		return false
	}
	c.sessionEnded = true
	c.lastStatus = models.SessionStatusEnded
	return true
}
