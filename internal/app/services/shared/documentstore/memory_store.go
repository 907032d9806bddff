package documentstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"

	"go.uber.org/zap"
)

type appointmentWatcher struct {
	sub      *subscriber
	onUpdate func(models.AppointmentSnapshot)
}

type messageWatcher struct {
	sub      *subscriber
	onUpdate func([]models.Message)
}

// MemoryStore is a process-local AppointmentStore used for development and
// tests. Its clock plays the role of the server timestamp.
type MemoryStore struct {
	log *zap.Logger

	mu                  sync.Mutex
	now                 func() time.Time
	appointments        map[string]*models.Appointment
	messages            map[string][]models.Message
	appointmentWatchers map[string]map[uint64]*appointmentWatcher
	messageWatchers     map[string]map[uint64]*messageWatcher
	nextWatcherID       uint64
	nextMessageID       uint64
}

func NewMemoryStore(log *zap.Logger) *MemoryStore {
	return &MemoryStore{
		log:                 log,
		now:                 time.Now,
		appointments:        make(map[string]*models.Appointment),
		messages:            make(map[string][]models.Message),
		appointmentWatchers: make(map[string]map[uint64]*appointmentWatcher),
		messageWatchers:     make(map[string]map[uint64]*messageWatcher),
	}
}

var _ contracts.AppointmentStore = (*MemoryStore)(nil)

// SetClock replaces the store clock.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) CreateAppointment(ctx context.Context, appointment *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.appointments[appointment.ID]; ok {
		return models.ErrAppointmentAlreadyExists
	}
	s.appointments[appointment.ID] = appointment.Clone()
	s.notifyAppointmentLocked(appointment.ID)
	return nil
}

func (s *MemoryStore) FindAppointmentByID(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appointments[appointmentID].Clone(), nil
}

func (s *MemoryStore) ActivateSession(ctx context.Context, input *contracts.ActivateSessionInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appointment, ok := s.appointments[input.AppointmentID]
	if !ok {
		return models.ErrAppointmentNotFound
	}
	if appointment.Session.Status != models.SessionStatusWaiting {
		return models.ErrTransitionRejected
	}

	startTime := s.now()
	appointment.Session.Status = models.SessionStatusActive
	appointment.Session.StartTime = &startTime
	appointment.Session.StartedBy = input.StartedBy
	appointment.Session.DurationSeconds = input.DurationSeconds

	s.notifyAppointmentLocked(input.AppointmentID)
	return nil
}

func (s *MemoryStore) EndSession(ctx context.Context, input *contracts.EndSessionInput) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appointment, ok := s.appointments[input.AppointmentID]
	if !ok {
		return nil, models.ErrAppointmentNotFound
	}
	if appointment.Session.Status != models.SessionStatusActive {
		return nil, models.ErrTransitionRejected
	}

	endTime := s.now()
	appointment.Session.Status = models.SessionStatusEnded
	appointment.Session.EndTime = &endTime
	appointment.Session.EndedBy = input.EndedBy
	appointment.Session.EndReason = input.Reason

	final := appointment.Clone()
	delete(s.appointments, input.AppointmentID)

	s.notifyAppointmentLocked(input.AppointmentID)
	return final, nil
}

func (s *MemoryStore) FindActiveSessionsStartedBefore(ctx context.Context, before time.Time) ([]models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Appointment
	for _, appointment := range s.appointments {
		if appointment.Session.Status != models.SessionStatusActive || appointment.Session.StartTime == nil {
			continue
		}
		if appointment.Session.StartTime.Before(before) {
			result = append(result, *appointment.Clone())
		}
	}
	return result, nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, message *models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMessageID++
	timestamp := s.now()

	stored := *message
	stored.ID = fmt.Sprintf("msg-%012d", s.nextMessageID)
	stored.Timestamp = &timestamp
	s.messages[message.AppointmentID] = append(s.messages[message.AppointmentID], stored)

	s.notifyMessagesLocked(message.AppointmentID)
	return &stored, nil
}

func (s *MemoryStore) FindMessages(ctx context.Context, appointmentID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sortedMessagesLocked(appointmentID), nil
}

func (s *MemoryStore) DeleteMessages(ctx context.Context, appointmentID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := int64(len(s.messages[appointmentID]))
	delete(s.messages, appointmentID)
	if count > 0 {
		s.notifyMessagesLocked(appointmentID)
	}
	return count, nil
}

func (s *MemoryStore) WatchAppointment(ctx context.Context, appointmentID string, onUpdate func(models.AppointmentSnapshot), onError func(error)) (contracts.Unsubscribe, error) {
	watcher := &appointmentWatcher{sub: newSubscriber(), onUpdate: onUpdate}

	s.mu.Lock()
	s.nextWatcherID++
	id := s.nextWatcherID
	if s.appointmentWatchers[appointmentID] == nil {
		s.appointmentWatchers[appointmentID] = make(map[uint64]*appointmentWatcher)
	}
	s.appointmentWatchers[appointmentID][id] = watcher
	snapshot := s.appointmentSnapshotLocked(appointmentID)
	watcher.sub.enqueue(func() { onUpdate(snapshot) })
	s.mu.Unlock()

	s.log.Debug("MemoryStore.WatchAppointment subscribed",
		zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
	)

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.appointmentWatchers[appointmentID], id)
		if len(s.appointmentWatchers[appointmentID]) == 0 {
			delete(s.appointmentWatchers, appointmentID)
		}
		s.mu.Unlock()
		watcher.sub.stop()
	}
	go stopOnDone(ctx, watcher.sub, unsubscribe)
	return unsubscribe, nil
}

func (s *MemoryStore) WatchMessages(ctx context.Context, appointmentID string, onUpdate func([]models.Message), onError func(error)) (contracts.Unsubscribe, error) {
	watcher := &messageWatcher{sub: newSubscriber(), onUpdate: onUpdate}

	s.mu.Lock()
	s.nextWatcherID++
	id := s.nextWatcherID
	if s.messageWatchers[appointmentID] == nil {
		s.messageWatchers[appointmentID] = make(map[uint64]*messageWatcher)
	}
	s.messageWatchers[appointmentID][id] = watcher
	messages := s.sortedMessagesLocked(appointmentID)
	watcher.sub.enqueue(func() { onUpdate(messages) })
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		delete(s.messageWatchers[appointmentID], id)
		if len(s.messageWatchers[appointmentID]) == 0 {
			delete(s.messageWatchers, appointmentID)
		}
		s.mu.Unlock()
		watcher.sub.stop()
	}
	go stopOnDone(ctx, watcher.sub, unsubscribe)
	return unsubscribe, nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, watchers := range s.appointmentWatchers {
		for _, watcher := range watchers {
			watcher.sub.stop()
		}
	}
	for _, watchers := range s.messageWatchers {
		for _, watcher := range watchers {
			watcher.sub.stop()
		}
	}
	s.appointmentWatchers = make(map[string]map[uint64]*appointmentWatcher)
	s.messageWatchers = make(map[string]map[uint64]*messageWatcher)
	return nil
}

func (s *MemoryStore) appointmentSnapshotLocked(appointmentID string) models.AppointmentSnapshot {
	appointment, ok := s.appointments[appointmentID]
	if !ok {
		return models.AppointmentSnapshot{ID: appointmentID}
	}
	return models.AppointmentSnapshot{ID: appointmentID, Exists: true, Appointment: appointment.Clone()}
}

func (s *MemoryStore) sortedMessagesLocked(appointmentID string) []models.Message {
	messages := models.CloneMessages(s.messages[appointmentID])
	models.SortMessages(messages)
	return messages
}

func (s *MemoryStore) notifyAppointmentLocked(appointmentID string) {
	for _, watcher := range s.appointmentWatchers[appointmentID] {
		snapshot := s.appointmentSnapshotLocked(appointmentID)
		onUpdate := watcher.onUpdate
		watcher.sub.enqueue(func() { onUpdate(snapshot) })
	}
}

func (s *MemoryStore) notifyMessagesLocked(appointmentID string) {
	for _, watcher := range s.messageWatchers[appointmentID] {
		messages := s.sortedMessagesLocked(appointmentID)
		onUpdate := watcher.onUpdate
		watcher.sub.enqueue(func() { onUpdate(messages) })
	}
}

func stopOnDone(ctx context.Context, sub *subscriber, unsubscribe func()) {
	select {
	case <-ctx.Done():
		unsubscribe()
	case <-sub.done:
	}
}
