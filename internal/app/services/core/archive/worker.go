package archive

import (
	"context"
	"sync"
	"time"

	"telesession-service/internal/app/config"
	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"

	"go.uber.org/zap"
)

// Worker drains session events and archives the chat transcript of every
// ended session, with at-least-once semantics.
type Worker struct {
	log      *zap.Logger
	cfg      *config.InternalConfig
	locker   contracts.LockerService
	queue    contracts.SessionEventQueue
	store    contracts.AppointmentStore
	storage  contracts.TranscriptStorage
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

func NewWorker(
	log *zap.Logger,
	cfg *config.InternalConfig,
	lockerSvc contracts.LockerService,
	queue contracts.SessionEventQueue,
	store contracts.AppointmentStore,
	storage contracts.TranscriptStorage,
) *Worker {
	return &Worker{
		log:     log,
		cfg:     cfg,
		locker:  lockerSvc,
		queue:   queue,
		store:   store,
		storage: storage,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
}

// Start begins the ticker loop. The returned function stops it and waits for
// the in-flight batch to finish.
func (w *Worker) Start(ctx context.Context) (stop func()) {
	interval := time.Duration(w.cfg.Archive.WorkerIntervalInSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	stopped := make(chan struct{})

	w.log.Info("archive.worker started", zap.Duration(constvars.LoggingDurationKey, interval))

	go func() {
		defer close(stopped)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stop:
				return
			case now := <-ticker.C:
				w.runOnce(ctx, now)
			}
		}
	}()

	return func() {
		w.stopOnce.Do(func() { close(w.stop) })
		<-stopped
	}
}

func (w *Worker) runOnce(ctx context.Context, now time.Time) {
	ttl := time.Duration(w.cfg.Archive.LockTTLInSeconds) * time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	acquired, lockVal, err := w.locker.TryLock(ctx, constvars.LockKeyArchiveWorker, ttl)
	if err != nil {
		w.log.Warn("archive.worker lock attempt failed", zap.Error(err))
		return
	}
	if !acquired {
		w.log.Debug("archive.worker lock not acquired; another instance is running")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, constvars.LockKeyArchiveWorker, lockVal); err != nil {
			w.log.Error("archive.worker unlock failed", zap.Error(err))
		}
	}()

	max := w.cfg.Archive.MaxQueue
	if max <= 0 {
		max = 1
	}
	out, err := w.queue.FetchN(ctx, &contracts.FetchSessionEventsInput{Max: max})
	if err != nil {
		w.log.Warn("archive.worker queue.FetchN error", zap.Error(err))
		return
	}
	if len(out.Items) == 0 {
		return
	}

	w.log.Info("archive.worker fetched session events",
		zap.Int(constvars.LoggingCountKey, len(out.Items)),
		zap.Time("tick", now),
	)
	for _, item := range out.Items {
		w.processItem(ctx, item)
	}
}

func (w *Worker) processItem(ctx context.Context, item contracts.QueuedSessionEvent) {
	event := item.Event

	switch event.Type {
	case constvars.SessionEventEnded:
		if err := w.archive(ctx, event); err != nil {
			w.requeueOnError(ctx, item, err)
			return
		}
	default:
		w.log.Debug("archive.worker nothing to do for event",
			zap.String(constvars.LoggingEventTypeKey, event.Type),
			zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
		)
	}

	if err := w.queue.Ack(ctx, item.DeliveryTag); err != nil {
		w.log.Error("archive.worker ack failed",
			zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
			zap.Uint64(constvars.LoggingDeliveryTagKey, item.DeliveryTag),
			zap.Error(err),
		)
	}
}

// archive writes the transcript then removes the archived messages. A
// redelivery after the delete finds no messages and leaves the stored
// transcript untouched.
func (w *Worker) archive(ctx context.Context, event *models.SessionEvent) error {
	messages, err := w.store.FindMessages(ctx, event.AppointmentID)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		w.log.Info("archive.worker no messages left to archive",
			zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
		)
		return nil
	}

	appointment := event.Appointment
	if appointment == nil {
		appointment = &models.Appointment{ID: event.AppointmentID}
	}
	objectKey, err := w.storage.SaveTranscript(ctx, &models.SessionTranscript{
		Appointment: appointment,
		Messages:    messages,
		ArchivedAt:  w.now().UTC(),
	})
	if err != nil {
		return err
	}

	deleted, err := w.store.DeleteMessages(ctx, event.AppointmentID)
	if err != nil {
		return err
	}

	w.log.Info("archive.worker transcript archived",
		zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
		zap.String(constvars.LoggingObjectKey, objectKey),
		zap.Int64(constvars.LoggingMessageCountKey, deleted),
	)
	return nil
}

func (w *Worker) requeueOnError(ctx context.Context, item contracts.QueuedSessionEvent, cause error) {
	event := item.Event
	event.FailedCount++

	if w.cfg.Archive.MaxRetries > 0 && event.FailedCount >= w.cfg.Archive.MaxRetries {
		if err := w.queue.EnqueueToDeadQueue(ctx, event); err != nil {
			w.log.Error("archive.worker enqueue to DLQ failed",
				zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
				zap.Error(err),
			)
			return
		}
		_ = w.queue.Ack(ctx, item.DeliveryTag)
		w.log.Warn("archive.worker moved event to DLQ",
			zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
			zap.Int(constvars.LoggingFailedCountKey, event.FailedCount),
			zap.Error(cause),
		)
		return
	}

	if err := w.queue.Reenqueue(ctx, event); err != nil {
		w.log.Error("archive.worker reenqueue failed",
			zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
			zap.Error(err),
		)
		return
	}
	_ = w.queue.Ack(ctx, item.DeliveryTag)
	w.log.Warn("archive.worker retryable failure; requeued event",
		zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
		zap.Int(constvars.LoggingFailedCountKey, event.FailedCount),
		zap.Error(cause),
	)
}
