package sweeper

import (
	"context"
	"sync"
	"time"

	"telesession-service/internal/app/config"
	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Worker ends sessions that stayed active past their duration plus a grace
// period, which happens when every participant disconnected before the
// countdown fired.
type Worker struct {
	log      *zap.Logger
	cfg      *config.InternalConfig
	locker   contracts.LockerService
	store    contracts.AppointmentStore
	sessions contracts.SessionService
	now      func() time.Time
	cron     *cron.Cron
	runCtx   context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func NewWorker(log *zap.Logger, cfg *config.InternalConfig, lockerSvc contracts.LockerService, store contracts.AppointmentStore, sessions contracts.SessionService) *Worker {
	return &Worker{log: log, cfg: cfg, locker: lockerSvc, store: store, sessions: sessions, now: time.Now}
}

func (w *Worker) Start(ctx context.Context) {
	w.runCtx, w.cancel = context.WithCancel(ctx)
	c := cron.New()
	spec := w.cfg.Sweeper.CronSpec
	_, err := c.AddFunc(spec, func() { w.runOnce(w.runCtx) })
	if err != nil {
		w.log.Warn("sweeper.worker: failed to schedule with provided cron spec; falling back to @every 1m",
			zap.String("cron_spec", spec),
			zap.Error(err),
		)
		c = cron.New()
		_, _ = c.AddFunc("@every 1m", func() { w.runOnce(w.runCtx) })
	}
	c.Start()
	w.cron = c
}

// Stop halts the schedule and waits for a running sweep to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		if w.cron != nil {
			<-w.cron.Stop().Done()
		}
	})
}

func (w *Worker) runOnce(ctx context.Context) {
	ttl := time.Duration(w.cfg.Sweeper.LockTTLInSeconds) * time.Second
	if ttl < time.Second {
		ttl = time.Second
	}
	acquired, token, err := w.locker.TryLock(ctx, constvars.LockKeySessionSweep, ttl)
	if err != nil {
		w.log.Warn("sweeper.worker: leader lock attempt failed", zap.Error(err))
		return
	}
	if !acquired {
		w.log.Debug("sweeper.worker: leader lock not acquired; another instance is running")
		return
	}
	defer func() {
		if err := w.locker.Unlock(ctx, constvars.LockKeySessionSweep, token); err != nil {
			w.log.Warn("sweeper.worker: unlock failed", zap.Error(err))
		}
	}()

	duration := w.cfg.Session.Duration()
	grace := time.Duration(w.cfg.Sweeper.GracePeriodInSeconds) * time.Second
	now := w.now()

	// The cutoff uses the shortest possible session; each candidate is then
	// checked against its own duration.
	candidates, err := w.store.FindActiveSessionsStartedBefore(ctx, now.Add(-grace-minDuration(duration)))
	if err != nil {
		w.log.Warn("sweeper.worker: find active sessions failed", zap.Error(err))
		return
	}

	ended := 0
	for i := range candidates {
		appointment := &candidates[i]
		if !expired(appointment, duration, grace, now) {
			continue
		}
		err := w.sessions.EndSession(ctx, appointment.ID, constvars.SystemActorID, models.EndReasonTimeUp)
		if err != nil {
			w.log.Warn("sweeper.worker: end stale session failed",
				zap.String(constvars.LoggingAppointmentIDKey, appointment.ID),
				zap.Error(err),
			)
			continue
		}
		ended++
	}

	if ended > 0 {
		w.log.Info("sweeper.worker: ended stale sessions", zap.Int(constvars.LoggingCountKey, ended))
	}
}

func expired(appointment *models.Appointment, fallback, grace time.Duration, now time.Time) bool {
	if appointment.Session.StartTime == nil {
		return false
	}
	deadline := appointment.Session.StartTime.Add(appointment.Session.Duration(fallback) + grace)
	return !now.Before(deadline)
}

// minDuration is the lower bound accepted for appointment durations.
func minDuration(fallback time.Duration) time.Duration {
	if fallback < time.Minute {
		return fallback
	}
	return time.Minute
}
