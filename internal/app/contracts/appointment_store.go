package contracts

import (
	"context"
	"time"

	"telesession-service/internal/app/models"
)

// Unsubscribe cancels a live subscription. It is safe to call more than once.
type Unsubscribe func()

type ActivateSessionInput struct {
	AppointmentID   string
	StartedBy       string
	DurationSeconds int64
}

type EndSessionInput struct {
	AppointmentID string
	EndedBy       string
	Reason        models.EndReason
}

// AppointmentStore is the shared document store holding appointments and
// their chat messages. Conditional transitions return models.ErrTransitionRejected
// when the stored status moved on, and models.ErrAppointmentNotFound when the
// document is gone.
type AppointmentStore interface {
	CreateAppointment(ctx context.Context, appointment *models.Appointment) error
	FindAppointmentByID(ctx context.Context, appointmentID string) (*models.Appointment, error)
	// ActivateSession moves a waiting session to active and stamps the start time with the store clock.
	ActivateSession(ctx context.Context, input *ActivateSessionInput) error
	// EndSession marks an active session ended and deletes the document in one atomic write.
	EndSession(ctx context.Context, input *EndSessionInput) (*models.Appointment, error)
	FindActiveSessionsStartedBefore(ctx context.Context, before time.Time) ([]models.Appointment, error)

	AppendMessage(ctx context.Context, message *models.Message) (*models.Message, error)
	FindMessages(ctx context.Context, appointmentID string) ([]models.Message, error)
	DeleteMessages(ctx context.Context, appointmentID string) (int64, error)

	// WatchAppointment delivers the current snapshot followed by every change.
	// Callbacks for one subscription are never invoked concurrently. The
	// subscription ends when ctx is done or Unsubscribe is called.
	WatchAppointment(ctx context.Context, appointmentID string, onUpdate func(models.AppointmentSnapshot), onError func(error)) (Unsubscribe, error)
	// WatchMessages delivers the full ordered message list on open and on every change.
	WatchMessages(ctx context.Context, appointmentID string, onUpdate func([]models.Message), onError func(error)) (Unsubscribe, error)

	Close(ctx context.Context) error
}
