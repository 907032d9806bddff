package contracts

import (
	"context"
	"time"

	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/dto/requests"
)

type SendMessageInput struct {
	AppointmentID string
	Sender        models.Participant
	Text          string
	CreatedAt     time.Time
}

type SessionService interface {
	CreateAppointment(ctx context.Context, approver models.Participant, request *requests.CreateAppointment) (*models.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID, userID string) (*models.Appointment, error)
	StartSession(ctx context.Context, appointmentID, doctorID string) error
	EndSession(ctx context.Context, appointmentID, userID string, reason models.EndReason) error
	SendMessage(ctx context.Context, input *SendMessageInput) (*models.Message, error)
	ListMessages(ctx context.Context, appointmentID, userID string) ([]models.Message, error)
}

type SessionEventPublisher interface {
	Publish(ctx context.Context, event *models.SessionEvent) error
}
