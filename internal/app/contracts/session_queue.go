package contracts

import (
	"context"

	"telesession-service/internal/app/models"
)

type QueuedSessionEvent struct {
	DeliveryTag uint64
	Event       *models.SessionEvent
}

type FetchSessionEventsInput struct {
	Max int
}

type FetchSessionEventsOutput struct {
	Items []QueuedSessionEvent
}

type SessionEventQueue interface {
	SessionEventPublisher
	FetchN(ctx context.Context, input *FetchSessionEventsInput) (*FetchSessionEventsOutput, error)
	Ack(ctx context.Context, deliveryTag uint64) error
	Reenqueue(ctx context.Context, event *models.SessionEvent) error
	EnqueueToDeadQueue(ctx context.Context, event *models.SessionEvent) error
}
