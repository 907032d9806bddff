package sessionqueue

import (
	"context"
	"fmt"
	"sync"

	"telesession-service/internal/app/config"
	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// channel is the part of *amqp.Channel the queue needs after setup.
type channel interface {
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Ack(tag uint64, multiple bool) error
	Nack(tag uint64, multiple, requeue bool) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Service carries session lifecycle events on a durable RabbitMQ queue with a
// dead-letter companion. Publishing waits for a broker confirm.
type Service struct {
	ch        channel
	log       *zap.Logger
	queue     string
	deadQueue string
	confirms  chan amqp.Confirmation
	mu        sync.Mutex
}

func NewService(conn *amqp.Connection, cfg *config.InternalConfig, log *zap.Logger) (*Service, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, exceptions.ErrRabbitMQDeclareQueue(err)
	}

	svc := &Service{
		ch:        ch,
		log:       log,
		queue:     cfg.RabbitMQ.SessionEventsQueue,
		deadQueue: cfg.RabbitMQ.SessionEventsDeadLetterQueue,
	}

	for _, name := range []string{svc.queue, svc.deadQueue} {
		_, err = ch.QueueDeclare(
			name,  // name
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return nil, exceptions.ErrRabbitMQDeclareQueue(err)
		}
	}

	prefetch := cfg.Archive.MaxQueue
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, exceptions.ErrRabbitMQDeclareQueue(err)
	}

	if err := ch.Confirm(false); err != nil {
		return nil, exceptions.ErrRabbitMQDeclareQueue(err)
	}
	svc.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return svc, nil
}

var _ contracts.SessionEventQueue = (*Service)(nil)

func (s *Service) Publish(ctx context.Context, event *models.SessionEvent) error {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	s.log.Info("SessionQueue.Publish called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingEventTypeKey, event.Type),
		zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
	)
	return s.publish(ctx, s.queue, event)
}

// Reenqueue publishes the event, usually with a bumped FailedCount, to the tail of the queue.
func (s *Service) Reenqueue(ctx context.Context, event *models.SessionEvent) error {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	s.log.Info("SessionQueue.Reenqueue called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.Int(constvars.LoggingFailedCountKey, event.FailedCount),
	)
	return s.publish(ctx, s.queue, event)
}

func (s *Service) EnqueueToDeadQueue(ctx context.Context, event *models.SessionEvent) error {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	s.log.Warn("SessionQueue.EnqueueToDeadQueue called",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingAppointmentIDKey, event.AppointmentID),
		zap.Int(constvars.LoggingFailedCountKey, event.FailedCount),
	)
	return s.publish(ctx, s.deadQueue, event)
}

// FetchN retrieves up to Max events using basic.get without auto-ack.
// Undecodable payloads are moved to the dead-letter queue.
func (s *Service) FetchN(ctx context.Context, in *contracts.FetchSessionEventsInput) (*contracts.FetchSessionEventsOutput, error) {
	n := in.Max
	if n <= 0 {
		n = 1
	}
	items := make([]contracts.QueuedSessionEvent, 0, n)

	for i := 0; i < n; i++ {
		d, ok, err := s.ch.Get(s.queue, false)
		if err != nil {
			return nil, exceptions.ErrRabbitMQConsumeMessage(err)
		}
		if !ok {
			break
		}

		var event models.SessionEvent
		if err := json.Unmarshal(d.Body, &event); err != nil {
			if !s.deadLetterRaw(ctx, d, err) {
				// The undecodable message went back to the head of the queue.
				break
			}
			continue
		}
		items = append(items, contracts.QueuedSessionEvent{DeliveryTag: d.DeliveryTag, Event: &event})
	}

	return &contracts.FetchSessionEventsOutput{Items: items}, nil
}

// deadLetterRaw moves an undecodable delivery to the dead-letter queue. The
// delivery is acked only after the broker confirmed the dead-letter copy;
// otherwise it is requeued and false is returned.
func (s *Service) deadLetterRaw(ctx context.Context, d amqp.Delivery, decodeErr error) bool {
	s.log.Error("SessionQueue.FetchN poison message",
		zap.Uint64(constvars.LoggingDeliveryTagKey, d.DeliveryTag),
		zap.Error(decodeErr),
	)

	if err := s.publishRaw(ctx, s.deadQueue, d.Body); err != nil {
		s.log.Error("SessionQueue.FetchN error moving poison message to dead queue",
			zap.Uint64(constvars.LoggingDeliveryTagKey, d.DeliveryTag),
			zap.Error(err),
		)
		if nackErr := s.ch.Nack(d.DeliveryTag, false, true); nackErr != nil {
			s.log.Error("SessionQueue.FetchN error requeueing poison message",
				zap.Uint64(constvars.LoggingDeliveryTagKey, d.DeliveryTag),
				zap.Error(nackErr),
			)
		}
		return false
	}

	if err := s.ch.Ack(d.DeliveryTag, false); err != nil {
		s.log.Error("SessionQueue.FetchN error acking poison message",
			zap.Uint64(constvars.LoggingDeliveryTagKey, d.DeliveryTag),
			zap.Error(err),
		)
	}
	return true
}

func (s *Service) Ack(ctx context.Context, deliveryTag uint64) error {
	if err := s.ch.Ack(deliveryTag, false); err != nil {
		return exceptions.ErrRabbitMQAckMessage(err)
	}
	return nil
}

func (s *Service) Close() error {
	return s.ch.Close()
}

func (s *Service) publish(ctx context.Context, queue string, event *models.SessionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return exceptions.ErrCannotMarshalJSON(err)
	}
	return s.publishRaw(ctx, queue, body)
}

func (s *Service) publishRaw(ctx context.Context, queue string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  constvars.MIMEApplicationJSON,
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}
	if err := s.ch.PublishWithContext(ctx, "", queue, false, false, msg); err != nil {
		return exceptions.ErrRabbitMQPublishMessage(err)
	}

	select {
	case confirmed := <-s.confirms:
		if !confirmed.Ack {
			return exceptions.ErrRabbitMQNack(fmt.Errorf("queue %s", queue))
		}
	case <-ctx.Done():
		return exceptions.ErrRabbitMQPublishMessage(ctx.Err())
	}
	return nil
}
