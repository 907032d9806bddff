package config

import (
	"context"
	"log"

	"github.com/go-chi/chi/v5"
	"github.com/minio/minio-go/v7"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Bootstrap struct {
	Router         *chi.Mux
	Redis          *redis.Client
	Logger         *zap.Logger
	RabbitMQ       *amqp091.Connection
	Minio          *minio.Client
	InternalConfig *InternalConfig
	DriverConfig   *DriverConfig
	// StoreClose releases the appointment store connection.
	StoreClose func(ctx context.Context) error
	// ArchiveWorkerStop if set will be called during Shutdown to gracefully stop the transcript archiver
	ArchiveWorkerStop func()
	SweeperStop       func()
	// SessionQueueClose releases the session event channel before the connection is closed.
	SessionQueueClose func() error
}

func (b *Bootstrap) Shutdown(ctx context.Context) error {
	if b.ArchiveWorkerStop != nil {
		b.ArchiveWorkerStop()
		log.Println("Successfully stopped archive worker")
	}

	if b.SweeperStop != nil {
		b.SweeperStop()
		log.Println("Successfully stopped session sweeper")
	}

	if b.StoreClose != nil {
		err := b.StoreClose(ctx)
		if err != nil {
			return err
		}
		log.Println("Successfully closing appointment store")
	}

	if b.SessionQueueClose != nil {
		err := b.SessionQueueClose()
		if err != nil {
			return err
		}
		log.Println("Successfully closing session event queue")
	}

	err := b.Redis.Close()
	if err != nil {
		return err
	}
	log.Println("Successfully closing Redis")

	err = b.RabbitMQ.Close()
	if err != nil {
		return err
	}
	log.Println("Successfully closing RabbitMQ")

	err = b.Logger.Sync()
	if err != nil {
		return err
	}
	log.Println("Successfully closing Logger")

	return nil
}
