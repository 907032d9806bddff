package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telesession-service/internal/app/config"
	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/delivery/http/controllers"
	"telesession-service/internal/app/delivery/http/middlewares"
	"telesession-service/internal/app/delivery/http/routers"
	"telesession-service/internal/app/drivers/database"
	"telesession-service/internal/app/drivers/logger"
	"telesession-service/internal/app/drivers/messaging"
	"telesession-service/internal/app/drivers/storage"
	"telesession-service/internal/app/services/core/archive"
	"telesession-service/internal/app/services/core/sessions"
	"telesession-service/internal/app/services/core/sweeper"
	"telesession-service/internal/app/services/shared/documentstore"
	"telesession-service/internal/app/services/shared/locker"
	"telesession-service/internal/app/services/shared/ratelimiter"
	"telesession-service/internal/app/services/shared/redis"
	"telesession-service/internal/app/services/shared/sessionqueue"
	transcriptStorage "telesession-service/internal/app/services/shared/storage"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	driverConfig := config.NewDriverConfig()
	internalConfig := config.NewInternalConfig()

	log := logger.NewZapLogger(driverConfig, internalConfig)

	location, err := time.LoadLocation(internalConfig.App.Timezone)
	if err != nil {
		log.Fatal("Error loading location", zap.Error(err))
	}
	time.Local = location

	redisClient := database.NewRedisClient(driverConfig)
	rabbitMQ := messaging.NewRabbitMQ(driverConfig)
	minioClient := storage.NewMinio(driverConfig)
	chiRouter := chi.NewRouter()

	bootstrap := &config.Bootstrap{
		Router:         chiRouter,
		Redis:          redisClient,
		Logger:         log,
		RabbitMQ:       rabbitMQ,
		Minio:          minioClient,
		DriverConfig:   driverConfig,
		InternalConfig: internalConfig,
	}
	err = bootstrapingTheApp(bootstrap)
	if err != nil {
		log.Fatal("Failed to bootstrap the app", zap.Error(err))
	}

	server := &http.Server{
		Addr:    internalConfig.App.Port,
		Handler: chiRouter,
	}

	go func() {
		log.Info("Server started", zap.String("port", internalConfig.App.Port))
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	<-c

	log.Info("Waiting for pending requests that already received by server to be processed..")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		time.Second*time.Duration(internalConfig.App.ShutdownTimeoutInSeconds),
	)
	defer cancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	err = bootstrap.Shutdown(shutdownCtx)
	if err != nil {
		log.Error("Failed to release resources", zap.Error(err))
	}

	log.Info("Server exiting")
}

func bootstrapingTheApp(bootstrap *config.Bootstrap) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Appointment store
	store, err := newAppointmentStore(ctx, bootstrap)
	if err != nil {
		return err
	}
	bootstrap.StoreClose = store.Close

	// Redis
	redisRepository := redis.NewRedisRepository(bootstrap.Redis)
	lockerService := locker.NewLockService(redisRepository, bootstrap.Logger)
	resourceLimiter := ratelimiter.NewResourceLimiter(redisRepository, bootstrap.Logger)

	// Session events
	sessionQueue, err := sessionqueue.NewService(bootstrap.RabbitMQ, bootstrap.InternalConfig, bootstrap.Logger)
	if err != nil {
		return err
	}
	bootstrap.SessionQueueClose = sessionQueue.Close

	// Transcripts
	transcripts := transcriptStorage.NewTranscriptStorage(bootstrap.Minio, bootstrap.InternalConfig.Minio.TranscriptBucketName, bootstrap.Logger)
	err = transcripts.EnsureBucket(ctx)
	if err != nil {
		return err
	}

	// Sessions
	sessionService := sessions.NewSessionService(store, sessionQueue, resourceLimiter, bootstrap.InternalConfig, bootstrap.Logger)
	sessionController := controllers.NewSessionController(bootstrap.Logger, sessionService, bootstrap.InternalConfig)
	sessionStreamController := controllers.NewSessionStreamController(bootstrap.Logger, sessionService, store, bootstrap.InternalConfig)

	// Workers
	if bootstrap.InternalConfig.Archive.Enabled {
		archiveWorker := archive.NewWorker(bootstrap.Logger, bootstrap.InternalConfig, lockerService, sessionQueue, store, transcripts)
		bootstrap.ArchiveWorkerStop = archiveWorker.Start(context.Background())
	}
	if bootstrap.InternalConfig.Sweeper.Enabled {
		sweeperWorker := sweeper.NewWorker(bootstrap.Logger, bootstrap.InternalConfig, lockerService, store, sessionService)
		sweeperWorker.Start(context.Background())
		bootstrap.SweeperStop = sweeperWorker.Stop
	}

	// Middlewares
	middlewares := middlewares.NewMiddlewares(bootstrap.Logger, bootstrap.InternalConfig)

	routers.SetupRoutes(bootstrap.Router, bootstrap.InternalConfig, middlewares, sessionController, sessionStreamController)
	return nil
}

func newAppointmentStore(ctx context.Context, bootstrap *config.Bootstrap) (contracts.AppointmentStore, error) {
	driver := bootstrap.InternalConfig.Store.Driver
	bootstrap.Logger.Info("Selecting appointment store", zap.String(constvars.LoggingStoreDriverKey, driver))

	switch driver {
	case constvars.StoreDriverMongo:
		mongoStore := documentstore.NewMongoStore(
			database.NewMongoDB(bootstrap.DriverConfig),
			bootstrap.DriverConfig.MongoDB.DbName,
			bootstrap.Logger,
		)
		err := mongoStore.EnsureIndexes(ctx)
		if err != nil {
			return nil, err
		}
		return mongoStore, nil
	case constvars.StoreDriverFirestore:
		return documentstore.NewFirestoreStore(database.NewFirestore(bootstrap.DriverConfig), bootstrap.Logger), nil
	case constvars.StoreDriverMemory:
		return documentstore.NewMemoryStore(bootstrap.Logger), nil
	default:
		return nil, exceptions.ErrInvalidStoreDriver(nil, driver)
	}
}
