package config

import (
	"telesession-service/internal/pkg/utils"

	"github.com/joho/godotenv"
)

func init() {
	godotenv.Load()
}

func NewDriverConfig() *DriverConfig {
	return &DriverConfig{
		MongoDB: MongoDB{
			Port:       utils.GetEnvString("MONGODB_PORT", "27017"),
			Host:       utils.GetEnvString("MONGODB_HOST", "localhost"),
			DbName:     utils.GetEnvString("MONGODB_DB_NAME", "telesession"),
			Username:   utils.GetEnvString("MONGODB_USERNAME", "defaultUsername"),
			Password:   utils.GetEnvString("MONGODB_PASSWORD", "defaultPassword"),
			ReplicaSet: utils.GetEnvString("MONGODB_REPLICA_SET", "rs0"),
		},
		Firestore: Firestore{
			ProjectID:       utils.GetEnvString("FIRESTORE_PROJECT_ID", ""),
			CredentialsFile: utils.GetEnvString("FIRESTORE_CREDENTIALS_FILE", ""),
		},
		Redis: Redis{
			Host:     utils.GetEnvString("REDIS_HOST", "localhost"),
			Port:     utils.GetEnvString("REDIS_PORT", "6379"),
			Password: utils.GetEnvString("REDIS_PASSWORD", ""),
		},
		Logger: Logger{
			Level:               utils.GetEnvString("LOGGER_LEVEL", "debug"),
			OutputFileName:      utils.GetEnvString("LOGGER_OUTPUT_FILENAME", "logger.log"),
			OutputErrorFileName: utils.GetEnvString("LOGGER_OUTPUT_ERROR_FILENAME", "logger_error.log"),
		},
		RabbitMQ: RabbitMQ{
			Port:     utils.GetEnvString("RABBITMQ_PORT", "5672"),
			Host:     utils.GetEnvString("RABBITMQ_HOST", "localhost"),
			Username: utils.GetEnvString("RABBITMQ_USERNAME", "guest"),
			Password: utils.GetEnvString("RABBITMQ_PASSWORD", "guest"),
		},
		Minio: Minio{
			Port:     utils.GetEnvString("MINIO_PORT", "9000"),
			Host:     utils.GetEnvString("MINIO_HOST", "localhost"),
			Username: utils.GetEnvString("MINIO_USERNAME", "defaultUsername"),
			Password: utils.GetEnvString("MINIO_PASSWORD", "defaultPassword"),
			UseSSL:   utils.GetEnvBool("MINIO_USE_SSL", false),
		},
	}
}

func NewInternalConfig() *InternalConfig {
	return &InternalConfig{
		App: App{
			Env:                        utils.GetEnvString("APP_ENV", "development"),
			Port:                       utils.GetEnvString("APP_PORT", ":8080"),
			Version:                    utils.GetEnvString("APP_VERSION", "v1.0"),
			Timezone:                   utils.GetEnvString("APP_TIMEZONE", "UTC"),
			EndpointPrefix:             utils.GetEnvString("APP_ENDPOINT_PREFIX", "api"),
			FrontendDomain:             utils.GetEnvString("APP_FRONTEND_DOMAIN", "http://localhost:3000"),
			MaxRequests:                utils.GetEnvInt("APP_MAX_REQUEST", 100),
			MaxTimeRequestsPerSeconds:  utils.GetEnvInt("APP_MAX_TIME_REQUESTS_PER_SECONDS", 60),
			ShutdownTimeoutInSeconds:   utils.GetEnvInt("APP_SHUTDOWN_TIMEOUT_IN_SECONDS", 10),
			RequestTimeoutInSeconds:    utils.GetEnvInt("APP_REQUEST_TIMEOUT_IN_SECONDS", 10),
			RequestBodyLimitInMegabyte: utils.GetEnvInt("APP_REQUEST_BODY_LIMIT_IN_MEGABYTE", 1),
		},
		JWT: AppJWT{
			Secret: utils.GetEnvString("JWT_SECRET", "anyjwt"),
		},
		Store: AppStore{
			Driver: utils.GetEnvString("APP_STORE_DRIVER", "mongo"),
		},
		Session: AppSession{
			DurationInSeconds:          utils.GetEnvInt("APP_SESSION_DURATION_IN_SECONDS", 900),
			TickIntervalInMilliseconds: utils.GetEnvInt("APP_SESSION_TICK_INTERVAL_IN_MILLISECONDS", 1000),
			MessageMaxLength:           utils.GetEnvInt("APP_SESSION_MESSAGE_MAX_LENGTH", 2000),
			MessageRateLimitPerMinute:  utils.GetEnvInt("APP_SESSION_MESSAGE_RATE_LIMIT_PER_MINUTE", 30),
			OperationTimeoutInSeconds:  utils.GetEnvInt("APP_SESSION_OPERATION_TIMEOUT_IN_SECONDS", 10),
			DoctorAutoStart:            utils.GetEnvBool("APP_SESSION_DOCTOR_AUTO_START", true),
		},
		Stream: AppStream{
			InboundFramesPerSecond:    utils.GetEnvInt("APP_STREAM_INBOUND_FRAMES_PER_SECOND", 5),
			InboundBurst:              utils.GetEnvInt("APP_STREAM_INBOUND_BURST", 10),
			PingIntervalInSeconds:     utils.GetEnvInt("APP_STREAM_PING_INTERVAL_IN_SECONDS", 30),
			WriteTimeoutInSeconds:     utils.GetEnvInt("APP_STREAM_WRITE_TIMEOUT_IN_SECONDS", 10),
			ReadLimitInBytes:          utils.GetEnvInt("APP_STREAM_READ_LIMIT_IN_BYTES", 16384),
			SendBufferSize:            utils.GetEnvInt("APP_STREAM_SEND_BUFFER_SIZE", 64),
			ConnectsPerMinute:         utils.GetEnvInt("APP_STREAM_CONNECTS_PER_MINUTE", 10),
			ConnectBlockTimeInSeconds: utils.GetEnvInt("APP_STREAM_CONNECT_BLOCK_TIME_IN_SECONDS", 30),
		},
		RabbitMQ: AppRabbitMQ{
			SessionEventsQueue:           utils.GetEnvString("APP_RABBITMQ_SESSION_EVENTS_QUEUE", "telesession.session.events"),
			SessionEventsDeadLetterQueue: utils.GetEnvString("APP_RABBITMQ_SESSION_EVENTS_DLQ", "telesession.session.events.dlq"),
		},
		Minio: AppMinio{
			TranscriptBucketName: utils.GetEnvString("APP_MINIO_TRANSCRIPT_BUCKET_NAME", "session-transcripts"),
		},
		Archive: AppArchive{
			Enabled:                 utils.GetEnvBool("APP_ARCHIVE_ENABLED", true),
			WorkerIntervalInSeconds: utils.GetEnvInt("APP_ARCHIVE_WORKER_INTERVAL_IN_SECONDS", 10),
			MaxQueue:                utils.GetEnvInt("APP_ARCHIVE_MAX_QUEUE", 20),
			MaxRetries:              utils.GetEnvInt("APP_ARCHIVE_MAX_RETRIES", 5),
			LockTTLInSeconds:        utils.GetEnvInt("APP_ARCHIVE_LOCK_TTL_IN_SECONDS", 60),
		},
		Sweeper: AppSweeper{
			Enabled:              utils.GetEnvBool("APP_SWEEPER_ENABLED", true),
			CronSpec:             utils.GetEnvString("APP_SWEEPER_CRON_SPEC", "@every 1m"),
			GracePeriodInSeconds: utils.GetEnvInt("APP_SWEEPER_GRACE_PERIOD_IN_SECONDS", 60),
			LockTTLInSeconds:     utils.GetEnvInt("APP_SWEEPER_LOCK_TTL_IN_SECONDS", 50),
		},
	}
}
