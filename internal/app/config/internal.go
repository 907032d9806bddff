package config

import "time"

type InternalConfig struct {
	App      App         `mapstructure:"app"`
	JWT      AppJWT      `mapstructure:"jwt"`
	Store    AppStore    `mapstructure:"store"`
	Session  AppSession  `mapstructure:"session"`
	Stream   AppStream   `mapstructure:"stream"`
	RabbitMQ AppRabbitMQ `mapstructure:"rabbitmq"`
	Minio    AppMinio    `mapstructure:"minio"`
	Archive  AppArchive  `mapstructure:"archive"`
	Sweeper  AppSweeper  `mapstructure:"sweeper"`
}

type App struct {
	Env                        string `mapstructure:"env"`
	Port                       string `mapstructure:"port"`
	Version                    string `mapstructure:"version"`
	Timezone                   string `mapstructure:"timezone"`
	EndpointPrefix             string `mapstructure:"endpoint_prefix"`
	FrontendDomain             string `mapstructure:"frontend_domain"`
	MaxRequests                int    `mapstructure:"max_requests"`
	MaxTimeRequestsPerSeconds  int    `mapstructure:"max_time_requests_per_seconds"`
	ShutdownTimeoutInSeconds   int    `mapstructure:"shutdown_timeout_in_seconds"`
	RequestTimeoutInSeconds    int    `mapstructure:"request_timeout_in_seconds"`
	RequestBodyLimitInMegabyte int    `mapstructure:"request_body_limit_in_megabyte"`
}

type AppJWT struct {
	Secret string `mapstructure:"secret"`
}

type AppStore struct {
	// Driver selects the appointment store: mongo, firestore or memory.
	Driver string `mapstructure:"driver"`
}

type AppSession struct {
	DurationInSeconds          int  `mapstructure:"duration_in_seconds"`
	TickIntervalInMilliseconds int  `mapstructure:"tick_interval_in_milliseconds"`
	MessageMaxLength           int  `mapstructure:"message_max_length"`
	MessageRateLimitPerMinute  int  `mapstructure:"message_rate_limit_per_minute"`
	OperationTimeoutInSeconds  int  `mapstructure:"operation_timeout_in_seconds"`
	DoctorAutoStart            bool `mapstructure:"doctor_auto_start"`
}

func (s AppSession) Duration() time.Duration {
	return time.Duration(s.DurationInSeconds) * time.Second
}

func (s AppSession) TickInterval() time.Duration {
	return time.Duration(s.TickIntervalInMilliseconds) * time.Millisecond
}

func (s AppSession) OperationTimeout() time.Duration {
	return time.Duration(s.OperationTimeoutInSeconds) * time.Second
}

type AppStream struct {
	InboundFramesPerSecond    int `mapstructure:"inbound_frames_per_second"`
	InboundBurst              int `mapstructure:"inbound_burst"`
	PingIntervalInSeconds     int `mapstructure:"ping_interval_in_seconds"`
	WriteTimeoutInSeconds     int `mapstructure:"write_timeout_in_seconds"`
	ReadLimitInBytes          int `mapstructure:"read_limit_in_bytes"`
	SendBufferSize            int `mapstructure:"send_buffer_size"`
	ConnectsPerMinute         int `mapstructure:"connects_per_minute"`
	ConnectBlockTimeInSeconds int `mapstructure:"connect_block_time_in_seconds"`
}

type AppRabbitMQ struct {
	SessionEventsQueue           string `mapstructure:"session_events_queue"`
	SessionEventsDeadLetterQueue string `mapstructure:"session_events_dead_letter_queue"`
}

type AppMinio struct {
	TranscriptBucketName string `mapstructure:"transcript_bucket_name"`
}

type AppArchive struct {
	Enabled                 bool `mapstructure:"enabled"`
	WorkerIntervalInSeconds int  `mapstructure:"worker_interval_in_seconds"`
	MaxQueue                int  `mapstructure:"max_queue"`
	MaxRetries              int  `mapstructure:"max_retries"`
	LockTTLInSeconds        int  `mapstructure:"lock_ttl_in_seconds"`
}

type AppSweeper struct {
	Enabled              bool   `mapstructure:"enabled"`
	CronSpec             string `mapstructure:"cron_spec"`
	GracePeriodInSeconds int    `mapstructure:"grace_period_in_seconds"`
	LockTTLInSeconds     int    `mapstructure:"lock_ttl_in_seconds"`
}
