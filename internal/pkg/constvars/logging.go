package constvars

const (
	LoggingRequestIDKey      = "request_id"
	LoggingDataKey           = "data"
	LoggingRequestKey        = "request"
	LoggingResponseKey       = "response"
	LoggingErrorTypeKey      = "error_type"
	LoggingErrorMessageKey   = "error_message"
	LoggingAppointmentIDKey  = "appointment_id"
	LoggingUserIDKey         = "user_id"
	LoggingRoleKey           = "role"
	LoggingSessionStatusKey  = "session_status"
	LoggingEndReasonKey      = "end_reason"
	LoggingRemainingKey      = "remaining"
	LoggingMessageCountKey   = "message_count"
	LoggingEventTypeKey      = "event_type"
	LoggingObjectKey         = "object_key"
	LoggingLockKey           = "lock_key"
	LoggingCountKey          = "count"
	LoggingStoreDriverKey    = "store_driver"
	LoggingStreamFrameKey    = "frame_type"
	LoggingOperationKey      = "operation"
	LoggingDurationKey       = "duration"
	LoggingRetryableKey      = "retryable"
	LoggingFailedCountKey    = "failed_count"
	LoggingRateLimitGroupKey = "rate_limit_group"
	LoggingMethodKey         = "method"
	LoggingEndpointKey       = "endpoint"
	LoggingRemoteAddrKey     = "remote_addr"
	LoggingUserAgentKey      = "user_agent"
	LoggingQueryKey          = "query"
	LoggingStatusCodeKey     = "status_code"
	LoggingSuccessKey        = "success"
	LoggingIsClientReqIDKey  = "is_client_request_id"
	LoggingLocationKey       = "location"
	LoggingLockValueKey      = "lock_value"
	LoggingLockExpirationKey = "lock_expiration"
	LoggingRetryAfterKey     = "retry_after_seconds"
	LoggingQueueKey          = "queue"
	LoggingDeliveryTagKey    = "delivery_tag"
	LoggingServiceKey        = "service"
	LoggingVersionKey        = "version"
	LoggingPanicKey          = "panic"
)
