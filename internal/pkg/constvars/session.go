package constvars

const (
	SessionStatusWaiting = "waiting"
	SessionStatusActive  = "active"
	SessionStatusEnded   = "ended"
)

const (
	EndReasonManual    = "manual"
	EndReasonTimeUp    = "time_up"
	EndReasonCompleted = "completed"
)

const (
	CollectionAppointments = "appointments"
	CollectionMessages     = "messages"
)

const (
	SessionEventStarted = "session.started"
	SessionEventEnded   = "session.ended"
)

const (
	LockKeyArchiveWorker = "telesession:archive:worker:lock"
	LockKeySessionSweep  = "telesession:session:sweeper:lock"
)

const (
	RateLimitGroupMessages = "messages"
	RateLimitKeyFormat     = "ratelimit:%s:%s:%s"
)

const (
	TranscriptObjectKeyFormat = "transcripts/%s.json"
)

const (
	StreamFrameAppointment       = "appointment"
	StreamFrameMessages          = "messages"
	StreamFrameCountdown         = "countdown"
	StreamFrameSessionEnded      = "session_ended"
	StreamFrameOperationError    = "operation_error"
	StreamFrameSubscriptionError = "subscription_error"
	StreamFrameNotFound          = "not_found"
)

const (
	StreamCommandStartSession = "start_session"
	StreamCommandEndSession   = "end_session"
	StreamCommandSendMessage  = "send_message"
)

const (
	OperationStartSession = "start_session"
	OperationEndSession   = "end_session"
	OperationSendMessage  = "send_message"
)
