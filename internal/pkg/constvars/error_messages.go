package constvars

// Validation messages mapper
var CustomValidationErrorMessages = map[string]string{
	"required":  "is required",
	"min":       "must be at least %s characters long",
	"max":       "maximum at %s characters long",
	"oneof":     "must be one of [%s]",
	"gt":        "must be greater than %s",
	"gte":       "must be greater than or equal to %s",
	"lte":       "must be less than or equal to %s",
	"uuid":      "must be a valid UUID",
	"not_blank": "must not be blank",
	"nefield":   "must be different from %s",
}

// Tags that require parameter substitution
var TagsWithParams = map[string]bool{
	"min":     true,
	"max":     true,
	"gt":      true,
	"gte":     true,
	"lte":     true,
	"oneof":   true,
	"nefield": true,
}

// Error messages for clients
const (
	ErrClientCannotProcessRequest          = "failed to process your request"
	ErrClientSomethingWrongWithApplication = "there is something wrong with the application"
	ErrClientServerLongRespond             = "server took too long to respond"
	ErrClientNotAuthorized                 = "you are not authorized to access this resource"
	ErrClientNotLoggedIn                   = "you are not logged in"
	ErrClientTooManyRequests               = "too many requests, please try again later"
	ErrClientAppointmentNotFound           = "appointment not found"
	ErrClientAppointmentAlreadyExists      = "appointment already exists"
	ErrClientNotParticipant                = "you are not a participant of this appointment"
	ErrClientNotSessionDoctor              = "only the appointment doctor can start the session"
	ErrClientSessionNotWaiting             = "session can no longer be started"
	ErrClientSessionNotActive              = "session is not active"
	ErrClientEmptyMessage                  = "message must not be empty"
	ErrClientMessageTooLong                = "message is too long"
	ErrClientSessionUnavailable            = "session updates are temporarily unavailable"
	ErrClientSessionClosed                 = "session connection is closed"
)

// Error messages for developers
const (
	ErrDevValidationFailed                 = "validation failed"
	ErrDevURLParamIDValidationFailed       = "url param '%s' validation failed"
	ErrDevCannotParseJSON                  = "cannot parse JSON body"
	ErrDevCannotMarshalJSON                = "cannot marshal JSON"
	ErrDevServerDeadlineExceeded           = "server deadline exceeded"
	ErrDevAuthTokenMissing                 = "authorization token is missing"
	ErrDevAuthTokenInvalidOrExpired        = "authorization token is invalid or expired"
	ErrDevAuthTokenUnexpectedSigningMethod = "unexpected token signing method: %v"
	ErrDevIdentityMissingInContext         = "identity is missing from request context"
	ErrDevAppointmentNotFound              = "appointment document not found"
	ErrDevAppointmentAlreadyExists         = "appointment document already exists"
	ErrDevUserNotParticipant               = "user is neither the patient nor the doctor of the appointment"
	ErrDevUserNotSessionDoctor             = "user is not the doctor of the appointment"
	ErrDevSessionNotWaiting                = "session status is not waiting"
	ErrDevSessionNotActive                 = "session status is not active"
	ErrDevEmptyMessage                     = "message body is empty after trimming"
	ErrDevMessageTooLong                   = "message body exceeds %d characters"
	ErrDevMessageRateLimited               = "sender exceeded message rate limit"
	ErrDevSessionSubscription              = "session subscription failed"
	ErrDevCoordinatorClosed                = "coordinator is closed"
	ErrDevAlreadySubscribed                = "coordinator already holds a %s subscription"
	ErrDevInvalidStoreDriver               = "invalid store driver '%s'"

	ErrDevMongoDBFindDocument   = "failed to find document in mongodb"
	ErrDevMongoDBInsertDocument = "failed to insert document into mongodb"
	ErrDevMongoDBUpdateDocument = "failed to update document in mongodb"
	ErrDevMongoDBDeleteDocument = "failed to delete document from mongodb"
	ErrDevMongoDBTransaction    = "mongodb transaction failed"
	ErrDevMongoDBDecodeDocument = "failed to decode mongodb document"
	ErrDevMongoDBWatch          = "failed to open mongodb change stream"

	ErrDevFirestoreGetDocument    = "failed to get firestore document"
	ErrDevFirestoreCreateDocument = "failed to create firestore document"
	ErrDevFirestoreQuery          = "failed to query firestore collection"
	ErrDevFirestoreTransaction    = "firestore transaction failed"
	ErrDevFirestoreDecodeDocument = "failed to decode firestore document"
	ErrDevFirestoreDeleteDocument = "failed to delete firestore document"

	ErrDevRedisGet         = "failed to get value from redis"
	ErrDevRedisSet         = "failed to set value in redis"
	ErrDevRedisDelete      = "failed to delete value from redis"
	ErrDevRedisIncrement   = "failed to increment value in redis"
	ErrDevRedisExpire      = "failed to set expiry in redis"
	ErrDevLockNotOwned     = "lock is not owned by this token"
	ErrDevLockAcquire      = "failed to acquire lock"
	ErrDevRateLimitCounter = "failed to update rate limit counter"

	ErrDevRabbitMQPublishMessage = "failed to publish message to rabbitmq"
	ErrDevRabbitMQConsumeMessage = "failed to consume message from rabbitmq"
	ErrDevRabbitMQAckMessage     = "failed to ack rabbitmq message"
	ErrDevRabbitMQDeclareQueue   = "failed to declare rabbitmq queue"
	ErrDevRabbitMQNack           = "rabbitmq broker did not confirm the message"

	ErrDevMinioEnsureBucket = "failed to ensure minio bucket"
	ErrDevMinioCreateObject = "failed to create minio object"
)
