package constvars

type ContextKey string

const (
	CONTEXT_REQUEST_ID_KEY           ContextKey = "request_id"
	CONTEXT_IS_CLIENT_REQUEST_ID_KEY ContextKey = "is_client_request_id"
	CONTEXT_IDENTITY_KEY             ContextKey = "identity"
)

const (
	REQUEST_ID_PREFIX = "TLSN_SVC_"
)

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
	RoleSystem  = "system"
)

// SystemActorID identifies server-initiated transitions such as the stale session sweeper.
const SystemActorID = "system"

const (
	StoreDriverMongo     = "mongo"
	StoreDriverFirestore = "firestore"
	StoreDriverMemory    = "memory"
)

const (
	ResourceAppointments = "appointments"
	ResourceMessages     = "messages"
)

const ServiceName = "telesession-service"

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"
)
