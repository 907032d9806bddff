package constvars

const (
	ResponseSuccess                  = "success"
	ResponseUnknown                  = "unknown"
	ResponseAppointmentCreated       = "appointment created successfully"
	ResponseAppointmentFound         = "appointment retrieved successfully"
	ResponseSessionStarted           = "session started successfully"
	ResponseSessionEnded             = "session ended successfully"
	ResponseMessageSent              = "message sent successfully"
	ResponseMessagesFound            = "messages retrieved successfully"
	ResponseServiceHealthy           = "service is healthy"
	ResponseSessionAlreadyTerminated = "session already ended"
)
