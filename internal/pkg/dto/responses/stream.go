package responses

// StreamFrame is a server frame on the session stream. Only the fields
// relevant to Type are populated.
type StreamFrame struct {
	Type               string       `json:"type"`
	Appointment        *Appointment `json:"appointment,omitempty"`
	Messages           []Message    `json:"messages,omitempty"`
	RemainingInSeconds *int64       `json:"remaining_in_seconds,omitempty"`
	Reason             string       `json:"reason,omitempty"`
	Operation          string       `json:"operation,omitempty"`
	Message            string       `json:"message,omitempty"`
	Retryable          bool         `json:"retryable,omitempty"`
}
