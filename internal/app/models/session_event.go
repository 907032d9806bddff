package models

import "time"

type SessionEvent struct {
	ID            string       `json:"id"`
	Type          string       `json:"type"`
	AppointmentID string       `json:"appointmentId"`
	ActorID       string       `json:"actorId"`
	Reason        EndReason    `json:"reason,omitempty"`
	Appointment   *Appointment `json:"appointment,omitempty"`
	OccurredAt    time.Time    `json:"occurredAt"`
	FailedCount   int          `json:"failedCount"`
}

type SessionTranscript struct {
	Appointment *Appointment `json:"appointment"`
	Messages    []Message    `json:"messages"`
	ArchivedAt  time.Time    `json:"archivedAt"`
}
