package responses

import "time"

type AppointmentSession struct {
	Status    string     `json:"status"`
	StartTime *time.Time `json:"start_time,omitempty"`
	StartedBy string     `json:"started_by,omitempty"`
	Duration  int64      `json:"duration_in_seconds,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	EndedBy   string     `json:"ended_by,omitempty"`
	EndReason string     `json:"end_reason,omitempty"`
}

type Appointment struct {
	ID          string             `json:"id"`
	PatientID   string             `json:"patient_id"`
	PatientName string             `json:"patient_name"`
	DoctorID    string             `json:"doctor_id"`
	DoctorName  string             `json:"doctor_name"`
	ScheduledAt time.Time          `json:"scheduled_at"`
	CreatedAt   time.Time          `json:"created_at"`
	Session     AppointmentSession `json:"session"`
}

type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"sender_id"`
	SenderName string     `json:"sender_name"`
	SenderRole string     `json:"sender_role"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"created_at"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}
