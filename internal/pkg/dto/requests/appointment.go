package requests

import "time"

type CreateAppointment struct {
	AppointmentID     string    `json:"appointment_id" validate:"omitempty,max=128"`
	PatientID         string    `json:"patient_id" validate:"required,not_blank,nefield=DoctorID"`
	PatientName       string    `json:"patient_name" validate:"required,not_blank,max=256"`
	DoctorID          string    `json:"doctor_id" validate:"required,not_blank"`
	DoctorName        string    `json:"doctor_name" validate:"required,not_blank,max=256"`
	ScheduledAt       time.Time `json:"scheduled_at" validate:"required"`
	DurationInSeconds int64     `json:"duration_in_seconds" validate:"omitempty,gte=60,lte=14400"`
}

type EndSession struct {
	Reason string `json:"reason" validate:"required,oneof=manual time_up completed"`
}

type SendMessage struct {
	Text      string     `json:"text" validate:"required,not_blank"`
	CreatedAt *time.Time `json:"created_at"`
}
