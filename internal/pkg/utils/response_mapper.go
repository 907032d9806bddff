package utils

import (
	"time"

	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/dto/responses"
)

func MapAppointmentToResponse(appointment *models.Appointment) *responses.Appointment {
	if appointment == nil {
		return nil
	}
	return &responses.Appointment{
		ID:          appointment.ID,
		PatientID:   appointment.PatientID,
		PatientName: appointment.PatientName,
		DoctorID:    appointment.DoctorID,
		DoctorName:  appointment.DoctorName,
		ScheduledAt: appointment.ScheduledAt,
		CreatedAt:   appointment.CreatedAt,
		Session: responses.AppointmentSession{
			Status:    string(appointment.Session.Status),
			StartTime: appointment.Session.StartTime,
			StartedBy: appointment.Session.StartedBy,
			Duration:  appointment.Session.DurationSeconds,
			EndTime:   appointment.Session.EndTime,
			EndedBy:   appointment.Session.EndedBy,
			EndReason: string(appointment.Session.EndReason),
		},
	}
}

func MapMessageToResponse(message *models.Message) responses.Message {
	return responses.Message{
		ID:         message.ID,
		SenderID:   message.SenderID,
		SenderName: message.SenderName,
		SenderRole: message.SenderRole,
		Text:       message.Text,
		CreatedAt:  message.CreatedAt,
		Timestamp:  message.Timestamp,
	}
}

func MapMessagesToResponse(messages []models.Message) []responses.Message {
	result := make([]responses.Message, 0, len(messages))
	for i := range messages {
		result = append(result, MapMessageToResponse(&messages[i]))
	}
	return result
}

// RemainingSeconds rounds up so a display never shows zero while time is left.
func RemainingSeconds(remaining time.Duration) int64 {
	if remaining <= 0 {
		return 0
	}
	return int64((remaining + time.Second - 1) / time.Second)
}
