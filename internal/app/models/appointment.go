package models

import (
	"time"

	"telesession-service/internal/pkg/constvars"
)

type SessionStatus string

const (
	SessionStatusWaiting SessionStatus = constvars.SessionStatusWaiting
	SessionStatusActive  SessionStatus = constvars.SessionStatusActive
	SessionStatusEnded   SessionStatus = constvars.SessionStatusEnded
)

// Rank orders statuses along the only permitted direction of travel.
// Unknown statuses rank below waiting.
func (s SessionStatus) Rank() int {
	switch s {
	case SessionStatusWaiting:
		return 1
	case SessionStatusActive:
		return 2
	case SessionStatusEnded:
		return 3
	default:
		return 0
	}
}

func (s SessionStatus) IsValid() bool {
	return s.Rank() > 0
}

type EndReason string

const (
	EndReasonManual    EndReason = constvars.EndReasonManual
	EndReasonTimeUp    EndReason = constvars.EndReasonTimeUp
	EndReasonCompleted EndReason = constvars.EndReasonCompleted
)

func (r EndReason) IsValid() bool {
	switch r {
	case EndReasonManual, EndReasonTimeUp, EndReasonCompleted:
		return true
	default:
		return false
	}
}

type AppointmentSession struct {
	Status          SessionStatus `json:"sessionStatus" bson:"sessionStatus"`
	StartTime       *time.Time    `json:"sessionStartTime,omitempty" bson:"sessionStartTime,omitempty"`
	StartedBy       string        `json:"startedBy,omitempty" bson:"startedBy,omitempty"`
	DurationSeconds int64         `json:"sessionDuration,omitempty" bson:"sessionDuration,omitempty"`
	EndTime         *time.Time    `json:"sessionEndTime,omitempty" bson:"sessionEndTime,omitempty"`
	EndedBy         string        `json:"endedBy,omitempty" bson:"endedBy,omitempty"`
	EndReason       EndReason     `json:"endReason,omitempty" bson:"endReason,omitempty"`
}

// Duration returns the configured session length, or fallback when the
// appointment does not carry one.
func (s AppointmentSession) Duration(fallback time.Duration) time.Duration {
	if s.DurationSeconds <= 0 {
		return fallback
	}
	return time.Duration(s.DurationSeconds) * time.Second
}

type Appointment struct {
	ID          string             `json:"id" bson:"_id"`
	PatientID   string             `json:"patientId" bson:"patientId"`
	PatientName string             `json:"patientName" bson:"patientName"`
	DoctorID    string             `json:"doctorId" bson:"doctorId"`
	DoctorName  string             `json:"doctorName" bson:"doctorName"`
	ScheduledAt time.Time          `json:"scheduledAt" bson:"scheduledAt"`
	Session     AppointmentSession `json:"session" bson:",inline"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
}

func (a *Appointment) IsParticipant(userID string) bool {
	return userID != "" && (userID == a.PatientID || userID == a.DoctorID)
}

func (a *Appointment) RoleOf(userID string) string {
	switch userID {
	case a.DoctorID:
		return constvars.RoleDoctor
	case a.PatientID:
		return constvars.RolePatient
	default:
		return ""
	}
}

func (a *Appointment) Clone() *Appointment {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Session.StartTime = cloneTime(a.Session.StartTime)
	clone.Session.EndTime = cloneTime(a.Session.EndTime)
	return &clone
}

// AppointmentSnapshot is one observation of the appointment document.
// Exists is false once the document has been deleted, or before it was created.
type AppointmentSnapshot struct {
	ID          string       `json:"id"`
	Exists      bool         `json:"exists"`
	Appointment *Appointment `json:"appointment,omitempty"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
