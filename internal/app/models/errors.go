package models

import "errors"

var (
	ErrAppointmentNotFound      = errors.New("appointment not found")
	ErrAppointmentAlreadyExists = errors.New("appointment already exists")
	// ErrTransitionRejected is returned when the stored status no longer
	// matches the status a conditional transition expected.
	ErrTransitionRejected = errors.New("session transition rejected")
)
