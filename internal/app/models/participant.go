package models

import "telesession-service/internal/pkg/constvars"

// Participant is the authenticated identity acting on an appointment.
type Participant struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

func (p Participant) IsDoctor() bool {
	return p.Role == constvars.RoleDoctor
}
