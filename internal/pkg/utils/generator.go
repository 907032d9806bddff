package utils

import (
	"strings"

	"telesession-service/internal/pkg/constvars"

	"github.com/google/uuid"
)

func GenerateRequestID() string {
	return constvars.REQUEST_ID_PREFIX + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func GenerateAppointmentID() string {
	return uuid.NewString()
}
