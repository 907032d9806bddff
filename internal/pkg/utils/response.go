package utils

import (
	"errors"
	"net/http"

	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/dto/responses"
	"telesession-service/internal/pkg/exceptions"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

func BuildSuccessResponse(w http.ResponseWriter, code int, message string, data interface{}) {
	response := responses.ResponseDTO{
		Success: true,
		Message: message,
		Data:    data,
	}
	w.Header().Set(constvars.HeaderContentType, constvars.MIMEApplicationJSON)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

func BuildErrorResponse(log *zap.Logger, w http.ResponseWriter, err error) {
	customErr := AsCustomError(log, err)

	w.Header().Set(constvars.HeaderContentType, constvars.MIMEApplicationJSON)
	w.WriteHeader(customErr.StatusCode)
	response := exceptions.CustomError{
		StatusCode:    customErr.StatusCode,
		Success:       false,
		ClientMessage: customErr.ClientMessage,
	}

	appEnvironment := GetEnvString("APP_ENV", "development")
	if appEnvironment != "production" {
		response.DevMessage = customErr.DevMessage
		response.Locations = customErr.Locations
	}
	json.NewEncoder(w).Encode(response)
}

// AsCustomError logs err with its recorded locations and returns it as a
// CustomError, falling back to a generic server error for foreign errors.
func AsCustomError(log *zap.Logger, err error) *exceptions.CustomError {
	var customErr *exceptions.CustomError
	if !errors.As(err, &customErr) {
		log.Error(err.Error())
		return &exceptions.CustomError{
			StatusCode:    constvars.StatusInternalServerError,
			ClientMessage: constvars.ErrClientSomethingWrongWithApplication,
			DevMessage:    err.Error(),
			Err:           err,
		}
	}

	for _, location := range customErr.Locations {
		log.Error(customErr.DevMessage,
			zap.Any(constvars.LoggingLocationKey, location),
		)
	}
	return customErr
}
