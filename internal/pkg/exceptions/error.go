package exceptions

import (
	"fmt"
	"runtime"

	"telesession-service/internal/pkg/constvars"
)

type CustomError struct {
	StatusCode    int        `json:"status_code"`
	Success       bool       `json:"success"`
	ClientMessage string     `json:"message"`
	DevMessage    string     `json:"dev_message,omitempty"`
	Locations     []Location `json:"locations,omitempty"`
	Err           error      `json:"-"`
}

type Location struct {
	File         string `json:"file"`
	Line         int    `json:"line"`
	FunctionName string `json:"function_name"`
}

func (e *CustomError) Error() string {
	if len(e.Locations) == 0 {
		return e.DevMessage
	}
	location := e.Locations[0]
	return fmt.Sprintf("%s (%s:%d %s)", e.DevMessage, location.File, location.Line, location.FunctionName)
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failed operation may succeed if attempted again.
func (e *CustomError) Retryable() bool {
	return e.StatusCode >= constvars.StatusInternalServerError || e.StatusCode == constvars.StatusTooManyRequests
}

// BuildNewCustomError wraps err with the caller location. When err is already a
// CustomError its locations are carried over so the full path is logged once.
func BuildNewCustomError(err error, statusCode int, clientMessage, devMessage string) *CustomError {
	customErr := &CustomError{
		StatusCode:    statusCode,
		ClientMessage: clientMessage,
		DevMessage:    devMessage,
		Locations:     []Location{getLocation(3)},
		Err:           err,
	}
	if err == nil {
		return customErr
	}

	if inner, ok := err.(*CustomError); ok {
		customErr.DevMessage = fmt.Sprintf("%s: %s", devMessage, inner.DevMessage)
		customErr.Locations = append(customErr.Locations, inner.Locations...)
		return customErr
	}

	customErr.DevMessage = fmt.Sprintf("%s: %s", devMessage, err.Error())
	return customErr
}

func getLocation(skip int) Location {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return Location{
			File:         constvars.ResponseUnknown,
			Line:         0,
			FunctionName: constvars.ResponseUnknown,
		}
	}
	function := runtime.FuncForPC(pc).Name()
	return Location{
		File:         file,
		Line:         line,
		FunctionName: function,
	}
}
