package middlewares

import (
	"fmt"
	"net/http"

	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"
	"telesession-service/internal/pkg/utils"

	"go.uber.org/zap"
)

// ErrorHandler turns a panicking handler into a 500 envelope.
// http.ErrAbortHandler is re-raised for net/http to handle.
func (m *Middlewares) ErrorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}

			m.Log.Error("Middlewares.ErrorHandler recovered panic",
				zap.String(constvars.LoggingRequestIDKey, utils.GetRequestIDFromContext(r.Context())),
				zap.String(constvars.LoggingMethodKey, r.Method),
				zap.String(constvars.LoggingEndpointKey, r.URL.Path),
				zap.Any(constvars.LoggingPanicKey, rec),
				zap.Stack("stacktrace"),
			)
			utils.BuildErrorResponse(m.Log, w, exceptions.ErrServerProcess(err))
		}()
		next.ServeHTTP(w, r)
	})
}
