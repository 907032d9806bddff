package routers

import (
	"telesession-service/internal/app/delivery/http/controllers"
	"telesession-service/internal/app/delivery/http/middlewares"

	"github.com/go-chi/chi/v5"
)

func attachSessionRoutes(
	router chi.Router,
	middlewares *middlewares.Middlewares,
	sessionController *controllers.SessionController,
	sessionStreamController *controllers.SessionStreamController,
) {
	router.With(middlewares.Authenticate).Post("/", sessionController.CreateAppointment)
	router.With(middlewares.Authenticate).Get("/{appointmentID}", sessionController.GetAppointment)
	router.With(middlewares.Authenticate).Post("/{appointmentID}/session/start", sessionController.StartSession)
	router.With(middlewares.Authenticate).Post("/{appointmentID}/session/end", sessionController.EndSession)
	router.With(middlewares.Authenticate).Get("/{appointmentID}/messages", sessionController.ListMessages)
	router.With(middlewares.Authenticate).Post("/{appointmentID}/messages", sessionController.SendMessage)

	if sessionStreamController == nil {
		return
	}
	connectLimiter := middlewares.StreamConnectLimiter()
	router.With(middlewares.Authenticate, connectLimiter.Limit).Get("/{appointmentID}/session/stream", sessionStreamController.Stream)
}
