package routers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"telesession-service/internal/app/config"
	"telesession-service/internal/app/delivery/http/controllers"
	"telesession-service/internal/app/delivery/http/middlewares"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

func SetupRoutes(
	router *chi.Mux,
	internalConfig *config.InternalConfig,
	middlewares *middlewares.Middlewares,
	sessionController *controllers.SessionController,
	sessionStreamController *controllers.SessionStreamController,
) {
	allowedOrigins := []string{"*"}
	if internalConfig.App.FrontendDomain != "" {
		allowedOrigins = []string{internalConfig.App.FrontendDomain}
	}
	corsOptions := cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	router.Use(cors.Handler(corsOptions))

	maxRequests := internalConfig.App.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 100
	}
	window := time.Duration(internalConfig.App.MaxTimeRequestsPerSeconds) * time.Second
	if window <= 0 {
		window = time.Second
	}
	router.Use(httprate.LimitByIP(maxRequests, window))

	router.Use(middlewares.RequestIDMiddleware)
	router.Use(middlewares.Logging(middlewares.Log))
	router.Use(middlewares.ErrorHandler)
	router.Use(middlewares.BodyLimit)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.ResponseServiceHealthy, nil)
	})

	endpointPrefix := fmt.Sprintf("/%s", strings.Trim(internalConfig.App.EndpointPrefix, "/"))
	versionPrefix := fmt.Sprintf("/%s", strings.Trim(internalConfig.App.Version, "/"))

	router.Route(endpointPrefix, func(r chi.Router) {
		r.Route(versionPrefix, func(r chi.Router) {
			r.Route("/appointments", func(r chi.Router) {
				attachSessionRoutes(r, middlewares, sessionController, sessionStreamController)
			})
		})
	})
}
