package middlewares

import (
	"net/http"
	"strings"

	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"
	"telesession-service/internal/pkg/utils"

	"go.uber.org/zap"
)

// Authenticate resolves the caller from an identity token. Browsers cannot
// set headers on websocket upgrades, so the token is also accepted as the
// access_token query parameter.
func (m *Middlewares) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := utils.GetRequestIDFromContext(r.Context())

		token := bearerToken(r)
		if token == "" {
			m.Log.Info("Middlewares.Authenticate token missing",
				zap.String(constvars.LoggingRequestIDKey, requestID),
			)
			utils.BuildErrorResponse(m.Log, w, exceptions.ErrTokenMissing(nil))
			return
		}

		participant, err := utils.ParseIdentityToken(token, m.InternalConfig.JWT.Secret)
		if err != nil {
			m.Log.Info("Middlewares.Authenticate token rejected",
				zap.String(constvars.LoggingRequestIDKey, requestID),
				zap.Error(err),
			)
			utils.BuildErrorResponse(m.Log, w, err)
			return
		}

		ctx := utils.SetIdentityToContext(r.Context(), participant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get(constvars.HeaderAuthorization)
	if strings.HasPrefix(header, constvars.AuthorizationBearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, constvars.AuthorizationBearerPrefix))
	}
	return strings.TrimSpace(r.URL.Query().Get(constvars.QueryParamAccessToken))
}
