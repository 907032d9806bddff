package utils

import (
	"context"

	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"
)

func GetRequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)
	return requestID
}

func SetIdentityToContext(ctx context.Context, participant models.Participant) context.Context {
	return context.WithValue(ctx, constvars.CONTEXT_IDENTITY_KEY, participant)
}

func GetIdentityFromContext(ctx context.Context) (models.Participant, bool) {
	participant, ok := ctx.Value(constvars.CONTEXT_IDENTITY_KEY).(models.Participant)
	return participant, ok
}
