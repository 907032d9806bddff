package contracts

import (
	"context"

	"telesession-service/internal/app/models"
)

type TranscriptStorage interface {
	EnsureBucket(ctx context.Context) error
	// SaveTranscript writes the transcript and returns its object key.
	SaveTranscript(ctx context.Context, transcript *models.SessionTranscript) (string, error)
}
