package storage

import (
	"bytes"
	"context"
	"fmt"

	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"

	"github.com/goccy/go-json"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

type transcriptStorage struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
}

func NewTranscriptStorage(client *minio.Client, bucket string, log *zap.Logger) contracts.TranscriptStorage {
	return &transcriptStorage{
		client: client,
		bucket: bucket,
		log:    log,
	}
}

func (s *transcriptStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return exceptions.ErrMinioEnsureBucket(err)
	}
	if exists {
		return nil
	}

	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return exceptions.ErrMinioEnsureBucket(err)
	}
	s.log.Info("transcriptStorage.EnsureBucket created bucket", zap.String("bucket", s.bucket))
	return nil
}

// SaveTranscript overwrites any earlier transcript for the same appointment,
// so a redelivered archive event produces the same object.
func (s *transcriptStorage) SaveTranscript(ctx context.Context, transcript *models.SessionTranscript) (string, error) {
	requestID, _ := ctx.Value(constvars.CONTEXT_REQUEST_ID_KEY).(string)

	data, err := json.Marshal(transcript)
	if err != nil {
		return "", exceptions.ErrCannotMarshalJSON(err)
	}

	objectKey := fmt.Sprintf(constvars.TranscriptObjectKeyFormat, transcript.Appointment.ID)
	_, err = s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: constvars.MIMEApplicationJSON,
		UserMetadata: map[string]string{
			"appointment-id": transcript.Appointment.ID,
			"message-count":  fmt.Sprint(len(transcript.Messages)),
		},
	})
	if err != nil {
		return "", exceptions.ErrMinioCreateObject(err)
	}

	s.log.Info("transcriptStorage.SaveTranscript succeeded",
		zap.String(constvars.LoggingRequestIDKey, requestID),
		zap.String(constvars.LoggingObjectKey, objectKey),
		zap.Int(constvars.LoggingMessageCountKey, len(transcript.Messages)),
	)
	return objectKey, nil
}
