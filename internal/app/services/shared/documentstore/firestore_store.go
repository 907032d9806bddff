package documentstore

import (
	"context"
	"errors"
	"time"

	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps each appointment as a document with a messages
// subcollection, the layout the web clients listen to directly.
type FirestoreStore struct {
	client *firestore.Client
	log    *zap.Logger
}

func NewFirestoreStore(client *firestore.Client, log *zap.Logger) *FirestoreStore {
	return &FirestoreStore{client: client, log: log}
}

var _ contracts.AppointmentStore = (*FirestoreStore)(nil)

type firestoreAppointment struct {
	PatientID        string     `firestore:"patientId"`
	PatientName      string     `firestore:"patientName"`
	DoctorID         string     `firestore:"doctorId"`
	DoctorName       string     `firestore:"doctorName"`
	ScheduledAt      time.Time  `firestore:"scheduledAt"`
	CreatedAt        time.Time  `firestore:"createdAt"`
	SessionStatus    string     `firestore:"sessionStatus"`
	SessionStartTime *time.Time `firestore:"sessionStartTime,omitempty"`
	StartedBy        string     `firestore:"startedBy,omitempty"`
	SessionDuration  int64      `firestore:"sessionDuration,omitempty"`
	SessionEndTime   *time.Time `firestore:"sessionEndTime,omitempty"`
	EndedBy          string     `firestore:"endedBy,omitempty"`
	EndReason        string     `firestore:"endReason,omitempty"`
}

type firestoreMessage struct {
	SenderID   string     `firestore:"senderId"`
	SenderName string     `firestore:"senderName"`
	SenderRole string     `firestore:"senderRole"`
	Text       string     `firestore:"text"`
	CreatedAt  time.Time  `firestore:"createdAt"`
	Timestamp  *time.Time `firestore:"timestamp,omitempty"`
}

func toFirestoreAppointment(a *models.Appointment) firestoreAppointment {
	return firestoreAppointment{
		PatientID:        a.PatientID,
		PatientName:      a.PatientName,
		DoctorID:         a.DoctorID,
		DoctorName:       a.DoctorName,
		ScheduledAt:      a.ScheduledAt,
		CreatedAt:        a.CreatedAt,
		SessionStatus:    string(a.Session.Status),
		SessionStartTime: a.Session.StartTime,
		StartedBy:        a.Session.StartedBy,
		SessionDuration:  a.Session.DurationSeconds,
		SessionEndTime:   a.Session.EndTime,
		EndedBy:          a.Session.EndedBy,
		EndReason:        string(a.Session.EndReason),
	}
}

func (d firestoreAppointment) toModel(id string) *models.Appointment {
	return &models.Appointment{
		ID:          id,
		PatientID:   d.PatientID,
		PatientName: d.PatientName,
		DoctorID:    d.DoctorID,
		DoctorName:  d.DoctorName,
		ScheduledAt: d.ScheduledAt,
		CreatedAt:   d.CreatedAt,
		Session: models.AppointmentSession{
			Status:          models.SessionStatus(d.SessionStatus),
			StartTime:       d.SessionStartTime,
			StartedBy:       d.StartedBy,
			DurationSeconds: d.SessionDuration,
			EndTime:         d.SessionEndTime,
			EndedBy:         d.EndedBy,
			EndReason:       models.EndReason(d.EndReason),
		},
	}
}

func (d firestoreMessage) toModel(id, appointmentID string) models.Message {
	return models.Message{
		ID:            id,
		AppointmentID: appointmentID,
		SenderID:      d.SenderID,
		SenderName:    d.SenderName,
		SenderRole:    d.SenderRole,
		Text:          d.Text,
		CreatedAt:     d.CreatedAt,
		Timestamp:     d.Timestamp,
	}
}

func (s *FirestoreStore) appointmentRef(appointmentID string) *firestore.DocumentRef {
	return s.client.Collection(constvars.CollectionAppointments).Doc(appointmentID)
}

func (s *FirestoreStore) messagesRef(appointmentID string) *firestore.CollectionRef {
	return s.appointmentRef(appointmentID).Collection(constvars.CollectionMessages)
}

func (s *FirestoreStore) CreateAppointment(ctx context.Context, appointment *models.Appointment) error {
	_, err := s.appointmentRef(appointment.ID).Create(ctx, toFirestoreAppointment(appointment))
	if status.Code(err) == codes.AlreadyExists {
		return models.ErrAppointmentAlreadyExists
	}
	if err != nil {
		return exceptions.ErrFirestoreCreateDocument(err)
	}
	return nil
}

func (s *FirestoreStore) FindAppointmentByID(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	snap, err := s.appointmentRef(appointmentID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, exceptions.ErrFirestoreGetDocument(err)
	}
	return decodeAppointment(snap)
}

func (s *FirestoreStore) ActivateSession(ctx context.Context, input *contracts.ActivateSessionInput) error {
	ref := s.appointmentRef(input.AppointmentID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := s.readStatus(tx, ref)
		if err != nil {
			return err
		}
		if current != models.SessionStatusWaiting {
			return models.ErrTransitionRejected
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "sessionStatus", Value: string(models.SessionStatusActive)},
			{Path: "sessionStartTime", Value: firestore.ServerTimestamp},
			{Path: "startedBy", Value: input.StartedBy},
			{Path: "sessionDuration", Value: input.DurationSeconds},
		})
	})
	return s.transactionError(err)
}

func (s *FirestoreStore) EndSession(ctx context.Context, input *contracts.EndSessionInput) (*models.Appointment, error) {
	ref := s.appointmentRef(input.AppointmentID)

	var final *models.Appointment
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return models.ErrAppointmentNotFound
		}
		if err != nil {
			return exceptions.ErrFirestoreGetDocument(err)
		}
		appointment, err := decodeAppointment(snap)
		if err != nil {
			return err
		}
		if appointment.Session.Status != models.SessionStatusActive {
			return models.ErrTransitionRejected
		}

		err = tx.Update(ref, []firestore.Update{
			{Path: "sessionStatus", Value: string(models.SessionStatusEnded)},
			{Path: "sessionEndTime", Value: firestore.ServerTimestamp},
			{Path: "endedBy", Value: input.EndedBy},
			{Path: "endReason", Value: string(input.Reason)},
		})
		if err != nil {
			return err
		}
		if err := tx.Delete(ref); err != nil {
			return err
		}

		// The server timestamp is not readable once the document is gone.
		endTime := time.Now()
		appointment.Session.Status = models.SessionStatusEnded
		appointment.Session.EndTime = &endTime
		appointment.Session.EndedBy = input.EndedBy
		appointment.Session.EndReason = input.Reason
		final = appointment
		return nil
	})
	if err != nil {
		return nil, s.transactionError(err)
	}
	return final, nil
}

func (s *FirestoreStore) FindActiveSessionsStartedBefore(ctx context.Context, before time.Time) ([]models.Appointment, error) {
	query := s.client.Collection(constvars.CollectionAppointments).
		Where("sessionStatus", "==", string(models.SessionStatusActive)).
		Where("sessionStartTime", "<", before)

	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, exceptions.ErrFirestoreQuery(err)
	}

	appointments := make([]models.Appointment, 0, len(docs))
	for _, doc := range docs {
		appointment, err := decodeAppointment(doc)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, *appointment)
	}
	return appointments, nil
}

func (s *FirestoreStore) AppendMessage(ctx context.Context, message *models.Message) (*models.Message, error) {
	ref := s.messagesRef(message.AppointmentID).NewDoc()
	_, err := ref.Create(ctx, map[string]interface{}{
		"senderId":   message.SenderID,
		"senderName": message.SenderName,
		"senderRole": message.SenderRole,
		"text":       message.Text,
		"createdAt":  message.CreatedAt,
		"timestamp":  firestore.ServerTimestamp,
	})
	if err != nil {
		return nil, exceptions.ErrFirestoreCreateDocument(err)
	}

	stored := *message
	stored.ID = ref.ID
	return &stored, nil
}

func (s *FirestoreStore) FindMessages(ctx context.Context, appointmentID string) ([]models.Message, error) {
	docs, err := s.messagesRef(appointmentID).OrderBy("createdAt", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, exceptions.ErrFirestoreQuery(err)
	}
	return decodeMessages(appointmentID, docs)
}

func (s *FirestoreStore) DeleteMessages(ctx context.Context, appointmentID string) (int64, error) {
	refs, err := s.messagesRef(appointmentID).DocumentRefs(ctx).GetAll()
	if err != nil {
		return 0, exceptions.ErrFirestoreQuery(err)
	}

	var deleted int64
	for _, ref := range refs {
		if _, err := ref.Delete(ctx); err != nil {
			return deleted, exceptions.ErrFirestoreDeleteDocument(err)
		}
		deleted++
	}
	return deleted, nil
}

func (s *FirestoreStore) WatchAppointment(ctx context.Context, appointmentID string, onUpdate func(models.AppointmentSnapshot), onError func(error)) (contracts.Unsubscribe, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	it := s.appointmentRef(appointmentID).Snapshots(watchCtx)

	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if !s.isStopped(watchCtx, err) && onError != nil {
					onError(exceptions.ErrFirestoreGetDocument(err))
				}
				return
			}
			if !snap.Exists() {
				onUpdate(models.AppointmentSnapshot{ID: appointmentID})
				continue
			}

			appointment, err := decodeAppointment(snap)
			if err != nil {
				s.log.Error("FirestoreStore.WatchAppointment decode failed",
					zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
					zap.Error(err),
				)
				continue
			}
			onUpdate(models.AppointmentSnapshot{ID: appointmentID, Exists: true, Appointment: appointment})
		}
	}()

	return contracts.Unsubscribe(cancel), nil
}

func (s *FirestoreStore) WatchMessages(ctx context.Context, appointmentID string, onUpdate func([]models.Message), onError func(error)) (contracts.Unsubscribe, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	it := s.messagesRef(appointmentID).OrderBy("createdAt", firestore.Asc).Snapshots(watchCtx)

	go func() {
		defer it.Stop()
		for {
			qs, err := it.Next()
			if err != nil {
				if !s.isStopped(watchCtx, err) && onError != nil {
					onError(exceptions.ErrFirestoreQuery(err))
				}
				return
			}

			docs, err := qs.Documents.GetAll()
			if err != nil {
				s.log.Error("FirestoreStore.WatchMessages read failed",
					zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
					zap.Error(err),
				)
				continue
			}
			messages, err := decodeMessages(appointmentID, docs)
			if err != nil {
				continue
			}
			onUpdate(messages)
		}
	}()

	return contracts.Unsubscribe(cancel), nil
}

func (s *FirestoreStore) Close(ctx context.Context) error {
	return s.client.Close()
}

func (s *FirestoreStore) readStatus(tx *firestore.Transaction, ref *firestore.DocumentRef) (models.SessionStatus, error) {
	snap, err := tx.Get(ref)
	if status.Code(err) == codes.NotFound {
		return "", models.ErrAppointmentNotFound
	}
	if err != nil {
		return "", exceptions.ErrFirestoreGetDocument(err)
	}
	value, err := snap.DataAt("sessionStatus")
	if err != nil {
		return "", exceptions.ErrFirestoreDecodeDocument(err)
	}
	current, _ := value.(string)
	return models.SessionStatus(current), nil
}

func (s *FirestoreStore) transactionError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrAppointmentNotFound) || errors.Is(err, models.ErrTransitionRejected) {
		return err
	}
	return exceptions.ErrFirestoreTransaction(err)
}

func (s *FirestoreStore) isStopped(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled
}

func decodeAppointment(snap *firestore.DocumentSnapshot) (*models.Appointment, error) {
	var doc firestoreAppointment
	if err := snap.DataTo(&doc); err != nil {
		return nil, exceptions.ErrFirestoreDecodeDocument(err)
	}
	return doc.toModel(snap.Ref.ID), nil
}

func decodeMessages(appointmentID string, docs []*firestore.DocumentSnapshot) ([]models.Message, error) {
	messages := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		var data firestoreMessage
		if err := doc.DataTo(&data); err != nil {
			return nil, exceptions.ErrFirestoreDecodeDocument(err)
		}
		messages = append(messages, data.toModel(doc.Ref.ID, appointmentID))
	}
	models.SortMessages(messages)
	return messages, nil
}
