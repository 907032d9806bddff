package documentstore

import (
	"context"
	"errors"
	"time"

	"telesession-service/internal/app/contracts"
	"telesession-service/internal/app/models"
	"telesession-service/internal/pkg/constvars"
	"telesession-service/internal/pkg/exceptions"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore keeps appointments and messages in two collections. Live updates
// come from change streams, so the deployment must be a replica set.
type MongoStore struct {
	client       *mongo.Client
	appointments *mongo.Collection
	messages     *mongo.Collection
	log          *zap.Logger
}

func NewMongoStore(client *mongo.Client, dbName string, log *zap.Logger) *MongoStore {
	db := client.Database(dbName)
	return &MongoStore{
		client:       client,
		appointments: db.Collection(constvars.CollectionAppointments),
		messages:     db.Collection(constvars.CollectionMessages),
		log:          log,
	}
}

var _ contracts.AppointmentStore = (*MongoStore)(nil)

// EnsureIndexes creates the indexes the queries below rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "appointmentId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}

	_, err = s.appointments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "sessionStatus", Value: 1}, {Key: "sessionStartTime", Value: 1}},
	})
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}

func (s *MongoStore) CreateAppointment(ctx context.Context, appointment *models.Appointment) error {
	_, err := s.appointments.InsertOne(ctx, appointment)
	if mongo.IsDuplicateKeyError(err) {
		return models.ErrAppointmentAlreadyExists
	}
	if err != nil {
		return exceptions.ErrMongoDBInsertDocument(err)
	}
	return nil
}

func (s *MongoStore) FindAppointmentByID(ctx context.Context, appointmentID string) (*models.Appointment, error) {
	var appointment models.Appointment
	err := s.appointments.FindOne(ctx, bson.M{"_id": appointmentID}).Decode(&appointment)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &appointment, nil
}

func (s *MongoStore) ActivateSession(ctx context.Context, input *contracts.ActivateSessionInput) error {
	filter := bson.M{
		"_id":           input.AppointmentID,
		"sessionStatus": models.SessionStatusWaiting,
	}
	update := bson.M{
		"$set": bson.M{
			"sessionStatus":   models.SessionStatusActive,
			"startedBy":       input.StartedBy,
			"sessionDuration": input.DurationSeconds,
		},
		"$currentDate": bson.M{"sessionStartTime": true},
	}

	result, err := s.appointments.UpdateOne(ctx, filter, update)
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	if result.MatchedCount == 0 {
		return s.explainMiss(ctx, s.appointments, input.AppointmentID)
	}
	return nil
}

// EndSession marks the session ended and deletes the appointment inside one
// transaction, so observers never see an ended document that survives.
func (s *MongoStore) EndSession(ctx context.Context, input *contracts.EndSessionInput) (*models.Appointment, error) {
	session, err := s.client.StartSession()
	if err != nil {
		return nil, exceptions.ErrMongoDBTransaction(err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		filter := bson.M{
			"_id":           input.AppointmentID,
			"sessionStatus": models.SessionStatusActive,
		}
		update := bson.M{
			"$set": bson.M{
				"sessionStatus": models.SessionStatusEnded,
				"endedBy":       input.EndedBy,
				"endReason":     input.Reason,
			},
			"$currentDate": bson.M{"sessionEndTime": true},
		}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

		var final models.Appointment
		err := s.appointments.FindOneAndUpdate(sc, filter, update, opts).Decode(&final)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.explainMiss(sc, s.appointments, input.AppointmentID)
		}
		if err != nil {
			return nil, exceptions.ErrMongoDBUpdateDocument(err)
		}

		_, err = s.appointments.DeleteOne(sc, bson.M{"_id": input.AppointmentID})
		if err != nil {
			return nil, exceptions.ErrMongoDBDeleteDocument(err)
		}
		return &final, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrAppointmentNotFound) || errors.Is(err, models.ErrTransitionRejected) {
			return nil, err
		}
		return nil, exceptions.ErrMongoDBTransaction(err)
	}
	return result.(*models.Appointment), nil
}

func (s *MongoStore) FindActiveSessionsStartedBefore(ctx context.Context, before time.Time) ([]models.Appointment, error) {
	filter := bson.M{
		"sessionStatus":    models.SessionStatusActive,
		"sessionStartTime": bson.M{"$lt": before},
	}
	cursor, err := s.appointments.Find(ctx, filter)
	if err != nil {
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	defer cursor.Close(ctx)

	var appointments []models.Appointment
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, exceptions.ErrMongoDBDecodeDocument(err)
	}
	return appointments, nil
}

// AppendMessage upserts on a fresh ID so the server clock can stamp the
// timestamp in the same write.
func (s *MongoStore) AppendMessage(ctx context.Context, message *models.Message) (*models.Message, error) {
	id := primitive.NewObjectID().Hex()
	update := bson.M{
		"$setOnInsert": bson.M{
			"appointmentId": message.AppointmentID,
			"senderId":      message.SenderID,
			"senderName":    message.SenderName,
			"senderRole":    message.SenderRole,
			"text":          message.Text,
			"createdAt":     message.CreatedAt,
		},
		"$currentDate": bson.M{"timestamp": true},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored models.Message
	err := s.messages.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&stored)
	if err != nil {
		return nil, exceptions.ErrMongoDBInsertDocument(err)
	}
	return &stored, nil
}

func (s *MongoStore) FindMessages(ctx context.Context, appointmentID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"appointmentId": appointmentID}, opts)
	if err != nil {
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	defer cursor.Close(ctx)

	messages := make([]models.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, exceptions.ErrMongoDBDecodeDocument(err)
	}
	models.SortMessages(messages)
	return messages, nil
}

func (s *MongoStore) DeleteMessages(ctx context.Context, appointmentID string) (int64, error) {
	result, err := s.messages.DeleteMany(ctx, bson.M{"appointmentId": appointmentID})
	if err != nil {
		return 0, exceptions.ErrMongoDBDeleteDocument(err)
	}
	return result.DeletedCount, nil
}

type appointmentChangeEvent struct {
	OperationType string              `bson:"operationType"`
	FullDocument  *models.Appointment `bson:"fullDocument"`
}

type messageChangeEvent struct {
	OperationType string          `bson:"operationType"`
	FullDocument  *models.Message `bson:"fullDocument"`
}

func (s *MongoStore) WatchAppointment(ctx context.Context, appointmentID string, onUpdate func(models.AppointmentSnapshot), onError func(error)) (contracts.Unsubscribe, error) {
	watchCtx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: appointmentID}}}},
	}
	stream, err := s.appointments.Watch(watchCtx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, exceptions.ErrMongoDBWatch(err)
	}

	// The stream is opened before the initial read so no change between the two is lost.
	initial, err := s.FindAppointmentByID(watchCtx, appointmentID)
	if err != nil {
		stream.Close(context.Background())
		cancel()
		return nil, err
	}

	go func() {
		defer stream.Close(context.Background())

		onUpdate(appointmentSnapshot(appointmentID, initial))
		for stream.Next(watchCtx) {
			var event appointmentChangeEvent
			if err := stream.Decode(&event); err != nil {
				s.log.Error("MongoStore.WatchAppointment decode failed",
					zap.String(constvars.LoggingAppointmentIDKey, appointmentID),
					zap.Error(err),
				)
				continue
			}

			switch event.OperationType {
			case "delete":
				onUpdate(models.AppointmentSnapshot{ID: appointmentID})
			case "insert", "update", "replace":
				// A nil lookup means the document was deleted after this change; the delete event follows.
				if event.FullDocument != nil {
					onUpdate(appointmentSnapshot(appointmentID, event.FullDocument))
				}
			}
		}

		if err := stream.Err(); err != nil && watchCtx.Err() == nil && onError != nil {
			onError(exceptions.ErrMongoDBWatch(err))
		}
	}()

	return contracts.Unsubscribe(cancel), nil
}

func (s *MongoStore) WatchMessages(ctx context.Context, appointmentID string, onUpdate func([]models.Message), onError func(error)) (contracts.Unsubscribe, error) {
	watchCtx, cancel := context.WithCancel(ctx)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "insert"},
			{Key: "fullDocument.appointmentId", Value: appointmentID},
		}}},
	}
	stream, err := s.messages.Watch(watchCtx, pipeline)
	if err != nil {
		cancel()
		return nil, exceptions.ErrMongoDBWatch(err)
	}

	messages, err := s.FindMessages(watchCtx, appointmentID)
	if err != nil {
		stream.Close(context.Background())
		cancel()
		return nil, err
	}

	go func() {
		defer stream.Close(context.Background())

		seen := make(map[string]struct{}, len(messages))
		for _, message := range messages {
			seen[message.ID] = struct{}{}
		}
		onUpdate(models.CloneMessages(messages))

		for stream.Next(watchCtx) {
			var event messageChangeEvent
			if err := stream.Decode(&event); err != nil || event.FullDocument == nil {
				continue
			}
			if _, ok := seen[event.FullDocument.ID]; ok {
				continue
			}
			seen[event.FullDocument.ID] = struct{}{}
			messages = append(messages, *event.FullDocument)
			models.SortMessages(messages)
			onUpdate(models.CloneMessages(messages))
		}

		if err := stream.Err(); err != nil && watchCtx.Err() == nil && onError != nil {
			onError(exceptions.ErrMongoDBWatch(err))
		}
	}()

	return contracts.Unsubscribe(cancel), nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// explainMiss tells a missing document apart from one whose status moved on.
func (s *MongoStore) explainMiss(ctx context.Context, collection *mongo.Collection, appointmentID string) error {
	err := collection.FindOne(ctx, bson.M{"_id": appointmentID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrAppointmentNotFound
	}
	if err != nil {
		return exceptions.ErrMongoDBFindDocument(err)
	}
	return models.ErrTransitionRejected
}

func appointmentSnapshot(appointmentID string, appointment *models.Appointment) models.AppointmentSnapshot {
	if appointment == nil {
		return models.AppointmentSnapshot{ID: appointmentID}
	}
	return models.AppointmentSnapshot{ID: appointmentID, Exists: true, Appointment: appointment}
}
