package repository

import (
	"context"
	"time"

	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	scheduledMessagesCollection    = "scheduled_messages"
	scheduledMessageLogsCollection = "scheduled_message_logs"
)

// ScheduledMessageRepository handles scheduled message and dispatch log data operations
type ScheduledMessageRepository struct {
	client *mongodb.MongoClient
}

// NewScheduledMessageRepository creates a new repository
func NewScheduledMessageRepository(client *mongodb.MongoClient) *ScheduledMessageRepository {
	return &ScheduledMessageRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *ScheduledMessageRepository) EnsureIndexes(ctx context.Context) error {
	messageIndexes := []mongo.IndexModel{
		{
			// Due scan of the dispatcher
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "next_run", Value: 1},
			},
			Options: options.Index().SetName("status_next_run_idx"),
		},
		{
			Keys: bson.D{
				{Key: "team_id", Value: 1},
				{Key: "next_run", Value: 1},
			},
			Options: options.Index().SetName("team_next_run_idx"),
		},
	}
	if err := r.client.CreateIndexes(ctx, scheduledMessagesCollection, messageIndexes); err != nil {
		return err
	}

	logIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "scheduled_message_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("message_created_idx"),
		},
	}
	return r.client.CreateIndexes(ctx, scheduledMessageLogsCollection, logIndexes)
}

// CreateScheduledMessage creates a new scheduled message
func (r *ScheduledMessageRepository) CreateScheduledMessage(ctx context.Context, m *domain.ScheduledMessage) error {
	now := time.Now()
	m.ID = primitive.NewObjectID().Hex()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := r.client.Collection(scheduledMessagesCollection).InsertOne(ctx, m)
	return err
}

// GetScheduledMessage finds a scheduled message by ID with team isolation
func (r *ScheduledMessageRepository) GetScheduledMessage(ctx context.Context, id, teamID string) (*domain.ScheduledMessage, error) {
	var m domain.ScheduledMessage
	filter := bson.M{
		"_id":     id,
		"team_id": teamID,
	}
	if err := r.client.Collection(scheduledMessagesCollection).FindOne(ctx, filter).Decode(&m); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

// ListScheduledMessages lists a team's scheduled messages ordered by next run
func (r *ScheduledMessageRepository) ListScheduledMessages(ctx context.Context, teamID string, filter domain.ScheduledMessageFilter) ([]*domain.ScheduledMessage, error) {
	query := bson.M{"team_id": teamID}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "next_run", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	return r.findMessages(ctx, query, opts)
}

// ListDueScheduledMessages finds pending messages whose next run is at or before now
func (r *ScheduledMessageRepository) ListDueScheduledMessages(ctx context.Context, now time.Time) ([]*domain.ScheduledMessage, error) {
	filter := bson.M{
		"status":   domain.ScheduledStatusPending,
		"next_run": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "next_run", Value: 1}})

	return r.findMessages(ctx, filter, opts)
}

func (r *ScheduledMessageRepository) findMessages(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.ScheduledMessage, error) {
	cursor, err := r.client.Collection(scheduledMessagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	messages := []*domain.ScheduledMessage{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateScheduledMessage applies a partial update to a single message
func (r *ScheduledMessageRepository) UpdateScheduledMessage(ctx context.Context, id string, update domain.ScheduledMessageUpdate) error {
	set := bson.M{"updated_at": time.Now()}
	if !update.UpdatedAt.IsZero() {
		set["updated_at"] = update.UpdatedAt
	}
	if update.Message != nil {
		set["message"] = *update.Message
	}
	if update.NextRun != nil {
		set["next_run"] = *update.NextRun
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if update.Recurring != nil {
		set["recurring"] = *update.Recurring
	}
	if update.RecurrencePattern != nil {
		set["recurrence_pattern"] = *update.RecurrencePattern
	}
	if update.RecurrenceConfig != nil {
		set["recurrence_config"] = *update.RecurrenceConfig
	}

	filter := bson.M{"_id": id}
	if update.ExpectStatus != nil {
		filter["status"] = *update.ExpectStatus
	}

	coll := r.client.Collection(scheduledMessagesCollection)
	result, err := coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}
	if update.ExpectStatus == nil {
		return ErrNotFound
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrStatusChanged
}

// AppendScheduledMessageLog records a dispatch attempt
func (r *ScheduledMessageRepository) AppendScheduledMessageLog(ctx context.Context, log *domain.ScheduledMessageLog) error {
	log.ID = primitive.NewObjectID().Hex()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.client.Collection(scheduledMessageLogsCollection).InsertOne(ctx, log)
	return err
}

// ListScheduledMessageLogs returns a message's dispatch history, oldest first
func (r *ScheduledMessageRepository) ListScheduledMessageLogs(ctx context.Context, messageID string) ([]*domain.ScheduledMessageLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.client.Collection(scheduledMessageLogsCollection).Find(ctx, bson.M{"scheduled_message_id": messageID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []*domain.ScheduledMessageLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
