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
	webhooksCollection    = "webhooks"
	webhookLogsCollection = "webhook_logs"
)

// WebhookRepository handles webhook and delivery log data operations
type WebhookRepository struct {
	client *mongodb.MongoClient
}

// NewWebhookRepository creates a new repository
func NewWebhookRepository(client *mongodb.MongoClient) *WebhookRepository {
	return &WebhookRepository{client: client}
}

// EnsureIndexes creates necessary indexes for optimal query performance
func (r *WebhookRepository) EnsureIndexes(ctx context.Context) error {
	webhookIndexes := []mongo.IndexModel{
		{
			// Fan-out lookup: team + active + event membership
			Keys: bson.D{
				{Key: "team_id", Value: 1},
				{Key: "active", Value: 1},
				{Key: "events", Value: 1},
			},
			Options: options.Index().SetName("team_active_events_idx"),
		},
	}
	if err := r.client.CreateIndexes(ctx, webhooksCollection, webhookIndexes); err != nil {
		return err
	}

	logIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "webhook_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("webhook_created_idx"),
		},
	}
	return r.client.CreateIndexes(ctx, webhookLogsCollection, logIndexes)
}

// CreateWebhook creates a new webhook
func (r *WebhookRepository) CreateWebhook(ctx context.Context, w *domain.Webhook) error {
	now := time.Now()
	w.ID = primitive.NewObjectID().Hex()
	w.CreatedAt = now
	w.UpdatedAt = now

	_, err := r.client.Collection(webhooksCollection).InsertOne(ctx, w)
	return err
}

// GetWebhook finds a webhook by ID
func (r *WebhookRepository) GetWebhook(ctx context.Context, id string) (*domain.Webhook, error) {
	var w domain.Webhook
	if err := r.client.Collection(webhooksCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// UpdateWebhook applies a partial update and returns the updated document
func (r *WebhookRepository) UpdateWebhook(ctx context.Context, id string, update domain.WebhookUpdate) (*domain.Webhook, error) {
	set := bson.M{"updated_at": time.Now()}
	if !update.UpdatedAt.IsZero() {
		set["updated_at"] = update.UpdatedAt
	}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.URL != nil {
		set["url"] = *update.URL
	}
	if update.Secret != nil {
		set["secret"] = *update.Secret
	}
	if update.Events != nil {
		set["events"] = *update.Events
	}
	if update.Active != nil {
		set["active"] = *update.Active
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var w domain.Webhook
	err := r.client.Collection(webhooksCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).
		Decode(&w)
	if err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// DeleteWebhook deletes a webhook. Its delivery logs are kept for audit.
func (r *WebhookRepository) DeleteWebhook(ctx context.Context, id string) error {
	result, err := r.client.Collection(webhooksCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWebhooksForTeam lists a team's webhooks, newest first
func (r *WebhookRepository) ListWebhooksForTeam(ctx context.Context, teamID string) ([]*domain.Webhook, error) {
	return r.findWebhooks(ctx, bson.M{"team_id": teamID})
}

// ListActiveWebhooksForEvent lists the team's active webhooks subscribed to event
func (r *WebhookRepository) ListActiveWebhooksForEvent(ctx context.Context, teamID string, event domain.EventType) ([]*domain.Webhook, error) {
	// Equality on an array field matches membership
	return r.findWebhooks(ctx, bson.M{
		"team_id": teamID,
		"active":  true,
		"events":  event,
	})
}

func (r *WebhookRepository) findWebhooks(ctx context.Context, filter bson.M) ([]*domain.Webhook, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.client.Collection(webhooksCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	webhooks := []*domain.Webhook{}
	if err = cursor.All(ctx, &webhooks); err != nil {
		return nil, err
	}
	return webhooks, nil
}

// AppendWebhookLog records a delivery attempt
func (r *WebhookRepository) AppendWebhookLog(ctx context.Context, log *domain.WebhookLog) error {
	log.ID = primitive.NewObjectID().Hex()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	_, err := r.client.Collection(webhookLogsCollection).InsertOne(ctx, log)
	return err
}

// ListWebhookLogs returns up to limit delivery logs of a webhook, newest first
func (r *WebhookRepository) ListWebhookLogs(ctx context.Context, webhookID string, limit int) ([]*domain.WebhookLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.client.Collection(webhookLogsCollection).Find(ctx, bson.M{"webhook_id": webhookID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []*domain.WebhookLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
