package repository

import (
	"context"
	"time"

	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	settingsCollection = "settings"
	apiKeySetting      = "api_key"
)

// settingDocument is one team-scoped key/value setting
type settingDocument struct {
	TeamID    string                    `bson:"team_id"`
	Key       string                    `bson:"key"`
	Value     domain.ChannelCredentials `bson:"value"`
	UpdatedAt time.Time                 `bson:"updated_at"`
}

// SettingsRepository stores per-team settings such as channel credentials
type SettingsRepository struct {
	client *mongodb.MongoClient
}

// NewSettingsRepository creates a new repository
func NewSettingsRepository(client *mongodb.MongoClient) *SettingsRepository {
	return &SettingsRepository{client: client}
}

// EnsureIndexes creates the unique (team, key) index
func (r *SettingsRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "team_id", Value: 1},
				{Key: "key", Value: 1},
			},
			Options: options.Index().SetName("team_key_unique_idx").SetUnique(true),
		},
	}
	return r.client.CreateIndexes(ctx, settingsCollection, indexes)
}

// GetChannelCredentials returns the team's stored channel credentials
func (r *SettingsRepository) GetChannelCredentials(ctx context.Context, teamID string) (*domain.ChannelCredentials, error) {
	var doc settingDocument
	filter := bson.M{"team_id": teamID, "key": apiKeySetting}
	if err := r.client.Collection(settingsCollection).FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	return &doc.Value, nil
}

// SaveChannelCredentials upserts the team's channel credentials
func (r *SettingsRepository) SaveChannelCredentials(ctx context.Context, teamID string, creds domain.ChannelCredentials) error {
	filter := bson.M{"team_id": teamID, "key": apiKeySetting}
	update := bson.M{"$set": settingDocument{
		TeamID:    teamID,
		Key:       apiKeySetting,
		Value:     creds,
		UpdatedAt: time.Now(),
	}}

	_, err := r.client.Collection(settingsCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}
