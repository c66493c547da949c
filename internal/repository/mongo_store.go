package repository

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/mongodb"
)

// MongoStore bundles the MongoDB repositories behind a single store value
type MongoStore struct {
	*ScheduledMessageRepository
	*WebhookRepository
	*SettingsRepository
}

// NewMongoStore creates the MongoDB-backed store
func NewMongoStore(client *mongodb.MongoClient) *MongoStore {
	return &MongoStore{
		ScheduledMessageRepository: NewScheduledMessageRepository(client),
		WebhookRepository:          NewWebhookRepository(client),
		SettingsRepository:         NewSettingsRepository(client),
	}
}

// EnsureIndexes creates the indexes of every collection, reporting all failures
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	var result *multierror.Error
	for _, ensure := range []func(context.Context) error{
		s.ScheduledMessageRepository.EnsureIndexes,
		s.WebhookRepository.EnsureIndexes,
		s.SettingsRepository.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
