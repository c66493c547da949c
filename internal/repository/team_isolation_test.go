package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/mongodb"
)

// TestTeamIsolation_ScheduledMessages verifies a message is only visible to its team
func TestTeamIsolation_ScheduledMessages(t *testing.T) {
	client := setupTestMongoDB(t)
	defer teardownTestMongoDB(t, client)

	store := NewMongoStore(client)
	ctx := context.Background()
	require.NoError(t, store.EnsureIndexes(ctx))

	msg := &domain.ScheduledMessage{
		TeamID:      "team-1",
		UserID:      "user-1",
		PhoneNumber: "+15550001",
		Message:     "hello",
		NextRun:     time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond),
		Status:      domain.ScheduledStatusPending,
	}
	require.NoError(t, store.CreateScheduledMessage(ctx, msg))
	require.NotEmpty(t, msg.ID)

	found, err := store.GetScheduledMessage(ctx, msg.ID, "team-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", found.Message)

	// Different team CANNOT access
	_, err = store.GetScheduledMessage(ctx, msg.ID, "team-2")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.ListScheduledMessages(ctx, "team-2", domain.ScheduledMessageFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestMongoStore_DueScanAndUpdate verifies the dispatcher's read/write path
func TestMongoStore_DueScanAndUpdate(t *testing.T) {
	client := setupTestMongoDB(t)
	defer teardownTestMongoDB(t, client)

	store := NewMongoStore(client)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	due := &domain.ScheduledMessage{TeamID: "team-1", PhoneNumber: "+1", Message: "due", NextRun: now.Add(-time.Minute), Status: domain.ScheduledStatusPending}
	later := &domain.ScheduledMessage{TeamID: "team-1", PhoneNumber: "+1", Message: "later", NextRun: now.Add(time.Hour), Status: domain.ScheduledStatusPending}
	require.NoError(t, store.CreateScheduledMessage(ctx, due))
	require.NoError(t, store.CreateScheduledMessage(ctx, later))

	list, err := store.ListDueScheduledMessages(ctx, now)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, due.ID, list[0].ID)

	sent := domain.ScheduledStatusSent
	require.NoError(t, store.UpdateScheduledMessage(ctx, due.ID, domain.ScheduledMessageUpdate{Status: &sent}))
	require.NoError(t, store.AppendScheduledMessageLog(ctx, &domain.ScheduledMessageLog{ScheduledMessageID: due.ID, Status: domain.DispatchSuccess}))

	list, err = store.ListDueScheduledMessages(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, list)

	logs, err := store.ListScheduledMessageLogs(ctx, due.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	assert.ErrorIs(t, store.UpdateScheduledMessage(ctx, "missing", domain.ScheduledMessageUpdate{Status: &sent}), ErrNotFound)

	pending := domain.ScheduledStatusPending
	err = store.UpdateScheduledMessage(ctx, due.ID, domain.ScheduledMessageUpdate{ExpectStatus: &pending, Status: &pending})
	assert.ErrorIs(t, err, ErrStatusChanged)
	assert.ErrorIs(t, store.UpdateScheduledMessage(ctx, "missing", domain.ScheduledMessageUpdate{ExpectStatus: &pending, Status: &sent}), ErrNotFound)
}

// TestMongoStore_WebhookLookup verifies fan-out selection by team, active flag and event
func TestMongoStore_WebhookLookup(t *testing.T) {
	client := setupTestMongoDB(t)
	defer teardownTestMongoDB(t, client)

	store := NewMongoStore(client)
	ctx := context.Background()

	active := &domain.Webhook{TeamID: "team-1", Name: "a", URL: "https://a.example.com", Events: []domain.EventType{domain.EventMessageReceived}, Active: true}
	inactive := &domain.Webhook{TeamID: "team-1", Name: "b", URL: "https://b.example.com", Events: []domain.EventType{domain.EventMessageReceived}, Active: false}
	other := &domain.Webhook{TeamID: "team-2", Name: "c", URL: "https://c.example.com", Events: []domain.EventType{domain.EventMessageReceived}, Active: true}
	for _, w := range []*domain.Webhook{active, inactive, other} {
		require.NoError(t, store.CreateWebhook(ctx, w))
	}

	hooks, err := store.ListActiveWebhooksForEvent(ctx, "team-1", domain.EventMessageReceived)
	require.NoError(t, err)
	require.Len(t, hooks, 1)
	assert.Equal(t, active.ID, hooks[0].ID)

	hooks, err = store.ListActiveWebhooksForEvent(ctx, "team-1", domain.EventMessageSent)
	require.NoError(t, err)
	assert.Empty(t, hooks)

	name := "renamed"
	updated, err := store.UpdateWebhook(ctx, active.ID, domain.WebhookUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)

	require.NoError(t, store.AppendWebhookLog(ctx, &domain.WebhookLog{WebhookID: active.ID, EventType: domain.EventMessageReceived, Success: true}))
	require.NoError(t, store.DeleteWebhook(ctx, active.ID))
	_, err = store.GetWebhook(ctx, active.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	logs, err := store.ListWebhookLogs(ctx, active.ID, 0)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

// TestMongoStore_ChannelCredentials verifies settings upsert
func TestMongoStore_ChannelCredentials(t *testing.T) {
	client := setupTestMongoDB(t)
	defer teardownTestMongoDB(t, client)

	store := NewMongoStore(client)
	ctx := context.Background()

	_, err := store.GetChannelCredentials(ctx, "team-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveChannelCredentials(ctx, "team-1", domain.ChannelCredentials{EncryptedAPIKey: "v1", Passphrase: "p"}))
	require.NoError(t, store.SaveChannelCredentials(ctx, "team-1", domain.ChannelCredentials{EncryptedAPIKey: "v2", Passphrase: "p"}))

	creds, err := store.GetChannelCredentials(ctx, "team-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", creds.EncryptedAPIKey)
}

// ============= Test Helpers =============

// setupTestMongoDB connects to the database named by MONGODB_TEST_URI or skips the test
func setupTestMongoDB(t *testing.T) *mongodb.MongoClient {
	// export MONGODB_TEST_URI="mongodb://localhost:27017"
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("Requires MongoDB connection - set MONGODB_TEST_URI to run")
	}

	client, err := mongodb.NewMongoClient(uri, "whatsapp_automation_test")
	require.NoError(t, err, "Failed to connect to test MongoDB")

	return client
}

// teardownTestMongoDB cleans up test database
func teardownTestMongoDB(t *testing.T, client *mongodb.MongoClient) {
	ctx := context.Background()

	collections := []string{
		scheduledMessagesCollection,
		scheduledMessageLogsCollection,
		webhooksCollection,
		webhookLogsCollection,
		settingsCollection,
	}

	for _, coll := range collections {
		if err := client.Collection(coll).Drop(ctx); err != nil {
			t.Logf("Warning: Failed to drop collection %s: %v", coll, err)
		}
	}

	client.Disconnect(ctx)
}
