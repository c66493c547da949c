package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/domain"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/repository"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/errors"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/shared/logger"
	"github.com/vhvplatform/go-whatsapp-automation-service/internal/webhook"
)

type receivedRequest struct {
	Header http.Header
	Body   []byte
}

// receiver records every request and answers with status/body
type receiver struct {
	mu       sync.Mutex
	requests []receivedRequest
	status   int
	body     string
	server   *httptest.Server
}

func newReceiver(t *testing.T, status int, body string) *receiver {
	t.Helper()
	r := &receiver{status: status, body: body}
	r.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.requests = append(r.requests, receivedRequest{Header: req.Header.Clone(), Body: b})
		r.mu.Unlock()
		w.WriteHeader(r.status)
		_, _ = w.Write([]byte(r.body))
	}))
	t.Cleanup(r.server.Close)
	return r
}

func (r *receiver) received() []receivedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]receivedRequest(nil), r.requests...)
}

func newWebhookService(t *testing.T) (*WebhookService, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	svc := NewWebhookService(store, WebhookConfig{Workers: 2, QueueSize: 10, Timeout: 2 * time.Second}, logger.NewNop())
	svc.Start()
	t.Cleanup(svc.Stop)
	return svc, store
}

func createWebhook(t *testing.T, svc *WebhookService, url, secret string, events ...domain.EventType) *domain.Webhook {
	t.Helper()
	w, err := svc.CreateWebhook(context.Background(), &domain.CreateWebhookRequest{
		TeamID: "team-1",
		Name:   "hook",
		URL:    url,
		Events: events,
		Secret: secret,
	})
	require.NoError(t, err)
	return w
}

func logsFor(t *testing.T, store *repository.MemoryStore, id string) []*domain.WebhookLog {
	t.Helper()
	logs, err := store.ListWebhookLogs(context.Background(), id, 0)
	require.NoError(t, err)
	return logs
}

func TestCreateWebhook_Validation(t *testing.T) {
	svc, _ := newWebhookService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     domain.CreateWebhookRequest
		wantMsg string
	}{
		{"invalid url", domain.CreateWebhookRequest{TeamID: "t", Name: "n", URL: "not a url", Events: []domain.EventType{domain.EventMessageSent}}, "Invalid URL"},
		{"relative url", domain.CreateWebhookRequest{TeamID: "t", Name: "n", URL: "/hooks", Events: []domain.EventType{domain.EventMessageSent}}, "Invalid URL"},
		{"ftp url", domain.CreateWebhookRequest{TeamID: "t", Name: "n", URL: "ftp://example.com", Events: []domain.EventType{domain.EventMessageSent}}, "Invalid URL"},
		{"no events", domain.CreateWebhookRequest{TeamID: "t", Name: "n", URL: "https://example.com"}, "At least one event is required"},
		{"invalid events", domain.CreateWebhookRequest{TeamID: "t", Name: "n", URL: "https://example.com", Events: []domain.EventType{"a", domain.EventMessageSent, "b"}}, "Invalid events: a, b"},
		{"missing name", domain.CreateWebhookRequest{TeamID: "t", URL: "https://example.com", Events: []domain.EventType{domain.EventMessageSent}}, "Name is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateWebhook(ctx, &tt.req)
			require.Error(t, err)
			appErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.CodeValidation, appErr.Code)
			assert.Equal(t, tt.wantMsg, appErr.Message)
		})
	}
}

func TestCreateWebhook_DefaultsActive(t *testing.T) {
	svc, _ := newWebhookService(t)

	w := createWebhook(t, svc, "https://example.com/hook", "", domain.EventMessageReceived)
	assert.True(t, w.Active)
	assert.NotEmpty(t, w.ID)
}

// Two webhooks subscribed to the same event each get exactly one delivery
func TestTrigger_FansOutToSubscribers(t *testing.T) {
	svc, store := newWebhookService(t)
	r1 := newReceiver(t, http.StatusOK, "ok")
	r2 := newReceiver(t, http.StatusOK, "ok")

	w1 := createWebhook(t, svc, r1.server.URL, "", domain.EventContactCreated)
	w2 := createWebhook(t, svc, r2.server.URL, "", domain.EventContactCreated, domain.EventTemplateUsed)

	n, err := svc.Trigger(context.Background(), "team-1", domain.EventContactCreated, map[string]any{"contact_id": "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	svc.Stop()

	for _, w := range []*domain.Webhook{w1, w2} {
		logs := logsFor(t, store, w.ID)
		require.Len(t, logs, 1)
		assert.Equal(t, domain.EventContactCreated, logs[0].EventType)
		assert.True(t, logs[0].Success)
	}
	assert.Len(t, r1.received(), 1)
	assert.Len(t, r2.received(), 1)
}

func TestTrigger_FiltersByEventActiveAndTeam(t *testing.T) {
	svc, store := newWebhookService(t)
	r := newReceiver(t, http.StatusOK, "")
	ctx := context.Background()

	subscribed := createWebhook(t, svc, r.server.URL, "", domain.EventMessageReceived)
	inactive := createWebhook(t, svc, r.server.URL, "", domain.EventMessageReceived, domain.EventMessageSent)
	off := false
	_, err := svc.UpdateWebhook(ctx, inactive.ID, "team-1", &domain.UpdateWebhookRequest{Active: &off})
	require.NoError(t, err)

	n, err := svc.Trigger(ctx, "team-1", domain.EventMessageSent, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = svc.Trigger(ctx, "team-2", domain.EventMessageReceived, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = svc.Trigger(ctx, "team-1", domain.EventMessageReceived, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	svc.Stop()

	assert.Len(t, logsFor(t, store, subscribed.ID), 1)
	assert.Empty(t, logsFor(t, store, inactive.ID))
}

func TestTrigger_RejectsUnknownEvent(t *testing.T) {
	svc, _ := newWebhookService(t)

	_, err := svc.Trigger(context.Background(), "team-1", "message.deleted", nil)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	_, err = svc.Trigger(context.Background(), "team-1", domain.EventTest, nil)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestTrigger_DropsWhenQueueFull(t *testing.T) {
	store := repository.NewMemoryStore()
	// never started, so nothing drains the queue
	svc := NewWebhookService(store, WebhookConfig{Workers: 1, QueueSize: 1}, logger.NewNop())
	r := newReceiver(t, http.StatusOK, "")

	createWebhook(t, svc, r.server.URL, "", domain.EventMessageSent)
	createWebhook(t, svc, r.server.URL, "", domain.EventMessageSent)

	n, err := svc.Trigger(context.Background(), "team-1", domain.EventMessageSent, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	svc.Stop()
	assert.Len(t, r.received(), 1)
}

func TestDelivery_SignedEnvelopeAndHeaders(t *testing.T) {
	svc, store := newWebhookService(t)
	r := newReceiver(t, http.StatusAccepted, "thanks")

	w := createWebhook(t, svc, r.server.URL, "s3cr3t", domain.EventMessageReceived)

	before := time.Now().UnixMilli()
	_, err := svc.Trigger(context.Background(), "team-1", domain.EventMessageReceived, map[string]any{"from": "+1"})
	require.NoError(t, err)
	svc.Stop()

	reqs := r.received()
	require.Len(t, reqs, 1)
	req := reqs[0]

	var envelope domain.WebhookEnvelope
	require.NoError(t, json.Unmarshal(req.Body, &envelope))
	assert.Equal(t, domain.EventMessageReceived, envelope.Event)
	assert.Len(t, envelope.ID, 36)
	assert.Equal(t, map[string]any{"from": "+1"}, envelope.Data)

	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, string(domain.EventMessageReceived), req.Header.Get(webhook.HeaderEvent))
	assert.Equal(t, envelope.ID, req.Header.Get(webhook.HeaderID))
	assert.Equal(t, envelope.Timestamp, req.Header.Get(webhook.HeaderTimestamp))
	assert.True(t, webhook.Verify(req.Body, "s3cr3t", req.Header.Get(webhook.HeaderSignature)))

	assert.Regexp(t, `^\d{13}$`, envelope.Timestamp)
	ms, err := strconv.ParseInt(envelope.Timestamp, 10, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ms, before)

	logs := logsFor(t, store, w.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, string(req.Body), logs[0].Payload, "log keeps the exact bytes sent")
	require.NotNil(t, logs[0].ResponseStatus)
	assert.Equal(t, http.StatusAccepted, *logs[0].ResponseStatus)
	assert.Equal(t, "thanks", *logs[0].ResponseBody)
	assert.Nil(t, logs[0].Error)
}

func TestDelivery_UnsignedWithoutSecret(t *testing.T) {
	svc, _ := newWebhookService(t)
	r := newReceiver(t, http.StatusOK, "")

	createWebhook(t, svc, r.server.URL, "", domain.EventTemplateUsed)
	_, err := svc.Trigger(context.Background(), "team-1", domain.EventTemplateUsed, nil)
	require.NoError(t, err)
	svc.Stop()

	reqs := r.received()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Header, webhook.HeaderSignature)
	assert.Empty(t, reqs[0].Header.Get(webhook.HeaderSignature))
}

func TestDelivery_Non2xxIsLoggedAsFailure(t *testing.T) {
	svc, store := newWebhookService(t)
	r := newReceiver(t, http.StatusInternalServerError, "boom")

	w := createWebhook(t, svc, r.server.URL, "", domain.EventContactUpdated)
	_, err := svc.Trigger(context.Background(), "team-1", domain.EventContactUpdated, nil)
	require.NoError(t, err)
	svc.Stop()

	logs := logsFor(t, store, w.ID)
	require.Len(t, logs, 1)
	assert.False(t, logs[0].Success)
	require.NotNil(t, logs[0].Error)
	assert.Equal(t, "HTTP 500: boom", *logs[0].Error)
	assert.Equal(t, http.StatusInternalServerError, *logs[0].ResponseStatus)
}

func TestDelivery_ResponseBodyIsCapped(t *testing.T) {
	svc, store := newWebhookService(t)
	r := newReceiver(t, http.StatusOK, strings.Repeat("x", maxResponseBody+100))

	w := createWebhook(t, svc, r.server.URL, "", domain.EventMessageSent)
	_, err := svc.Trigger(context.Background(), "team-1", domain.EventMessageSent, nil)
	require.NoError(t, err)
	svc.Stop()

	logs := logsFor(t, store, w.ID)
	require.Len(t, logs, 1)
	assert.Len(t, *logs[0].ResponseBody, maxResponseBody)
}

// Testing an unreachable webhook records a failed log without returning an error
func TestTestWebhook_UnreachableURL(t *testing.T) {
	svc, store := newWebhookService(t)

	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	w := createWebhook(t, svc, url, "", domain.EventMessageSent)

	entry, err := svc.TestWebhook(context.Background(), w.ID, "team-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.False(t, entry.Success)
	require.NotNil(t, entry.Error)
	assert.NotEmpty(t, *entry.Error)
	assert.Nil(t, entry.ResponseStatus)

	logs := logsFor(t, store, w.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.EventTest, logs[0].EventType)
	assert.False(t, logs[0].Success)
	assert.NotNil(t, logs[0].Error)
}

func TestTestWebhook_Payload(t *testing.T) {
	svc, _ := newWebhookService(t)
	r := newReceiver(t, http.StatusOK, "ok")
	w := createWebhook(t, svc, r.server.URL, "k", domain.EventMessageSent)

	entry, err := svc.TestWebhook(context.Background(), w.ID, "team-1")
	require.NoError(t, err)
	assert.True(t, entry.Success)

	reqs := r.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, "test", reqs[0].Header.Get(webhook.HeaderEvent))

	var envelope struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(reqs[0].Body, &envelope))
	assert.Equal(t, "test", envelope.Event)
	assert.Equal(t, true, envelope.Data["test"])
	assert.Equal(t, "This is a test webhook event", envelope.Data["message"])
	assert.NotEmpty(t, envelope.Data["timestamp"])
}

func TestTestWebhook_NotFound(t *testing.T) {
	svc, _ := newWebhookService(t)
	w := createWebhook(t, svc, "https://example.com", "", domain.EventMessageSent)

	_, err := svc.TestWebhook(context.Background(), "missing", "team-1")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	_, err = svc.TestWebhook(context.Background(), w.ID, "team-2")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestUpdateAndDeleteWebhook(t *testing.T) {
	svc, _ := newWebhookService(t)
	ctx := context.Background()
	w := createWebhook(t, svc, "https://example.com", "", domain.EventMessageSent)

	bad := "::bad::"
	_, err := svc.UpdateWebhook(ctx, w.ID, "team-1", &domain.UpdateWebhookRequest{URL: &bad})
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	events := []domain.EventType{"contact.merged"}
	_, err = svc.UpdateWebhook(ctx, w.ID, "team-1", &domain.UpdateWebhookRequest{Events: &events})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid events: contact.merged")

	name := "renamed"
	updated, err := svc.UpdateWebhook(ctx, w.ID, "team-1", &domain.UpdateWebhookRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, []domain.EventType{domain.EventMessageSent}, updated.Events)

	assert.True(t, errors.HasCode(svc.DeleteWebhook(ctx, w.ID, "team-2"), errors.CodeNotFound))
	require.NoError(t, svc.DeleteWebhook(ctx, w.ID, "team-1"))

	list, err := svc.ListWebhooks(ctx, "team-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListWebhookLogs_LimitClamped(t *testing.T) {
	svc, store := newWebhookService(t)
	ctx := context.Background()
	w := createWebhook(t, svc, "https://example.com", "", domain.EventMessageSent)

	for i := 0; i < maxListLimit+5; i++ {
		require.NoError(t, store.AppendWebhookLog(ctx, &domain.WebhookLog{WebhookID: w.ID, EventType: domain.EventMessageSent}))
	}

	logs, err := svc.ListWebhookLogs(ctx, w.ID, "team-1", 0)
	require.NoError(t, err)
	assert.Len(t, logs, defaultListLimit)

	logs, err = svc.ListWebhookLogs(ctx, w.ID, "team-1", 1000)
	require.NoError(t, err)
	assert.Len(t, logs, maxListLimit)
}

func TestPublish_TriggersTeamWebhooks(t *testing.T) {
	svc, _ := newWebhookService(t)
	r := newReceiver(t, http.StatusOK, "")
	createWebhook(t, svc, r.server.URL, "", domain.EventMessageSent)

	err := svc.Publish(context.Background(), domain.Event{
		Type:   domain.EventMessageSent,
		TeamID: "team-1",
		Data:   map[string]any{"scheduled_message_id": "m-1"},
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(r.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, string(r.received()[0].Body), `"scheduled_message_id":"m-1"`)
}

func TestTestWebhook_RunsAheadOfQueuedFanOut(t *testing.T) {
	svc := NewWebhookService(repository.NewMemoryStore(), WebhookConfig{Workers: 1, QueueSize: 10, Timeout: 2 * time.Second}, logger.NewNop())
	t.Cleanup(svc.Stop)
	r := newReceiver(t, http.StatusOK, "")
	w := createWebhook(t, svc, r.server.URL, "", domain.EventContactCreated)

	n, err := svc.Trigger(context.Background(), "team-1", domain.EventContactCreated, map[string]any{"contact_id": "c-1"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	result := make(chan *domain.WebhookLog, 1)
	go func() {
		entry, err := svc.TestWebhook(context.Background(), w.ID, "team-1")
		assert.NoError(t, err)
		result <- entry
	}()

	// both jobs are queued before any worker runs
	require.Eventually(t, func() bool { return svc.queue.Len() == 2 }, time.Second, 5*time.Millisecond)
	svc.Start()

	select {
	case entry := <-result:
		require.NotNil(t, entry)
		assert.True(t, entry.Success)
	case <-time.After(3 * time.Second):
		t.Fatal("test delivery did not complete")
	}

	require.Eventually(t, func() bool { return len(r.received()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "test", r.received()[0].Header.Get(webhook.HeaderEvent))
	assert.Equal(t, "contact.created", r.received()[1].Header.Get(webhook.HeaderEvent))
}

func TestTestWebhook_StoppedService(t *testing.T) {
	svc, _ := newWebhookService(t)
	w := createWebhook(t, svc, "https://example.com", "", domain.EventMessageSent)
	svc.Stop()

	entry, err := svc.TestWebhook(context.Background(), w.ID, "team-1")
	assert.Nil(t, entry)
	assert.True(t, errors.HasCode(err, errors.CodeInternal))
}

func TestTestWebhook_ContextCancelled(t *testing.T) {
	svc := NewWebhookService(repository.NewMemoryStore(), WebhookConfig{Workers: 1, QueueSize: 10, Timeout: time.Second}, logger.NewNop())
	t.Cleanup(svc.Stop)
	r := newReceiver(t, http.StatusOK, "")
	w := createWebhook(t, svc, r.server.URL, "", domain.EventMessageSent)

	// no workers are running, so the caller gives up first
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := svc.TestWebhook(ctx, w.ID, "team-1")
	assert.True(t, errors.HasCode(err, errors.CodeInternal))
}
