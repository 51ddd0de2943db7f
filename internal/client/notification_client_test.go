package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/metrics"
)

func TestNotificationClient_SendNotification(t *testing.T) {
	var received NotificationEvent
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/internal/notifications", r.URL.Path)
		apiKey = r.Header.Get("X-Internal-API-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	m := metrics.NewWithRegistry(prometheus.NewRegistry(), zap.NewNop())
	c := NewNotificationClient(server.URL, "secret", time.Second, zap.NewNop(), m)

	event := NotificationEvent{
		Type:         NotificationDealAssigned,
		ActorID:      uuid.New(),
		TargetUserID: uuid.New(),
		ResourceType: ResourceDeal,
		ResourceID:   uuid.New(),
		ResourceName: "Warehouse roof",
	}
	require.NoError(t, c.SendNotification(context.Background(), event))

	assert.Equal(t, "secret", apiKey)
	assert.Equal(t, NotificationDealAssigned, received.Type)
	assert.Equal(t, event.TargetUserID, received.TargetUserID)
	assert.NotEmpty(t, received.OccurredAt)
	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.ExternalAPIRequestsTotal.WithLabelValues("/api/internal/notifications", "POST", "202")))
}

func TestNotificationClient_DegradesGracefully(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewNotificationClient(server.URL, "", time.Second, zap.NewNop(), nil)

	err := c.SendNotification(context.Background(), NotificationEvent{Type: NotificationCommentReply})
	assert.NoError(t, err, "a failing notification service must not fail the caller")

	err = c.SendBulkNotifications(context.Background(), []NotificationEvent{
		{Type: NotificationDealAssigned},
		{Type: NotificationDealAssigned},
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNotificationClient_UnreachableService(t *testing.T) {
	c := NewNotificationClient("http://127.0.0.1:1", "", 100*time.Millisecond, zap.NewNop(), nil)
	assert.NoError(t, c.SendNotification(context.Background(), NotificationEvent{Type: NotificationDealAssigned}))
}

func TestNotificationClient_BulkEmptyIsNoop(t *testing.T) {
	c := NewNotificationClient("http://127.0.0.1:1", "", time.Second, zap.NewNop(), nil)
	assert.NoError(t, c.SendBulkNotifications(context.Background(), nil))
}

func TestNoOpNotificationClient(t *testing.T) {
	c := NewNoOpNotificationClient()
	assert.NoError(t, c.SendNotification(context.Background(), NotificationEvent{}))
	assert.NoError(t, c.SendBulkNotifications(context.Background(), []NotificationEvent{{}}))
}
