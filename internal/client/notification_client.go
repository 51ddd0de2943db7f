package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crm-pipeline-api/internal/metrics"
)

type NotificationType string

const (
	NotificationDealAssigned NotificationType = "DEAL_ASSIGNED"
	NotificationCommentReply NotificationType = "COMMENT_REPLY"
)

// Resource types referenced by notifications
const (
	ResourceDeal    = "deal"
	ResourceComment = "comment"
)

const (
	notificationsPath     = "/api/internal/notifications"
	bulkNotificationsPath = "/api/internal/notifications/bulk"
)

// NotificationEvent is one message for the notification service
type NotificationEvent struct {
	Type         NotificationType       `json:"type"`
	ActorID      uuid.UUID              `json:"actorId"`
	TargetUserID uuid.UUID              `json:"targetUserId"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   uuid.UUID              `json:"resourceId"`
	ResourceName string                 `json:"resourceName,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt   string                 `json:"occurredAt,omitempty"`
}

type BulkNotificationRequest struct {
	Notifications []NotificationEvent `json:"notifications"`
}

// NotificationClient delivers deal assignment and comment reply events.
// Delivery is best effort: transport failures and non-2xx answers are logged
// and never returned to the caller.
type NotificationClient interface {
	SendNotification(ctx context.Context, event NotificationEvent) error
	SendBulkNotifications(ctx context.Context, events []NotificationEvent) error
}

type notificationClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewNotificationClient(baseURL string, apiKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) NotificationClient {
	return &notificationClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    m,
	}
}

func (c *notificationClient) SendNotification(ctx context.Context, event NotificationEvent) error {
	if event.OccurredAt == "" {
		event.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}

	return c.post(ctx, notificationsPath, event,
		zap.String("type", string(event.Type)),
		zap.String("target_user_id", event.TargetUserID.String()))
}

func (c *notificationClient) SendBulkNotifications(ctx context.Context, events []NotificationEvent) error {
	if len(events) == 0 {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range events {
		if events[i].OccurredAt == "" {
			events[i].OccurredAt = now
		}
	}

	return c.post(ctx, bulkNotificationsPath, BulkNotificationRequest{Notifications: events},
		zap.Int("count", len(events)))
}

// post sends body as JSON. Only encoding and request construction errors are
// returned; delivery problems are logged.
func (c *notificationClient) post(ctx context.Context, path string, body interface{}, fields ...zap.Field) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
		defer resp.Body.Close()
	}
	if c.metrics != nil {
		c.metrics.RecordExternalAPICall(url, http.MethodPost, statusCode, duration, err)
	}

	fields = append(fields, zap.String("path", path), zap.Duration("duration", duration))
	switch {
	case err != nil:
		c.logger.Error("Failed to reach notification service", append(fields, zap.Error(err))...)
	case statusCode < 200 || statusCode >= 300:
		c.logger.Warn("Notification service rejected request", append(fields, zap.Int("status_code", statusCode))...)
	default:
		c.logger.Debug("Notification delivered", fields...)
	}
	return nil
}

// NoOpNotificationClient drops every event. Used when notification.base_url
// is not configured.
type NoOpNotificationClient struct{}

func NewNoOpNotificationClient() NotificationClient {
	return &NoOpNotificationClient{}
}

func (c *NoOpNotificationClient) SendNotification(ctx context.Context, event NotificationEvent) error {
	return nil
}

func (c *NoOpNotificationClient) SendBulkNotifications(ctx context.Context, events []NotificationEvent) error {
	return nil
}
