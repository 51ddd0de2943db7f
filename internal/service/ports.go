package service

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"crm-pipeline-api/internal/client"
)

// S3Client is the object storage used for deal files.
// client.S3Client and client.MockS3Client implement it.
type S3Client interface {
	GenerateFileKey(dealID uuid.UUID, filename string) string
	UploadFile(ctx context.Context, key string, file io.Reader, contentType string) (string, error)
	DeleteFile(ctx context.Context, key string) error
	GeneratePresignedDownloadURL(ctx context.Context, key, filename string, expires time.Duration) (string, error)
}

var (
	_ S3Client = (*client.S3Client)(nil)
	_ S3Client = (*client.MockS3Client)(nil)
)

// Live board event types
const (
	EventDealMoved      = "deal_moved"
	EventDealClosed     = "deal_closed"
	EventBoardReordered = "board_reordered"
	EventDealChanged    = "deal_changed"
)

// BoardPublisher pushes live updates to connected board clients
type BoardPublisher interface {
	Publish(eventType string, payload interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}
