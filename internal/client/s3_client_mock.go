package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockS3Client keeps objects in memory for tests and local
// runs without object storage
type MockS3Client struct {
	Bucket   string
	Region   string
	Endpoint string

	// Optional function overrides for custom test behavior
	UploadFileFunc                   func(ctx context.Context, key string, file io.Reader, contentType string) (string, error)
	DeleteFileFunc                   func(ctx context.Context, key string) error
	GeneratePresignedDownloadURLFunc func(ctx context.Context, key, filename string, expires time.Duration) (string, error)

	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

// NewMockS3Client creates a new mock S3 client for testing
func NewMockS3Client() *MockS3Client {
	return &MockS3Client{
		Bucket:  "test-bucket",
		Region:  "us-east-1",
		objects: make(map[string][]byte),
	}
}

// GenerateFileKey uses the same layout as the real client
func (m *MockS3Client) GenerateFileKey(dealID uuid.UUID, filename string) string {
	return buildFileKey(dealID, filename)
}

// UploadFile stores the body in memory
func (m *MockS3Client) UploadFile(ctx context.Context, key string, file io.Reader, contentType string) (string, error) {
	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, key, file, contentType)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	m.mu.Lock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	m.mu.Unlock()
	return m.GetFileURL(key), nil
}

// DeleteFile removes the object and remembers the key
func (m *MockS3Client) DeleteFile(ctx context.Context, key string) error {
	if m.DeleteFileFunc != nil {
		return m.DeleteFileFunc(ctx, key)
	}

	m.mu.Lock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	m.mu.Unlock()
	return nil
}

// GeneratePresignedDownloadURL returns a URL shaped like a SigV4 presigned GET
func (m *MockS3Client) GeneratePresignedDownloadURL(ctx context.Context, key, filename string, expires time.Duration) (string, error) {
	if m.GeneratePresignedDownloadURLFunc != nil {
		return m.GeneratePresignedDownloadURLFunc(ctx, key, filename, expires)
	}

	now := time.Now().UTC()
	q := url.Values{}
	q.Set("X-Amz-Algorithm", "AWS4-HMAC-SHA256")
	q.Set("X-Amz-Credential", fmt.Sprintf("test-access-key/%s/%s/s3/aws4_request", now.Format("20060102"), m.Region))
	q.Set("X-Amz-Date", now.Format("20060102T150405Z"))
	q.Set("X-Amz-Expires", fmt.Sprintf("%d", int(expires.Seconds())))
	q.Set("X-Amz-SignedHeaders", "host")
	q.Set("X-Amz-Signature", "mocksignature123")
	if filename != "" {
		q.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	return m.GetFileURL(key) + "?" + q.Encode(), nil
}

// GetFileURL returns the public URL for a file
func (m *MockS3Client) GetFileURL(key string) string {
	if m.Endpoint != "" && !strings.Contains(m.Endpoint, "amazonaws.com") {
		return fmt.Sprintf("%s/%s/%s", m.Endpoint, m.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", m.Bucket, m.Region, key)
}

// Object returns a stored body
func (m *MockS3Client) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// ObjectCount is the number of stored objects
func (m *MockS3Client) ObjectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// DeletedKeys lists every key passed to DeleteFile, in call order
func (m *MockS3Client) DeletedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.deleted))
	copy(out, m.deleted)
	return out
}
