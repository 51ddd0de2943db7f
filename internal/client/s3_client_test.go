package client

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crm-pipeline-api/internal/config"
)

func newTestS3Client(t *testing.T, endpoint string) *S3Client {
	t.Helper()
	return newS3ClientWith(t, &config.S3Config{Endpoint: endpoint})
}

func newS3ClientWith(t *testing.T, cfg *config.S3Config) *S3Client {
	t.Helper()
	cfg.Bucket = "test-bucket"
	cfg.Region = "us-east-1"
	cfg.AccessKey = "test-access-key"
	cfg.SecretKey = "test-secret-key"
	client, err := NewS3Client(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
	return client
}

func TestGenerateFileKey(t *testing.T) {
	client := newTestS3Client(t, "")
	dealID := uuid.New()

	tests := []struct {
		name     string
		filename string
		suffix   string
	}{
		{name: "plain name", filename: "estimate.pdf", suffix: "_estimate.pdf"},
		{name: "spaces replaced", filename: "site photo 1.jpg", suffix: "_site_photo_1.jpg"},
		{name: "directory stripped", filename: "../../etc/passwd.txt", suffix: "_passwd.txt"},
		{name: "windows path stripped", filename: `C:\docs\contract.docx`, suffix: "_contract.docx"},
		{name: "empty name", filename: "", suffix: "_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := client.GenerateFileKey(dealID, tt.filename)

			prefix := "deals/" + dealID.String() + "/files/"
			assert.True(t, strings.HasPrefix(key, prefix), "key %q should start with %q", key, prefix)
			assert.True(t, strings.HasSuffix(key, tt.suffix), "key %q should end with %q", key, tt.suffix)

			rest := strings.TrimPrefix(key, prefix)
			_, err := uuid.Parse(rest[:36])
			assert.NoError(t, err, "key should embed a uuid")
		})
	}
}

func TestGenerateFileKey_Uniqueness(t *testing.T) {
	client := newTestS3Client(t, "")
	dealID := uuid.New()

	keys := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key := client.GenerateFileKey(dealID, "estimate.pdf")
		assert.False(t, keys[key], "duplicate key generated: %s", key)
		keys[key] = true
	}
}

func TestGeneratePresignedDownloadURL(t *testing.T) {
	client := newTestS3Client(t, "")
	key := "deals/" + uuid.NewString() + "/files/" + uuid.NewString() + "_estimate.pdf"

	signed, err := client.GeneratePresignedDownloadURL(context.Background(), key, "estimate.pdf", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Contains(t, u.Host, "test-bucket")
	assert.Contains(t, u.Path, key)

	q := u.Query()
	assert.Equal(t, "AWS4-HMAC-SHA256", q.Get("X-Amz-Algorithm"))
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Contains(t, q.Get("response-content-disposition"), "estimate.pdf")
}

func TestGeneratePresignedDownloadURL_PathStyleEndpoint(t *testing.T) {
	client := newTestS3Client(t, "http://minio:9000")

	signed, err := client.GeneratePresignedDownloadURL(context.Background(), "deals/x/files/y_a.pdf", "", 5*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "minio:9000", u.Host)
	assert.True(t, strings.HasPrefix(u.Path, "/test-bucket/"), "path-style addressing expected, got %s", u.Path)
	assert.Equal(t, "300", u.Query().Get("X-Amz-Expires"))
}

func TestGeneratePresignedDownloadURL_PublicHost(t *testing.T) {
	client := newS3ClientWith(t, &config.S3Config{
		Endpoint:       "http://minio:9000",
		PublicEndpoint: "https://files.example.com/",
	})

	signed, err := client.GeneratePresignedDownloadURL(context.Background(), "deals/x/files/y_a.pdf", "a.pdf", time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "files.example.com", u.Host)
	assert.Equal(t, "http", u.Scheme)
	assert.True(t, strings.HasPrefix(u.Path, "/test-bucket/deals/x/files/"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestNewS3Client_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		cfg         *config.S3Config
		errContains string
	}{
		{
			name:        "Missing bucket",
			cfg:         &config.S3Config{Region: "us-east-1"},
			errContains: "bucket is required",
		},
		{
			name:        "Missing region",
			cfg:         &config.S3Config{Bucket: "test-bucket"},
			errContains: "region is required",
		},
		{
			name:        "MinIO endpoint without keys",
			cfg:         &config.S3Config{Bucket: "test-bucket", Region: "us-east-1", Endpoint: "http://localhost:9000"},
			errContains: "access key and secret key are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewS3Client(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Nil(t, client)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestGetFileURL(t *testing.T) {
	aws := newTestS3Client(t, "")
	assert.Equal(t, "https://test-bucket.s3.us-east-1.amazonaws.com/deals/a/files/b", aws.GetFileURL("deals/a/files/b"))

	minio := newTestS3Client(t, "http://localhost:9000/")
	assert.Equal(t, "http://localhost:9000/test-bucket/deals/a/files/b", minio.GetFileURL("deals/a/files/b"))
}

func TestGeneratePresignedDownloadURL_ConcurrentCalls(t *testing.T) {
	client := newTestS3Client(t, "")

	const workers = 10
	var wg sync.WaitGroup
	urls := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := client.GenerateFileKey(uuid.New(), "photo.jpg")
			urls[i], errs[i] = client.GeneratePresignedDownloadURL(context.Background(), key, "photo.jpg", time.Minute)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[urls[i]])
		seen[urls[i]] = true
	}
}

func TestMockS3Client_RoundTrip(t *testing.T) {
	mock := NewMockS3Client()
	dealID := uuid.New()
	key := mock.GenerateFileKey(dealID, "notes.txt")

	fileURL, err := mock.UploadFile(context.Background(), key, bytes.NewBufferString("hello"), "text/plain")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(fileURL, key))

	data, ok := mock.Object(key)
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))

	signed, err := mock.GeneratePresignedDownloadURL(context.Background(), key, "notes.txt", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, signed, "X-Amz-Expires=900")

	require.NoError(t, mock.DeleteFile(context.Background(), key))
	assert.Equal(t, 0, mock.ObjectCount())
	assert.Equal(t, []string{key}, mock.DeletedKeys())
}
