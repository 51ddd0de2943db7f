package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	appConfig "crm-pipeline-api/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Client stores deal files in S3 or any S3 compatible store (MinIO)
type S3Client struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	region        string
	endpoint      string
	// publicHost replaces the endpoint host in presigned URLs handed to browsers
	publicHost    string
}

// NewS3Client validates cfg and builds the SDK client. Static keys are used
// when both are set; otherwise the default credential chain applies.
func NewS3Client(ctx context.Context, cfg *appConfig.S3Config) (*S3Client, error) {
	switch {
	case cfg.Bucket == "":
		return nil, fmt.Errorf("S3 bucket is required")
	case cfg.Region == "":
		return nil, fmt.Errorf("S3 region is required")
	case cfg.Endpoint != "" && (cfg.AccessKey == "" || cfg.SecretKey == ""):
		return nil, fmt.Errorf("access key and secret key are required for a custom endpoint")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	sdk := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		client:        sdk,
		presignClient: s3.NewPresignClient(sdk),
		bucket:        cfg.Bucket,
		region:        cfg.Region,
		endpoint:      strings.TrimSuffix(cfg.Endpoint, "/"),
		publicHost:    hostOf(cfg.PublicEndpoint),
	}, nil
}

func hostOf(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(endpoint, "/")
	}
	return u.Host
}

// GenerateFileKey generates a unique S3 file key
// Format: deals/{dealId}/files/{uuid}_{filename}
func (c *S3Client) GenerateFileKey(dealID uuid.UUID, filename string) string {
	return buildFileKey(dealID, filename)
}

func buildFileKey(dealID uuid.UUID, filename string) string {
	return fmt.Sprintf("deals/%s/files/%s_%s", dealID, uuid.New(), sanitizeFilename(filename))
}

// sanitizeFilename keeps the base name and replaces characters that are
// awkward in object keys
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20, r == '?', r == '#', r == '%', r == '"':
			return -1
		}
		return r
	}, name)
}

// UploadFile stores file under key and returns its unsigned URL
func (c *S3Client) UploadFile(ctx context.Context, key string, file io.Reader, contentType string) (string, error) {
	_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return c.GetFileURL(key), nil
}

// DeleteFile deletes a file from S3
func (c *S3Client) DeleteFile(ctx context.Context, key string) error {
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// GeneratePresignedDownloadURL signs a GET for key that downloads under the
// original filename
func (c *S3Client) GeneratePresignedDownloadURL(ctx context.Context, key, filename string, expires time.Duration) (string, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}
	if filename != "" {
		input.ResponseContentDisposition = aws.String(
			mime.FormatMediaType("attachment", map[string]string{"filename": filename}),
		)
	}

	presigned, err := c.presignClient.PresignGetObject(ctx, input, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	if c.publicHost == "" {
		return presigned.URL, nil
	}
	u, err := url.Parse(presigned.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse presigned URL: %w", err)
	}
	// The signature covers the host header, so the public host must resolve
	// to the same store.
	u.Host = c.publicHost
	return u.String(), nil
}

// GetFileURL returns the unsigned object URL
func (c *S3Client) GetFileURL(key string) string {
	if c.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", c.endpoint, c.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, key)
}
