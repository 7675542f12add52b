package middleware

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/aihub/jobboard-ai/internal/config"
)

const defaultResumeBucket = "resumes"

// MinIOService serves resume objects referenced as minio://bucket/key.
type MinIOService struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewMinIOService builds the client. Call EnsureBucket before uploading.
func NewMinIOService(cfg config.ObjectStorageConfig, logger *zap.Logger) (*MinIOService, error) {
	if cfg.Provider != "minio" && cfg.Provider != "s3" {
		return nil, fmt.Errorf("object storage provider is not minio/s3")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = defaultResumeBucket
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// minio.New wants host:port without a scheme
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOService{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.Named("minio"),
	}, nil
}

func (s *MinIOService) GetClient() *minio.Client {
	return s.client
}

func (s *MinIOService) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the resume bucket, retrying while MinIO starts up.
func (s *MinIOService) EnsureBucket(ctx context.Context, attempts int) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err == nil && exists {
			return nil
		}
		if err == nil {
			err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
			if err == nil {
				s.logger.Info("Created MinIO bucket", zap.String("bucket", s.bucket))
				return nil
			}
			code := minio.ToErrorResponse(err).Code
			if code == "BucketAlreadyExists" || code == "BucketAlreadyOwnedByYou" {
				return nil
			}
		}
		lastErr = err

		if i < attempts-1 {
			wait := time.Second * time.Duration((i+1)*2)
			s.logger.Warn("MinIO bucket check failed, retrying",
				zap.Int("attempt", i+1), zap.Duration("wait", wait), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("failed to ensure bucket %s: %w", s.bucket, lastErr)
}

// HealthCheck verifies the resume bucket is reachable.
func (s *MinIOService) HealthCheck(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

// Open returns the object body. The object is stat'ed first so a missing
// key fails here rather than on the first Read.
func (s *MinIOService) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if bucket == "" {
		bucket = s.bucket
	}
	object, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	if _, err := object.Stat(); err != nil {
		object.Close()
		return nil, fmt.Errorf("stat object %s/%s: %w", bucket, key, err)
	}
	return object, nil
}

// UploadResume stores a resume and returns its minio:// reference.
func (s *MinIOService) UploadResume(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload resume %s: %w", key, err)
	}
	return fmt.Sprintf("minio://%s/%s", s.bucket, key), nil
}

// PresignedURL returns a time-limited http(s) link to a resume.
func (s *MinIOService) PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if expires == 0 {
		expires = 24 * time.Hour
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, expires, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *MinIOService) FileExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
