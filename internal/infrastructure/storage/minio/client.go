package minio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/DexAtlas/internal/config"
	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// MinIOAPI is the subset of *minio.Client the publisher calls.
type MinIOAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// MinIOClient wraps an S3-compatible client bound to the release bucket.
type MinIOClient struct {
	client MinIOAPI
	config config.MinIOConfig
	logger logging.Logger
}

// NewMinIOClient connects to the configured endpoint and makes sure the
// release bucket exists.
func NewMinIOClient(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*MinIOClient, error) {
	if log == nil {
		panic("minio: logger is required")
	}
	applyDefaults(&cfg)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeObjectStoreError, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	c := NewMinIOClientWithAPI(client, cfg, log)
	if err := c.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Info("MinIO client connected", logging.String("endpoint", cfg.Endpoint), logging.Bool("ssl", cfg.UseSSL))
	return c, nil
}

// NewMinIOClientWithAPI binds an existing API implementation.
func NewMinIOClientWithAPI(api MinIOAPI, cfg config.MinIOConfig, log logging.Logger) *MinIOClient {
	if log == nil {
		panic("minio: logger is required")
	}
	applyDefaults(&cfg)
	return &MinIOClient{client: api, config: cfg, logger: log}
}

func applyDefaults(cfg *config.MinIOConfig) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "dexatlas-releases"
	}
}

// Bucket returns the release bucket name.
func (c *MinIOClient) Bucket() string { return c.config.Bucket }

// EnsureBucket creates the release bucket when it does not exist.
func (c *MinIOClient) EnsureBucket(ctx context.Context) error {
	bucket := c.config.Bucket
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeObjectStoreError, "failed to check bucket existence")
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return errors.Wrap(err, errors.ErrCodeObjectStoreError, fmt.Sprintf("failed to create bucket %s", bucket))
	}
	c.logger.Info("Created bucket", logging.String("bucket", bucket))
	return nil
}

type HealthStatus struct {
	Healthy      bool
	Latency      time.Duration
	BucketExists bool
	Error        string
}

func (c *MinIOClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	_, err := c.client.ListBuckets(ctx)
	status := &HealthStatus{Healthy: err == nil, Latency: time.Since(start)}
	if err != nil {
		status.Error = err.Error()
		return status, errors.Wrap(err, errors.ErrCodeObjectStoreError, "minio unreachable")
	}
	exists, err := c.client.BucketExists(ctx, c.config.Bucket)
	if err != nil {
		status.Healthy = false
		status.Error = err.Error()
		return status, errors.Wrap(err, errors.ErrCodeObjectStoreError, "failed to check bucket existence")
	}
	status.BucketExists = exists
	if !exists {
		status.Healthy = false
		status.Error = fmt.Sprintf("bucket %s missing", c.config.Bucket)
	}
	return status, nil
}

//Personal.AI order the ending
