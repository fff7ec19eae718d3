package minio

import (
	"bytes"
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/DexAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DexAtlas/internal/infrastructure/storage/artifacts"
	"github.com/turtacn/DexAtlas/pkg/errors"
)

// ReleaseRepository stores published dataset artifacts under
// <prefix>/<run_id>/<file>.
type ReleaseRepository interface {
	Publish(ctx context.Context, runID, dir string, files []string) (*PublishResult, error)
	Exists(ctx context.Context, runID, name string) (bool, error)
	List(ctx context.Context, runID string) ([]*ObjectMetadata, error)
}

type UploadResult struct {
	Name      string `json:"name"`
	ObjectKey string `json:"object_key"`
	ETag      string `json:"etag"`
	Size      int64  `json:"size"`
	SHA256    string `json:"sha256"`
}

type PublishResult struct {
	Bucket      string          `json:"bucket"`
	Prefix      string          `json:"prefix"`
	RunID       string          `json:"run_id"`
	Objects     []*UploadResult `json:"objects"`
	PublishedAt time.Time       `json:"published_at"`
}

type ObjectMetadata struct {
	ObjectKey    string
	Size         int64
	ETag         string
	LastModified time.Time
}

type minioRepository struct {
	client *MinIOClient
	logger logging.Logger
}

func NewReleaseRepository(client *MinIOClient, log logging.Logger) ReleaseRepository {
	if log == nil {
		panic("minio: logger is required")
	}
	return &minioRepository{client: client, logger: log}
}

func (r *minioRepository) objectKey(runID, name string) string {
	return path.Join(strings.Trim(r.client.config.Prefix, "/"), runID, name)
}

// Publish uploads the named files from dir.  Each object carries its sha256
// as user metadata.  The first failed upload aborts the publish.
func (r *minioRepository) Publish(ctx context.Context, runID, dir string, files []string) (*PublishResult, error) {
	if runID == "" {
		return nil, errors.New(errors.ErrCodeBadRequest, "run id is required")
	}
	res := &PublishResult{
		Bucket: r.client.Bucket(),
		Prefix: r.objectKey(runID, ""),
		RunID:  runID,
	}
	for _, name := range files {
		p := filepath.Join(dir, name)
		data, err := os.ReadFile(p)
		if err != nil {
			return res, errors.Wrap(err, errors.ErrCodeArtifactMissing, "read "+p)
		}
		sum, err := artifacts.SHA256File(p)
		if err != nil {
			return res, err
		}
		key := r.objectKey(runID, name)
		opts := minio.PutObjectOptions{
			ContentType:  contentType(name),
			UserMetadata: map[string]string{"sha256": sum, "run-id": runID},
		}
		info, err := r.client.client.PutObject(ctx, r.client.Bucket(), key, bytes.NewReader(data), int64(len(data)), opts)
		if err != nil {
			return res, errors.Wrap(err, errors.ErrCodeObjectStoreError, "upload "+key)
		}
		res.Objects = append(res.Objects, &UploadResult{
			Name:      name,
			ObjectKey: key,
			ETag:      info.ETag,
			Size:      info.Size,
			SHA256:    sum,
		})
		r.logger.Debug("artifact uploaded", logging.String("object", key), logging.Int64("size", info.Size))
	}
	res.PublishedAt = time.Now().UTC()
	r.logger.Info("release published",
		logging.String("bucket", res.Bucket), logging.String("run_id", runID), logging.Int("objects", len(res.Objects)))
	return res, nil
}

func (r *minioRepository) Exists(ctx context.Context, runID, name string) (bool, error) {
	_, err := r.client.client.StatObject(ctx, r.client.Bucket(), r.objectKey(runID, name), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrCodeObjectStoreError, "stat object")
	}
	return true, nil
}

func (r *minioRepository) List(ctx context.Context, runID string) ([]*ObjectMetadata, error) {
	prefix := r.objectKey(runID, "") + "/"
	var out []*ObjectMetadata
	for obj := range r.client.client.ListObjects(ctx, r.client.Bucket(), minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, errors.Wrap(obj.Err, errors.ErrCodeObjectStoreError, "list objects")
		}
		out = append(out, &ObjectMetadata{
			ObjectKey: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObjectKey < out[j].ObjectKey })
	return out, nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".parquet":
		return "application/vnd.apache.parquet"
	default:
		return "application/octet-stream"
	}
}

//Personal.AI order the ending
