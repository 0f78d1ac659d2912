package preview

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/electronjoe/DamageReview/internal/config"
	"github.com/electronjoe/DamageReview/internal/ingest"
)

// MinIO uploads each photo to a bucket and hands out presigned GET URLs.
type MinIO struct {
	client *minio.Client
	bucket string
	prefix string
	expiry time.Duration
}

// NewMinIO connects to the configured endpoint and creates the bucket if needed.
func NewMinIO(ctx context.Context, cfg config.Preview) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Printf("Created MinIO bucket: %s", cfg.Bucket)
	}

	return &MinIO{client: client, bucket: cfg.Bucket, expiry: cfg.Expiry()}, nil
}

// ForBatch returns a publisher storing objects under batchID.
func (m *MinIO) ForBatch(batchID string) *MinIO {
	cp := *m
	cp.prefix = batchID
	return &cp
}

func (m *MinIO) Publish(ctx context.Context, up ingest.Upload) (string, error) {
	rc, err := up.File.Open()
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	object := ObjectName(m.prefix, up.Path)
	_, err = m.client.PutObject(ctx, m.bucket, object, rc, -1, minio.PutObjectOptions{
		ContentType: up.MIMEType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", object, err)
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, object, m.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", object, err)
	}
	return u.String(), nil
}

// ObjectName drops the upload's root folder and places the rest under prefix.
func ObjectName(prefix, relPath string) string {
	parts := strings.Split(relPath, "/")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return path.Join(prefix, path.Join(parts...))
}
