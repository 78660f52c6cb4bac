package storage

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Expiry    time.Duration
}

// MinioResolver resolves lab-report object keys to presigned GET URLs.
type MinioResolver struct {
	client *minio.Client
	bucket string
	expiry time.Duration
}

func NewMinio(cfg Config) (*MinioResolver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize object storage client: %w", err)
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}
	return &MinioResolver{
		client: client,
		bucket: cfg.Bucket,
		expiry: expiry,
	}, nil
}

func (r *MinioResolver) Presign(ctx context.Context, key string) (string, error) {
	signed, err := r.client.PresignedGetObject(ctx, r.bucket, key, r.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return signed.String(), nil
}
