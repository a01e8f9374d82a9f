package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vidcms/backend/internal/config"
	"github.com/vidcms/backend/internal/models"
)

// MinioStorage stores objects in a MinIO bucket through the native client.
type MinioStorage struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

// NewMinioStorage connects to the endpoint in cfg. The endpoint may include a scheme, which
// then overrides cfg.UseSSL.
func NewMinioStorage(cfg config.ObjectStoreConfig) (*MinioStorage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("minio storage: bucket is required")
	}
	host, secure, err := minioEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio storage: connect %s: %w", host, err)
	}

	base := strings.TrimSuffix(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if base == "" || strings.HasPrefix(base, "/") {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, host, cfg.Bucket)
	}

	return &MinioStorage{client: client, bucket: cfg.Bucket, baseURL: base}, nil
}

func minioEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, errors.New("minio storage: endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return strings.TrimSuffix(raw, "/"), useSSL, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false, fmt.Errorf("minio storage: invalid endpoint %q", raw)
	}
	return u.Host, u.Scheme == "https", nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinioStorage) EnsureBucket(ctx context.Context, region string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("minio storage: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("minio storage: create bucket: %w", err)
	}
	return nil
}

// Save streams r into the bucket.
func (m *MinioStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return Object{}, err
	}
	info, err := m.client.PutObject(ctx, m.bucket, key, r, -1, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, fmt.Errorf("minio storage upload %s: %w", key, err)
	}
	return Object{
		Key:          key,
		URL:          m.URL(key),
		Size:         info.Size,
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
	}, nil
}

// Delete removes key from the bucket.
func (m *MinioStorage) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio storage delete %s: %w", key, err)
	}
	return nil
}

// List returns every object under prefix.
func (m *MinioStorage) List(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    strings.TrimLeft(prefix, "/"),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio storage list %q: %w", prefix, obj.Err)
		}
		objects = append(objects, Object{
			Key:          obj.Key,
			URL:          m.URL(obj.Key),
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified.UTC(),
		})
	}
	return objects, nil
}

// SignedURL presigns a GET request valid for ttl.
func (m *MinioStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("minio storage presign %s: %w", key, err)
	}
	return u.String(), nil
}

// URL returns the public location of key.
func (m *MinioStorage) URL(key string) string {
	return joinURL(m.baseURL, strings.TrimLeft(key, "/"))
}

// Type reports the storage type recorded on videos. MinIO speaks the S3 protocol.
func (m *MinioStorage) Type() string { return models.StorageS3 }
