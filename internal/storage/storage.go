// Package storage persists uploaded media on local disk or an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/vidcms/backend/internal/config"
)

// ErrInvalidKey indicates an object key that is empty or escapes the storage root.
var ErrInvalidKey = errors.New("invalid object key")

// Object describes a stored file.
type Object struct {
	Key          string    `json:"key"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// Storage is the contract shared by every backend.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	URL(key string) string
	Type() string
}

// New selects a backend according to cfg.Driver.
func New(ctx context.Context, cfg config.ObjectStoreConfig) (Storage, error) {
	switch cfg.Driver {
	case config.DriverLocal, "":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicBaseURL)
	case config.DriverS3:
		return NewS3Storage(ctx, cfg)
	case config.DriverMinio:
		m, err := NewMinioStorage(cfg)
		if err != nil {
			return nil, err
		}
		if err := m.EnsureBucket(ctx, cfg.Region); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}

// CleanKey normalises a key to a slash separated relative path and rejects traversal.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := strings.TrimLeft(path.Clean("/"+key), "/")
	if cleaned == "" || cleaned == "." {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// VideoKey builds the object key of an uploaded video.
func VideoKey(id, ext string) string {
	return fmt.Sprintf("videos/%s/source%s", id, strings.ToLower(ext))
}

// TranscodedKey builds the object key of a transcoded rendition.
func TranscodedKey(id string, height int) string {
	return fmt.Sprintf("videos/%s/%dp.mp4", id, height)
}

// ThumbnailKey builds the object key of a thumbnail image. ext defaults to ".jpg".
func ThumbnailKey(id, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	return fmt.Sprintf("thumbnails/%s%s", id, strings.ToLower(ext))
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
