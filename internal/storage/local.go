package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vidcms/backend/internal/models"
)

// LocalStorage keeps objects under a directory and serves them from a public URL prefix.
type LocalStorage struct {
	root    string
	baseURL string
}

// NewLocalStorage creates root if needed.
func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("local storage: root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: create root: %w", err)
	}
	if baseURL == "" {
		baseURL = "/media"
	}
	return &LocalStorage{root: abs, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save writes r to key atomically.
func (l *LocalStorage) Save(_ context.Context, key string, r io.Reader, contentType string) (Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return Object{}, err
	}
	dest := l.path(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Object{}, fmt.Errorf("local storage: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return Object{}, fmt.Errorf("local storage: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Object{}, fmt.Errorf("local storage: write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return Object{}, fmt.Errorf("local storage: move %s: %w", key, err)
	}

	return Object{
		Key:          key,
		URL:          l.URL(key),
		Size:         size,
		ContentType:  contentType,
		LastModified: time.Now().UTC(),
	}, nil
}

// Delete removes key. Deleting a missing object is not an error.
func (l *LocalStorage) Delete(_ context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(l.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("local storage: delete %s: %w", key, err)
	}
	return nil
}

// List returns every object whose key starts with prefix, sorted by key.
func (l *LocalStorage) List(_ context.Context, prefix string) ([]Object, error) {
	prefix = strings.TrimLeft(strings.ReplaceAll(prefix, "\\", "/"), "/")
	if strings.Contains(prefix, "..") {
		return nil, ErrInvalidKey
	}

	var objects []Object
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, Object{
			Key:          key,
			URL:          l.URL(key),
			Size:         info.Size(),
			ContentType:  mime.TypeByExtension(filepath.Ext(key)),
			LastModified: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("local storage: list %q: %w", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// SignedURL returns the public URL; local objects are served without signatures.
func (l *LocalStorage) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(l.path(key)); err != nil {
		return "", fmt.Errorf("local storage: stat %s: %w", key, err)
	}
	return l.URL(key), nil
}

// URL returns the public location of key.
func (l *LocalStorage) URL(key string) string {
	return joinURL(l.baseURL, strings.TrimLeft(key, "/"))
}

// Type reports the storage type recorded on videos.
func (l *LocalStorage) Type() string { return models.StorageLocal }

// BaseURL is the public URL prefix objects are served from.
func (l *LocalStorage) BaseURL() string { return l.baseURL }

// Handler serves stored objects under BaseURL.
func (l *LocalStorage) Handler() http.Handler {
	return http.StripPrefix(l.baseURL+"/", http.FileServer(noListingFS{http.Dir(l.root)}))
}

func (l *LocalStorage) path(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// noListingFS hides directory indexes.
type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
