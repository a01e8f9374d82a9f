package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vidcms/backend/internal/ads"
	"github.com/vidcms/backend/internal/feed"
)

// Job names.
const (
	JobTrendingRefresh = "trending-refresh"
	JobSessionPurge    = "session-purge"
	JobAdsTxt          = "ads-txt"
)

// TrendingRefresher recomputes the cached trending list.
type TrendingRefresher interface {
	RefreshTrending(ctx context.Context) (feed.Trending, error)
}

// SessionPurger deletes expired refresh sessions.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// TrendingRefreshJob keeps the default trending cache warm.
func TrendingRefreshJob(spec string, refresher TrendingRefresher, logger *slog.Logger) Job {
	return Job{
		Name: JobTrendingRefresh,
		Spec: spec,
		Run: func(ctx context.Context) error {
			res, err := refresher.RefreshTrending(ctx)
			if err != nil {
				return err
			}
			logger.Debug("trending refreshed", "source", res.Source, "videos", len(res.Videos))
			return nil
		},
	}
}

// SessionPurgeJob removes expired refresh sessions.
func SessionPurgeJob(spec string, purger SessionPurger, logger *slog.Logger) Job {
	return Job{
		Name: JobSessionPurge,
		Spec: spec,
		Run: func(ctx context.Context) error {
			n, err := purger.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("expired sessions purged", "count", n)
			}
			return nil
		},
	}
}

// AdsTxtJob regenerates ads.txt at path from the active ad settings.
func AdsTxtJob(spec, path string, source ads.Source, extra []string) Job {
	return Job{
		Name: JobAdsTxt,
		Spec: spec,
		Run: func(ctx context.Context) error {
			settings, err := source.ListActive(ctx)
			if err != nil {
				return fmt.Errorf("list active ads: %w", err)
			}
			return writeFileAtomic(path, []byte(ads.GenerateAdsTxt(settings, extra)))
		},
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".ads-*.txt")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return os.Rename(tmp.Name(), path)
}
