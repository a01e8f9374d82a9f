// Package feed assembles the public video feeds with caching and graceful fallbacks.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/repositories"
)

// Trending sources, in fallback order.
const (
	SourceInteractions = "interactions"
	SourceCounters     = "counters"
	SourceLatest       = "latest"
	SourceDemo         = "demo"
)

// DefaultTrendingLimit is used when callers pass a non-positive limit.
const DefaultTrendingLimit = 10

// VideoSource is the subset of the video repository the feeds read from.
type VideoSource interface {
	List(ctx context.Context, filter repositories.VideoFilter) ([]models.Video, int64, error)
	TrendingByInteractions(ctx context.Context, since time.Time, limit int, category string) ([]models.Video, error)
	TrendingByCounters(ctx context.Context, limit int, category string) ([]models.Video, error)
	LatestPublished(ctx context.Context, limit int) ([]models.Video, error)
}

// Trending is a ranked list together with the stage that produced it.
type Trending struct {
	Videos []models.Video `json:"videos"`
	Source string         `json:"source"`
}

// Options tunes a Service.
type Options struct {
	CacheTTL time.Duration
	// Window bounds the interaction events considered for trending.
	Window time.Duration
	Logger *slog.Logger
}

// Service serves trending, latest and popular feeds. Read failures never reach callers.
type Service struct {
	videos VideoSource
	cache  Cache
	ttl    time.Duration
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a feed service. cache may be nil.
func NewService(videos VideoSource, cache Cache, opts Options) *Service {
	if videos == nil {
		panic("feed: video source is required")
	}
	if opts.Window <= 0 {
		opts.Window = 7 * 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		videos: videos,
		cache:  cache,
		ttl:    opts.CacheTTL,
		window: opts.Window,
		logger: opts.Logger,
		now:    time.Now,
	}
}

// Trending returns up to limit ranked videos, trying interaction events, then decayed
// counters, then the latest uploads and finally built-in demo data.
func (s *Service) Trending(ctx context.Context, limit int, category string) Trending {
	limit = clampLimit(limit, DefaultTrendingLimit)
	key := fmt.Sprintf("trending:%s:%d", category, limit)

	var cached Trending
	if s.cacheGet(ctx, key, &cached) {
		return cached
	}

	result := s.computeTrending(ctx, limit, category)
	if result.Source != SourceDemo {
		s.cacheSet(ctx, key, result)
	}
	return result
}

// RefreshTrending recomputes the default trending list and replaces the cached copy.
func (s *Service) RefreshTrending(ctx context.Context) (Trending, error) {
	result := s.computeTrending(ctx, DefaultTrendingLimit, "")
	if s.cache != nil && result.Source != SourceDemo {
		key := fmt.Sprintf("trending:%s:%d", "", DefaultTrendingLimit)
		if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *Service) computeTrending(ctx context.Context, limit int, category string) Trending {
	stages := []struct {
		source string
		fetch  func() ([]models.Video, error)
	}{
		{SourceInteractions, func() ([]models.Video, error) {
			return s.videos.TrendingByInteractions(ctx, s.now().Add(-s.window), limit, category)
		}},
		{SourceCounters, func() ([]models.Video, error) {
			return s.videos.TrendingByCounters(ctx, limit, category)
		}},
		{SourceLatest, func() ([]models.Video, error) {
			return s.videos.LatestPublished(ctx, limit)
		}},
	}

	for _, stage := range stages {
		videos, err := stage.fetch()
		if err != nil {
			s.logger.Warn("trending stage failed", "source", stage.source, "error", err)
			continue
		}
		if len(videos) > 0 {
			return Trending{Videos: videos, Source: stage.source}
		}
	}

	demo := DemoVideos(s.now())
	if len(demo) > limit {
		demo = demo[:limit]
	}
	return Trending{Videos: demo, Source: SourceDemo}
}

// Latest pages through published videos newest first.
func (s *Service) Latest(ctx context.Context, page, limit int, category string) models.Page[models.Video] {
	return s.published(ctx, repositories.SortLatest, page, limit, category)
}

// Popular pages through published videos by engagement score.
func (s *Service) Popular(ctx context.Context, page, limit int, category string) models.Page[models.Video] {
	return s.published(ctx, repositories.SortPopular, page, limit, category)
}

func (s *Service) published(ctx context.Context, sort string, page, limit int, category string) models.Page[models.Video] {
	page, limit = models.NormalizePage(page, limit)
	key := fmt.Sprintf("%s:%s:%d:%d", sort, category, page, limit)

	var cached models.Page[models.Video]
	if s.cacheGet(ctx, key, &cached) {
		return cached
	}

	videos, total, err := s.videos.List(ctx, repositories.VideoFilter{
		Page:     page,
		Limit:    limit,
		Category: category,
		Status:   models.VideoStatusPublished,
		Sort:     sort,
	})
	if err != nil {
		s.logger.Warn("feed query failed", "sort", sort, "category", category, "error", err)
		return models.NewPage[models.Video](nil, page, limit, 0)
	}

	result := models.NewPage(videos, page, limit, total)
	s.cacheSet(ctx, key, result)
	return result
}

// Flush empties the feed cache.
func (s *Service) Flush(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Flush(ctx)
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil || s.ttl <= 0 {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.Warn("feed cache read failed", "key", key, "error", err)
		return false
	}
	return hit
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn("feed cache write failed", "key", key, "error", err)
	}
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > models.MaxLimit {
		return models.MaxLimit
	}
	return limit
}
