package handlers

import (
	"context"
	"time"

	"github.com/vidcms/backend/internal/feed"
	"github.com/vidcms/backend/internal/media"
	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the auth and admin handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, login string) (models.User, error)
	List(ctx context.Context, page, limit int) ([]models.User, int64, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// SessionManager issues and refreshes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, user models.User) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
}

// VideoStore captures persistence for uploaded videos.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	FindBySlug(ctx context.Context, slug string) (models.Video, error)
	List(ctx context.Context, filter repositories.VideoFilter) ([]models.Video, int64, error)
	Update(ctx context.Context, video models.Video) error
	Delete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	Related(ctx context.Context, video models.Video, limit int) ([]models.Video, error)
}

// CategoryStore captures persistence for categories.
type CategoryStore interface {
	Create(ctx context.Context, category models.Category) error
	FindByID(ctx context.Context, id string) (models.Category, error)
	FindBySlug(ctx context.Context, slug string) (models.Category, error)
	List(ctx context.Context, includeInactive bool) ([]models.Category, error)
	Update(ctx context.Context, category models.Category) error
	SoftDelete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
}

// SeriesStore captures persistence for series.
type SeriesStore interface {
	Create(ctx context.Context, series models.Series) error
	FindByID(ctx context.Context, id string) (models.Series, error)
	FindBySlug(ctx context.Context, slug string) (models.Series, error)
	List(ctx context.Context, includeInactive bool) ([]models.Series, error)
	Update(ctx context.Context, series models.Series) error
	SoftDelete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
}

// InteractionStore records views, likes and shares.
type InteractionStore interface {
	RecordView(ctx context.Context, event models.ViewEvent) (models.Counters, error)
	Like(ctx context.Context, event models.LikeEvent) (models.Counters, bool, error)
	Unlike(ctx context.Context, videoID, userID string) (models.Counters, bool, error)
	RecordShare(ctx context.Context, event models.ShareEvent) (models.Counters, error)
}

// AdStore captures persistence for ad settings.
type AdStore interface {
	Create(ctx context.Context, ad models.AdSetting) error
	FindByID(ctx context.Context, id string) (models.AdSetting, error)
	List(ctx context.Context, activeOnly bool) ([]models.AdSetting, error)
	ListActive(ctx context.Context) ([]models.AdSetting, error)
	Update(ctx context.Context, ad models.AdSetting) error
	Delete(ctx context.Context, id string) error
	SaveValidation(ctx context.Context, ad models.AdSetting) error
}

// AnalyticsStore aggregates dashboard statistics.
type AnalyticsStore interface {
	DashboardStats(ctx context.Context) (models.DashboardStats, error)
	DailyViews(ctx context.Context, days int) ([]models.DailyCount, error)
	TopVideos(ctx context.Context, limit int) ([]models.Video, error)
	RecentVideos(ctx context.Context, limit int) ([]models.Video, error)
}

// FeedService serves the cached public feeds.
type FeedService interface {
	Trending(ctx context.Context, limit int, category string) feed.Trending
	Latest(ctx context.Context, page, limit int, category string) models.Page[models.Video]
	Popular(ctx context.Context, page, limit int, category string) models.Page[models.Video]
	Flush(ctx context.Context) error
}

// MediaQueue schedules background processing of uploaded files.
type MediaQueue interface {
	Enqueue(ctx context.Context, job media.Job) error
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker func(ctx context.Context) error
