package repositories

import (
	"context"
	"time"

	"github.com/vidcms/backend/internal/models"
)

// Video list orderings.
const (
	SortLatest  = "latest"
	SortPopular = "popular"
	SortOldest  = "oldest"
	SortTitle   = "title"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByLogin(ctx context.Context, login string) (models.User, error)
	List(ctx context.Context, page, limit int) ([]models.User, int64, error)
	Update(ctx context.Context, user models.User) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	CountAdmins(ctx context.Context) (int64, error)
}

// VideoFilter narrows and orders video listings. Category and Series accept an id or slug.
type VideoFilter struct {
	Page     int
	Limit    int
	Category string
	Series   string
	Status   string
	Search   string
	Sort     string
}

// VideoRepository exposes data access for uploaded videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	FindBySlug(ctx context.Context, slug string) (models.Video, error)
	List(ctx context.Context, filter VideoFilter) ([]models.Video, int64, error)
	Update(ctx context.Context, video models.Video) error
	Delete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
	Related(ctx context.Context, video models.Video, limit int) ([]models.Video, error)
	TrendingByInteractions(ctx context.Context, since time.Time, limit int, category string) ([]models.Video, error)
	TrendingByCounters(ctx context.Context, limit int, category string) ([]models.Video, error)
	LatestPublished(ctx context.Context, limit int) ([]models.Video, error)
	UpdateMedia(ctx context.Context, id string, update models.MediaUpdate) error
}

// CategoryRepository exposes data access for categories.
type CategoryRepository interface {
	Create(ctx context.Context, category models.Category) error
	FindByID(ctx context.Context, id string) (models.Category, error)
	FindBySlug(ctx context.Context, slug string) (models.Category, error)
	List(ctx context.Context, includeInactive bool) ([]models.Category, error)
	Update(ctx context.Context, category models.Category) error
	SoftDelete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
}

// SeriesRepository exposes data access for series.
type SeriesRepository interface {
	Create(ctx context.Context, series models.Series) error
	FindByID(ctx context.Context, id string) (models.Series, error)
	FindBySlug(ctx context.Context, slug string) (models.Series, error)
	List(ctx context.Context, includeInactive bool) ([]models.Series, error)
	Update(ctx context.Context, series models.Series) error
	SoftDelete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug, excludeID string) (bool, error)
}

// InteractionRepository records engagement events together with their counters.
type InteractionRepository interface {
	RecordView(ctx context.Context, event models.ViewEvent) (models.Counters, error)
	Like(ctx context.Context, event models.LikeEvent) (models.Counters, bool, error)
	Unlike(ctx context.Context, videoID, userID string) (models.Counters, bool, error)
	RecordShare(ctx context.Context, event models.ShareEvent) (models.Counters, error)
}

// AdRepository exposes data access for ad settings.
type AdRepository interface {
	Create(ctx context.Context, ad models.AdSetting) error
	FindByID(ctx context.Context, id string) (models.AdSetting, error)
	List(ctx context.Context, activeOnly bool) ([]models.AdSetting, error)
	ListActive(ctx context.Context) ([]models.AdSetting, error)
	Update(ctx context.Context, ad models.AdSetting) error
	Delete(ctx context.Context, id string) error
	SaveValidation(ctx context.Context, ad models.AdSetting) error
}

// AnalyticsRepository aggregates site-wide statistics.
type AnalyticsRepository interface {
	DashboardStats(ctx context.Context) (models.DashboardStats, error)
	DailyViews(ctx context.Context, days int) ([]models.DailyCount, error)
	TopVideos(ctx context.Context, limit int) ([]models.Video, error)
	RecentVideos(ctx context.Context, limit int) ([]models.Video, error)
}
