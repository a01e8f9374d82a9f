package models

import "time"

// Video statuses.
const (
	VideoStatusDraft     = "draft"
	VideoStatusPublished = "published"
	VideoStatusPrivate   = "private"
)

// Storage types recorded on media assets.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Taxonomy statuses; inactive rows are soft-deleted.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// User roles and statuses.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// Ad types.
const (
	AdTypeAdSense   = "adsense"
	AdTypeGoogleAds = "google_ads"
	AdTypeCustom    = "custom"
	AdTypeAnalytics = "analytics"
)

// Ad positions.
const (
	AdPositionHeader      = "header"
	AdPositionFooter      = "footer"
	AdPositionSidebar     = "sidebar"
	AdPositionBeforeVideo = "before_video"
	AdPositionAfterVideo  = "after_video"
	AdPositionInFeed      = "in_feed"
)

// Video is an uploaded media asset with its denormalized engagement counters.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Slug         string    `json:"slug"`
	VideoURL     string    `json:"videoUrl"`
	VideoKey     string    `json:"-"`
	Thumbnail    string    `json:"thumbnail"`
	ThumbnailKey string    `json:"-"`
	Duration     int       `json:"duration"`
	FileSize     int64     `json:"fileSize"`
	Quality      string    `json:"quality"`
	StorageType  string    `json:"storageType"`
	CategoryID   *string   `json:"categoryId,omitempty"`
	SeriesID     *string   `json:"seriesId,omitempty"`
	UserID       *string   `json:"userId,omitempty"`
	Views        int64     `json:"views"`
	Likes        int64     `json:"likes"`
	Shares       int64     `json:"shares"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	CategoryName string  `json:"categoryName,omitempty"`
	SeriesTitle  string  `json:"seriesTitle,omitempty"`
	Score        float64 `json:"score,omitempty"`
}

// Category groups videos by topic.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	SortOrder   int       `json:"sortOrder"`
	VideoCount  int64     `json:"videoCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Series is an ordered collection of videos.
type Series struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Description  string    `json:"description"`
	Thumbnail    string    `json:"thumbnail"`
	CategoryID   *string   `json:"categoryId,omitempty"`
	Status       string    `json:"status"`
	SortOrder    int       `json:"sortOrder"`
	EpisodeCount int64     `json:"episodeCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// User represents an account able to sign in.
type User struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	Password    string     `json:"-"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// ViewEvent is a single row of the video_views log.
type ViewEvent struct {
	ID        string
	VideoID   string
	UserID    *string
	IP        string
	UserAgent string
	CreatedAt time.Time
}

// LikeEvent is a single row of the video_likes log.
type LikeEvent struct {
	ID        string
	VideoID   string
	UserID    *string
	IP        string
	CreatedAt time.Time
}

// ShareEvent is a single row of the video_shares log.
type ShareEvent struct {
	ID        string
	VideoID   string
	UserID    *string
	Platform  string
	IP        string
	CreatedAt time.Time
}

// Counters carries the denormalized engagement totals of a video.
type Counters struct {
	Views  int64 `json:"views"`
	Likes  int64 `json:"likes"`
	Shares int64 `json:"shares"`
}

// AdSetting stores a third-party ad or analytics snippet along with its last validation.
type AdSetting struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Type               string     `json:"type"`
	Code               string     `json:"code"`
	Position           string     `json:"position"`
	Status             string     `json:"status"`
	PublisherID        string     `json:"publisherId,omitempty"`
	ValidationScore    *int       `json:"validationScore,omitempty"`
	ValidationErrors   []string   `json:"validationErrors,omitempty"`
	ValidationWarnings []string   `json:"validationWarnings,omitempty"`
	ContentHash        string     `json:"contentHash,omitempty"`
	ValidatedAt        *time.Time `json:"validatedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// DashboardStats aggregates site-wide totals for the admin API.
type DashboardStats struct {
	TotalVideos     int64 `json:"totalVideos"`
	PublishedVideos int64 `json:"publishedVideos"`
	DraftVideos     int64 `json:"draftVideos"`
	PrivateVideos   int64 `json:"privateVideos"`
	TotalViews      int64 `json:"totalViews"`
	TotalLikes      int64 `json:"totalLikes"`
	TotalShares     int64 `json:"totalShares"`
	TotalCategories int64 `json:"totalCategories"`
	TotalSeries     int64 `json:"totalSeries"`
	TotalUsers      int64 `json:"totalUsers"`
	StorageBytes    int64 `json:"storageBytes"`
}

// DailyCount is one point of a per-day time series.
type DailyCount struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

// Page wraps a paginated result.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// NewPage computes the page count for a result window.
func NewPage[T any](items []T, page, limit int, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Page[T]{Items: items, Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// Pagination bounds shared by list endpoints.
const (
	DefaultLimit = 20
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit far from integer overflow.
	MaxPage = 1_000_000
)

// NormalizePage clamps page to >= 1 and limit to [1, MaxLimit], defaulting a zero limit.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit
}

// MediaUpdate carries the results of background media processing. Empty strings and zero
// values leave the stored column unchanged.
type MediaUpdate struct {
	VideoURL     string
	VideoKey     string
	Thumbnail    string
	ThumbnailKey string
	Duration     int
	FileSize     int64
	Quality      string
}
