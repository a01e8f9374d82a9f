package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/vidcms/backend/internal/ads"
	"github.com/vidcms/backend/internal/feed"
	"github.com/vidcms/backend/internal/middleware"
	"github.com/vidcms/backend/internal/storage"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Health}
	auth := AuthHandler{
		Users:        deps.Users,
		Sessions:     deps.Sessions,
		LoginLimiter: deps.LoginLimiter,
		SecureCookie: deps.SecureCookie,
		NowFunc:      deps.NowFunc,
	}
	videos := VideoHandler{
		Videos:        deps.Videos,
		Interactions:  deps.Interactions,
		Storage:       deps.Storage,
		Media:         deps.Media,
		UploadLimiter: deps.UploadLimiter,
		Upload:        deps.Upload,
		SignedURLTTL:  deps.SignedURLTTL,
		NowFunc:       deps.NowFunc,
	}
	categories := CategoryHandler{Categories: deps.Categories, Videos: deps.Videos, NowFunc: deps.NowFunc}
	series := SeriesHandler{Series: deps.Series, Videos: deps.Videos, NowFunc: deps.NowFunc}
	public := PublicHandler{
		Feeds:       deps.Feed,
		Ads:         deps.Ads,
		Videos:      deps.Videos,
		Site:        deps.Site,
		AdsTxtExtra: deps.AdsTxtExtra,
		NowFunc:     deps.NowFunc,
	}
	admin := AdminHandler{
		Analytics: deps.Analytics,
		Users:     deps.Users,
		Ads:       deps.Ads,
		Storage:   deps.Storage,
		Feed:      deps.Feed,
		NowFunc:   deps.NowFunc,
	}

	action := func(h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(deps.ActionLimiter, "action")(h)
	}
	adminOnly := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(h)
	}

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc("/api/auth/login", auth.Login)
	mux.HandleFunc("/api/auth/refresh", auth.Refresh)
	mux.HandleFunc("/api/auth/logout", auth.Logout)
	mux.Handle("/api/auth/me", middleware.RequireUser(http.HandlerFunc(auth.Me)))

	mux.HandleFunc("/api/videos", videos.Collection)
	mux.HandleFunc("/api/videos/{id}", videos.Item)
	mux.Handle("/api/videos/{id}/view", action(videos.View))
	mux.Handle("/api/videos/{id}/like", action(videos.Like))
	mux.Handle("/api/videos/{id}/share", action(videos.Share))
	mux.HandleFunc("/api/videos/{id}/related", videos.Related)
	mux.HandleFunc("/api/videos/{id}/download", videos.Download)

	mux.HandleFunc("/api/categories", categories.Collection)
	mux.HandleFunc("/api/categories/{id}", categories.Item)
	mux.HandleFunc("/api/categories/{id}/videos", categories.VideoList)
	mux.HandleFunc("/api/series", series.Collection)
	mux.HandleFunc("/api/series/{id}", series.Item)
	mux.HandleFunc("/api/series/{id}/videos", series.VideoList)

	mux.HandleFunc("/api/public/feed", public.Feed)
	mux.HandleFunc("/api/public/trending", public.Trending)
	mux.HandleFunc("/api/ads/placements", public.Placements)

	mux.Handle("/api/admin/stats", adminOnly(admin.Dashboard))
	mux.Handle("/api/admin/analytics", adminOnly(admin.ViewHistory))
	mux.Handle("/api/admin/users", adminOnly(admin.Accounts))
	mux.Handle("/api/admin/storage", adminOnly(admin.StorageUsage))
	mux.Handle("/api/admin/ads", adminOnly(admin.AdsCollection))
	mux.Handle("/api/admin/ads/validate", adminOnly(admin.ValidateSnippet))
	mux.Handle("/api/admin/ads/{id}", adminOnly(admin.AdsItem))
	mux.Handle("/api/admin/ads/{id}/validate", adminOnly(admin.RevalidateAd))
	mux.Handle("/api/admin/cache/flush", adminOnly(admin.FlushCache))

	mux.HandleFunc("/ads.txt", public.AdsTxt)
	mux.Handle("/embed/{slug}", ads.InjectMiddleware(deps.Ads)(http.HandlerFunc(public.Embed)))

	if local, ok := deps.Storage.(*storage.LocalStorage); ok && strings.HasPrefix(local.BaseURL(), "/") {
		mux.Handle(strings.TrimSuffix(local.BaseURL(), "/")+"/", local.Handler())
	}
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users        UserStore
	Sessions     SessionManager
	Videos       VideoStore
	Categories   CategoryStore
	Series       SeriesStore
	Interactions InteractionStore
	Ads          AdStore
	Analytics    AnalyticsStore
	Feed         FeedService
	Storage      storage.Storage
	Media        MediaQueue
	Health       HealthChecker

	Site         feed.Site
	Upload       UploadPolicy
	SignedURLTTL time.Duration
	AdsTxtExtra  []string
	SecureCookie bool

	LoginLimiter  RateLimiter
	UploadLimiter RateLimiter
	ActionLimiter RateLimiter

	NowFunc func() time.Time
}
