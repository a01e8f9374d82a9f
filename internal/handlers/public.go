package handlers

import (
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/vidcms/backend/internal/ads"
	"github.com/vidcms/backend/internal/feed"
	"github.com/vidcms/backend/internal/logging"
	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/repositories"
)

// PublicHandler serves anonymous read endpoints: feeds, ad placements, ads.txt and the embed
// player page.
type PublicHandler struct {
	Feeds       FeedService
	Ads         ads.Source
	Videos      VideoStore
	Site        feed.Site
	AdsTxtExtra []string
	NowFunc     func() time.Time
}

// Feed handles GET /api/public/feed. format=rss switches to an RSS 2.0 document and
// sort=popular ranks by engagement.
func (h PublicHandler) Feed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx := r.Context()
	q := r.URL.Query()
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", models.DefaultLimit)
	category := strings.TrimSpace(q.Get("category"))

	var result models.Page[models.Video]
	if q.Get("sort") == repositories.SortPopular {
		result = h.Feeds.Popular(ctx, page, limit, category)
	} else {
		result = h.Feeds.Latest(ctx, page, limit, category)
	}

	switch strings.ToLower(q.Get("format")) {
	case "", "json":
		respondJSON(ctx, w, http.StatusOK, result)
	case "rss":
		body, err := feed.RenderRSS(h.Site, result.Items, nowOr(h.NowFunc))
		if err != nil {
			logging.FromContext(ctx).Error("render rss", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "failed to render feed")
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		_, _ = w.Write([]byte(body))
	default:
		respondError(ctx, w, http.StatusBadRequest, "format must be json or rss")
	}
}

// Trending handles GET /api/public/trending.
func (h PublicHandler) Trending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx := r.Context()
	result := h.Feeds.Trending(ctx, queryInt(r, "limit", feed.DefaultTrendingLimit), strings.TrimSpace(r.URL.Query().Get("category")))
	respondJSON(ctx, w, http.StatusOK, result)
}

type placement struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Code string `json:"code"`
}

// Placements handles GET /api/ads/placements, returning active snippets grouped by position.
func (h PublicHandler) Placements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx := r.Context()

	settings, err := h.Ads.ListActive(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("ad placements unavailable", "error", err)
		settings = nil
	}

	position := strings.TrimSpace(r.URL.Query().Get("position"))
	out := make(map[string][]placement)
	for pos, group := range ads.ByPosition(settings) {
		if position != "" && pos != position {
			continue
		}
		for _, ad := range group {
			out[pos] = append(out[pos], placement{ID: ad.ID, Name: ad.Name, Type: ad.Type, Code: ad.Code})
		}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"placements": out})
}

// AdsTxt handles GET /ads.txt.
func (h PublicHandler) AdsTxt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}
	ctx := r.Context()

	settings, err := h.Ads.ListActive(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("ads.txt falling back to static records", "error", err)
		settings = nil
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write([]byte(ads.GenerateAdsTxt(settings, h.AdsTxtExtra)))
}

var embedTemplate = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Video.Title}} · {{.Site.Title}}</title>
<meta property="og:title" content="{{.Video.Title}}">
<meta property="og:type" content="video.other">
{{if .Video.Thumbnail}}<meta property="og:image" content="{{.Video.Thumbnail}}">{{end}}
<style>body{margin:0;background:#000}video{width:100%;height:100vh}</style>
</head>
<body>
<video controls preload="metadata"{{if .Video.Thumbnail}} poster="{{.Video.Thumbnail}}"{{end}}>
<source src="{{.Video.VideoURL}}">
</video>
</body>
</html>
`))

// Embed handles GET /embed/{slug} with a minimal player page. Ads are injected by the
// surrounding middleware.
func (h PublicHandler) Embed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx := r.Context()

	video, err := h.Videos.FindBySlug(ctx, strings.TrimSpace(r.PathValue("slug")))
	if err != nil || video.Status != models.VideoStatusPublished {
		if err != nil && !isNotFound(err) {
			logging.FromContext(ctx).Error("embed lookup failed", "error", err)
		}
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := embedTemplate.Execute(w, map[string]any{"Video": video, "Site": h.Site}); err != nil {
		logging.FromContext(ctx).Error("render embed page", "videoId", video.ID, "error", err)
	}
}
