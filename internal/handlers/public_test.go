package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vidcms/backend/internal/ads"
	"github.com/vidcms/backend/internal/feed"
	"github.com/vidcms/backend/internal/models"
)

func TestPublicHandlerFeed(t *testing.T) {
	feeds := &feedStub{page: models.NewPage([]models.Video{{ID: "v1", Title: "Clip", Slug: "clip", CreatedAt: fixedNow()}}, 1, 20, 1)}
	handler := PublicHandler{
		Feeds:   feeds,
		Site:    feed.Site{Title: "VidCMS", URL: "https://videos.example.com"},
		NowFunc: fixedNow,
	}

	rec := httptest.NewRecorder()
	handler.Feed(rec, httptest.NewRequest(http.MethodGet, "/api/public/feed?category=music", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var page models.Page[models.Video]
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || feeds.calls[0] != "latest:music" {
		t.Fatalf("unexpected page %+v calls %v", page, feeds.calls)
	}

	rec = httptest.NewRecorder()
	handler.Feed(rec, httptest.NewRequest(http.MethodGet, "/api/public/feed?sort=popular&format=rss", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if feeds.calls[1] != "popular:" {
		t.Fatalf("expected popular feed, got %v", feeds.calls)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Fatalf("unexpected content type %s", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "<rss") || !strings.Contains(body, "https://videos.example.com/embed/clip") {
		t.Fatalf("unexpected rss body %s", body)
	}

	rec = httptest.NewRecorder()
	handler.Feed(rec, httptest.NewRequest(http.MethodGet, "/api/public/feed?format=atom", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestPublicHandlerTrending(t *testing.T) {
	feeds := &feedStub{trending: feed.Trending{Videos: []models.Video{{ID: "demo-1"}}, Source: feed.SourceDemo}}
	handler := PublicHandler{Feeds: feeds}

	rec := httptest.NewRecorder()
	handler.Trending(rec, httptest.NewRequest(http.MethodGet, "/api/public/trending?category=news", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var got feed.Trending
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Source != feed.SourceDemo || len(got.Videos) != 1 || feeds.calls[0] != "trending:news" {
		t.Fatalf("unexpected trending %+v", got)
	}
}

func TestPublicHandlerPlacements(t *testing.T) {
	store := newAdStoreStub(
		models.AdSetting{ID: "a1", Name: "Top", Type: models.AdTypeCustom, Code: "<div>top</div>", Position: models.AdPositionHeader, Status: models.StatusActive},
		models.AdSetting{ID: "a2", Name: "Side", Type: models.AdTypeCustom, Code: "<div>side</div>", Position: models.AdPositionSidebar, Status: models.StatusActive},
		models.AdSetting{ID: "a3", Name: "Off", Type: models.AdTypeCustom, Code: "<div>off</div>", Position: models.AdPositionSidebar, Status: models.StatusInactive},
	)
	handler := PublicHandler{Ads: store}

	rec := httptest.NewRecorder()
	handler.Placements(rec, httptest.NewRequest(http.MethodGet, "/api/ads/placements?position=sidebar", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var resp struct {
		Placements map[string][]placement `json:"placements"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Placements) != 1 || len(resp.Placements[models.AdPositionSidebar]) != 1 || resp.Placements[models.AdPositionSidebar][0].ID != "a2" {
		t.Fatalf("unexpected placements %+v", resp.Placements)
	}

	store.err = errors.New("db down")
	rec = httptest.NewRecorder()
	handler.Placements(rec, httptest.NewRequest(http.MethodGet, "/api/ads/placements", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("placements degrade to empty, got %d", rec.Code)
	}
}

func TestPublicHandlerAdsTxt(t *testing.T) {
	store := newAdStoreStub(models.AdSetting{
		ID: "a1", Type: models.AdTypeAdSense, Status: models.StatusActive, PublisherID: "pub-1234567890123456",
	})
	handler := PublicHandler{Ads: store, AdsTxtExtra: []string{"example.com, 42, RESELLER"}}

	rec := httptest.NewRecorder()
	handler.AdsTxt(rec, httptest.NewRequest(http.MethodGet, "/ads.txt", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "google.com, pub-1234567890123456, DIRECT, "+ads.GoogleCertificationID) {
		t.Fatalf("missing google record in %q", body)
	}
	if !strings.Contains(body, "example.com, 42, RESELLER") {
		t.Fatalf("missing extra record in %q", body)
	}

	store.err = errors.New("db down")
	rec = httptest.NewRecorder()
	handler.AdsTxt(rec, httptest.NewRequest(http.MethodGet, "/ads.txt", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "RESELLER") {
		t.Fatalf("ads.txt should fall back to static records, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestPublicHandlerEmbed(t *testing.T) {
	videos := newVideoStoreStub(
		models.Video{ID: "v1", Slug: "clip", Title: "<Clip>", VideoURL: "/media/videos/v1/source.mp4", Status: models.VideoStatusPublished},
		models.Video{ID: "v2", Slug: "hidden", Status: models.VideoStatusDraft},
	)
	store := newAdStoreStub(models.AdSetting{ID: "a1", Code: "<script>ad()</script>", Position: models.AdPositionHeader, Status: models.StatusActive})
	handler := PublicHandler{Videos: videos, Ads: store, Site: feed.Site{Title: "VidCMS"}}

	mux := http.NewServeMux()
	mux.Handle("/embed/{slug}", ads.InjectMiddleware(store)(http.HandlerFunc(handler.Embed)))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/embed/clip", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<source src="/media/videos/v1/source.mp4">`) {
		t.Fatalf("missing video source in %s", body)
	}
	if !strings.Contains(body, "&lt;Clip&gt;") {
		t.Fatalf("expected escaped title in %s", body)
	}
	if !strings.Contains(body, "<script>ad()</script>\n</head>") {
		t.Fatalf("expected header ad before </head> in %s", body)
	}

	for _, path := range []string{"/embed/hidden", "/embed/missing"} {
		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404 got %d", path, rec.Code)
		}
	}
}
