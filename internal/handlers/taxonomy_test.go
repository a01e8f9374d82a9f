package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/repositories"
)

type categoryStoreStub struct {
	items       map[string]models.Category
	lastInclude bool
}

func newCategoryStoreStub(items ...models.Category) *categoryStoreStub {
	s := &categoryStoreStub{items: make(map[string]models.Category)}
	for _, c := range items {
		s.items[c.ID] = c
	}
	return s
}

func (s *categoryStoreStub) Create(_ context.Context, c models.Category) error {
	s.items[c.ID] = c
	return nil
}

func (s *categoryStoreStub) FindByID(_ context.Context, id string) (models.Category, error) {
	c, ok := s.items[id]
	if !ok {
		return models.Category{}, repositories.ErrNotFound
	}
	return c, nil
}

func (s *categoryStoreStub) FindBySlug(_ context.Context, slug string) (models.Category, error) {
	for _, c := range s.items {
		if c.Slug == slug {
			return c, nil
		}
	}
	return models.Category{}, repositories.ErrNotFound
}

func (s *categoryStoreStub) List(_ context.Context, includeInactive bool) ([]models.Category, error) {
	s.lastInclude = includeInactive
	var out []models.Category
	for _, c := range s.items {
		if includeInactive || c.Status == models.StatusActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *categoryStoreStub) Update(_ context.Context, c models.Category) error {
	s.items[c.ID] = c
	return nil
}

func (s *categoryStoreStub) SoftDelete(_ context.Context, id string) error {
	c, ok := s.items[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.Status = models.StatusInactive
	s.items[id] = c
	return nil
}

func (s *categoryStoreStub) SlugExists(_ context.Context, slug, excludeID string) (bool, error) {
	for _, c := range s.items {
		if c.Slug == slug && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

type seriesStoreStub struct {
	items map[string]models.Series
}

func (s *seriesStoreStub) Create(_ context.Context, v models.Series) error {
	s.items[v.ID] = v
	return nil
}

func (s *seriesStoreStub) FindByID(_ context.Context, id string) (models.Series, error) {
	v, ok := s.items[id]
	if !ok {
		return models.Series{}, repositories.ErrNotFound
	}
	return v, nil
}

func (s *seriesStoreStub) FindBySlug(_ context.Context, slug string) (models.Series, error) {
	for _, v := range s.items {
		if v.Slug == slug {
			return v, nil
		}
	}
	return models.Series{}, repositories.ErrNotFound
}

func (s *seriesStoreStub) List(_ context.Context, includeInactive bool) ([]models.Series, error) {
	var out []models.Series
	for _, v := range s.items {
		if includeInactive || v.Status == models.StatusActive {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *seriesStoreStub) Update(_ context.Context, v models.Series) error {
	s.items[v.ID] = v
	return nil
}

func (s *seriesStoreStub) SoftDelete(_ context.Context, id string) error {
	v, ok := s.items[id]
	if !ok {
		return repositories.ErrNotFound
	}
	v.Status = models.StatusInactive
	s.items[id] = v
	return nil
}

func (s *seriesStoreStub) SlugExists(_ context.Context, slug, excludeID string) (bool, error) {
	for _, v := range s.items {
		if v.Slug == slug && v.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func serveTaxonomy(pattern string, h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, r)
	return rec
}

func TestCategoryHandlerCollection(t *testing.T) {
	store := newCategoryStoreStub(
		models.Category{ID: "c1", Name: "Music", Slug: "music", Status: models.StatusActive},
		models.Category{ID: "c2", Name: "Old", Slug: "old", Status: models.StatusInactive},
	)
	handler := CategoryHandler{Categories: store, NowFunc: fixedNow}

	rec := httptest.NewRecorder()
	handler.Collection(rec, httptest.NewRequest(http.MethodGet, "/api/categories?all=1", nil))
	if rec.Code != http.StatusOK || store.lastInclude {
		t.Fatalf("anonymous callers must not see inactive categories (status %d)", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Collection(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/categories?all=1", nil), "admin", models.RoleAdmin))
	if !store.lastInclude {
		t.Fatal("admins may list inactive categories")
	}

	cases := []struct {
		name       string
		role       string
		body       string
		wantStatus int
	}{
		{"anonymous", "", `{"name":"Gaming"}`, http.StatusUnauthorized},
		{"notAdmin", models.RoleUser, `{"name":"Gaming"}`, http.StatusForbidden},
		{"missingName", models.RoleAdmin, `{"description":"x"}`, http.StatusBadRequest},
		{"badStatus", models.RoleAdmin, `{"name":"Gaming","status":"gone"}`, http.StatusBadRequest},
		{"created", models.RoleAdmin, `{"name":"Music","sortOrder":3}`, http.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/categories", bytes.NewBufferString(tc.body))
			if tc.role != "" {
				req = asUser(req, "u", tc.role)
			}
			rec := httptest.NewRecorder()
			handler.Collection(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantStatus == http.StatusCreated {
				var c models.Category
				if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if c.Slug != "music-2" || c.SortOrder != 3 || c.Status != models.StatusActive {
					t.Fatalf("unexpected category %+v", c)
				}
			}
		})
	}
}

func TestCategoryHandlerItem(t *testing.T) {
	store := newCategoryStoreStub(
		models.Category{ID: "c1", Name: "Music", Slug: "music", Status: models.StatusActive},
		models.Category{ID: "c2", Name: "Old", Slug: "old", Status: models.StatusInactive},
	)
	handler := CategoryHandler{Categories: store, NowFunc: fixedNow}

	if rec := serveTaxonomy("/api/categories/{id}", handler.Item, httptest.NewRequest(http.MethodGet, "/api/categories/music", nil)); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if rec := serveTaxonomy("/api/categories/{id}", handler.Item, httptest.NewRequest(http.MethodGet, "/api/categories/old", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("inactive categories are hidden, got %d", rec.Code)
	}

	req := asUser(httptest.NewRequest(http.MethodPut, "/api/categories/music", bytes.NewBufferString(`{"name":"Live Music"}`)), "admin", models.RoleAdmin)
	if rec := serveTaxonomy("/api/categories/{id}", handler.Item, req); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := store.items["c1"]; got.Slug != "live-music" || !got.UpdatedAt.Equal(fixedNow()) {
		t.Fatalf("expected slug to follow the new name, got %+v", got)
	}

	req = asUser(httptest.NewRequest(http.MethodDelete, "/api/categories/live-music", nil), "admin", models.RoleAdmin)
	if rec := serveTaxonomy("/api/categories/{id}", handler.Item, req); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	if store.items["c1"].Status != models.StatusInactive {
		t.Fatal("expected soft delete")
	}

	req = asUser(httptest.NewRequest(http.MethodDelete, "/api/categories/old", nil), "user", models.RoleUser)
	if rec := serveTaxonomy("/api/categories/{id}", handler.Item, req); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestCategoryHandlerVideoList(t *testing.T) {
	store := newCategoryStoreStub(models.Category{ID: "c1", Name: "Music", Slug: "music", Status: models.StatusActive})
	videos := newVideoStoreStub(models.Video{ID: "v1", Status: models.VideoStatusPublished})
	handler := CategoryHandler{Categories: store, Videos: videos}

	rec := serveTaxonomy("/api/categories/{id}/videos", handler.VideoList, httptest.NewRequest(http.MethodGet, "/api/categories/music/videos?sort=popular", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if videos.filter.Category != "c1" || videos.filter.Status != models.VideoStatusPublished || videos.filter.Sort != "popular" {
		t.Fatalf("unexpected filter %+v", videos.filter)
	}
}

func TestSeriesHandler(t *testing.T) {
	store := &seriesStoreStub{items: map[string]models.Series{
		"s1": {ID: "s1", Title: "Cooking", Slug: "cooking", Status: models.StatusActive},
	}}
	videos := newVideoStoreStub()
	handler := SeriesHandler{Series: store, Videos: videos, NowFunc: fixedNow}

	req := asUser(httptest.NewRequest(http.MethodPost, "/api/series", bytes.NewBufferString(`{"title":"Travel Diaries","categoryId":"c1"}`)), "admin", models.RoleAdmin)
	rec := httptest.NewRecorder()
	handler.Collection(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	var created models.Series
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Slug != "travel-diaries" || created.CategoryID == nil || *created.CategoryID != "c1" {
		t.Fatalf("unexpected series %+v", created)
	}

	rec = serveTaxonomy("/api/series/{id}/videos", handler.VideoList, httptest.NewRequest(http.MethodGet, "/api/series/cooking/videos", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if videos.filter.Series != "s1" || videos.filter.Sort != repositories.SortOldest {
		t.Fatalf("episodes default to oldest first, got %+v", videos.filter)
	}

	rec = serveTaxonomy("/api/series/{id}", handler.Item, httptest.NewRequest(http.MethodPatch, "/api/series/cooking", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}
}
