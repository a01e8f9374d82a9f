package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidcms/backend/internal/auth"
	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/repositories"
	"github.com/vidcms/backend/internal/slug"
)

// CategoryHandler exposes category CRUD and per-category video listings.
type CategoryHandler struct {
	Categories CategoryStore
	Videos     VideoStore
	NowFunc    func() time.Time
}

type categoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	SortOrder   *int    `json:"sortOrder"`
}

// Collection handles GET and POST on /api/categories. Admins may pass all=1 to include
// inactive categories.
func (h CategoryHandler) Collection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		categories, err := h.Categories.List(ctx, wantsInactive(r))
		if err != nil {
			respondStoreError(ctx, w, err, "categories")
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{"items": nonNilSlice(categories)})
	case http.MethodPost:
		if !requireAdmin(w, r) {
			return
		}
		var req categoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
			respondError(ctx, w, http.StatusBadRequest, "name is required")
			return
		}

		now := nowOr(h.NowFunc)
		category := models.Category{ID: uuid.NewString(), Status: models.StatusActive, CreatedAt: now, UpdatedAt: now}
		if !applyCategory(ctx, w, &category, req) {
			return
		}
		s, err := slug.Unique(ctx, category.Name, func(ctx context.Context, c string) (bool, error) {
			return h.Categories.SlugExists(ctx, c, "")
		})
		if err != nil {
			respondStoreError(ctx, w, err, "category")
			return
		}
		category.Slug = s

		if err := h.Categories.Create(ctx, category); err != nil {
			respondStoreError(ctx, w, err, "category")
			return
		}
		respondJSON(ctx, w, http.StatusCreated, category)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// Item handles GET, PUT and DELETE on /api/categories/{id}. Deletion is a soft delete.
func (h CategoryHandler) Item(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet && r.Method != http.MethodPut && r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		return
	}
	if r.Method != http.MethodGet && !requireAdmin(w, r) {
		return
	}

	category, ok := h.load(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		respondJSON(ctx, w, http.StatusOK, category)
	case http.MethodPut:
		var req categoryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}
		previous := category.Name
		if !applyCategory(ctx, w, &category, req) {
			return
		}
		if category.Name != previous {
			s, err := slug.Unique(ctx, category.Name, func(ctx context.Context, c string) (bool, error) {
				return h.Categories.SlugExists(ctx, c, category.ID)
			})
			if err != nil {
				respondStoreError(ctx, w, err, "category")
				return
			}
			category.Slug = s
		}
		category.UpdatedAt = nowOr(h.NowFunc)
		if err := h.Categories.Update(ctx, category); err != nil {
			respondStoreError(ctx, w, err, "category")
			return
		}
		respondJSON(ctx, w, http.StatusOK, category)
	case http.MethodDelete:
		if err := h.Categories.SoftDelete(ctx, category.ID); err != nil {
			respondStoreError(ctx, w, err, "category")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// VideoList handles GET /api/categories/{id}/videos.
func (h CategoryHandler) VideoList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	category, ok := h.load(w, r)
	if !ok {
		return
	}
	listPublished(w, r, h.Videos, repositories.VideoFilter{Category: category.ID})
}

func (h CategoryHandler) load(w http.ResponseWriter, r *http.Request) (models.Category, bool) {
	ctx := r.Context()
	key := strings.TrimSpace(r.PathValue("id"))
	category, err := findByIDOrSlug(ctx, key, h.Categories.FindByID, h.Categories.FindBySlug)
	if err != nil {
		respondStoreError(ctx, w, err, "category")
		return models.Category{}, false
	}
	if category.Status != models.StatusActive && !isAdmin(ctx) {
		respondError(ctx, w, http.StatusNotFound, "category not found")
		return models.Category{}, false
	}
	return category, true
}

func applyCategory(ctx context.Context, w http.ResponseWriter, c *models.Category, req categoryRequest) bool {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			respondError(ctx, w, http.StatusBadRequest, "name must not be empty")
			return false
		}
		c.Name = name
	}
	if req.Description != nil {
		c.Description = strings.TrimSpace(*req.Description)
	}
	if req.SortOrder != nil {
		c.SortOrder = *req.SortOrder
	}
	if req.Status != nil {
		if !validTaxonomyStatus(*req.Status) {
			respondError(ctx, w, http.StatusBadRequest, "invalid status")
			return false
		}
		c.Status = *req.Status
	}
	return true
}

// SeriesHandler exposes series CRUD and episode listings.
type SeriesHandler struct {
	Series  SeriesStore
	Videos  VideoStore
	NowFunc func() time.Time
}

type seriesRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Thumbnail   *string `json:"thumbnail"`
	CategoryID  *string `json:"categoryId"`
	Status      *string `json:"status"`
	SortOrder   *int    `json:"sortOrder"`
}

// Collection handles GET and POST on /api/series.
func (h SeriesHandler) Collection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		series, err := h.Series.List(ctx, wantsInactive(r))
		if err != nil {
			respondStoreError(ctx, w, err, "series")
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{"items": nonNilSlice(series)})
	case http.MethodPost:
		if !requireAdmin(w, r) {
			return
		}
		var req seriesRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
			respondError(ctx, w, http.StatusBadRequest, "title is required")
			return
		}

		now := nowOr(h.NowFunc)
		series := models.Series{ID: uuid.NewString(), Status: models.StatusActive, CreatedAt: now, UpdatedAt: now}
		if !applySeries(ctx, w, &series, req) {
			return
		}
		s, err := slug.Unique(ctx, series.Title, func(ctx context.Context, c string) (bool, error) {
			return h.Series.SlugExists(ctx, c, "")
		})
		if err != nil {
			respondStoreError(ctx, w, err, "series")
			return
		}
		series.Slug = s

		if err := h.Series.Create(ctx, series); err != nil {
			respondStoreError(ctx, w, err, "series")
			return
		}
		respondJSON(ctx, w, http.StatusCreated, series)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// Item handles GET, PUT and DELETE on /api/series/{id}.
func (h SeriesHandler) Item(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet && r.Method != http.MethodPut && r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		return
	}
	if r.Method != http.MethodGet && !requireAdmin(w, r) {
		return
	}

	series, ok := h.load(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		respondJSON(ctx, w, http.StatusOK, series)
	case http.MethodPut:
		var req seriesRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}
		previous := series.Title
		if !applySeries(ctx, w, &series, req) {
			return
		}
		if series.Title != previous {
			s, err := slug.Unique(ctx, series.Title, func(ctx context.Context, c string) (bool, error) {
				return h.Series.SlugExists(ctx, c, series.ID)
			})
			if err != nil {
				respondStoreError(ctx, w, err, "series")
				return
			}
			series.Slug = s
		}
		series.UpdatedAt = nowOr(h.NowFunc)
		if err := h.Series.Update(ctx, series); err != nil {
			respondStoreError(ctx, w, err, "series")
			return
		}
		respondJSON(ctx, w, http.StatusOK, series)
	case http.MethodDelete:
		if err := h.Series.SoftDelete(ctx, series.ID); err != nil {
			respondStoreError(ctx, w, err, "series")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// VideoList handles GET /api/series/{id}/videos, oldest episode first by default.
func (h SeriesHandler) VideoList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	series, ok := h.load(w, r)
	if !ok {
		return
	}
	listPublished(w, r, h.Videos, repositories.VideoFilter{Series: series.ID, Sort: repositories.SortOldest})
}

func (h SeriesHandler) load(w http.ResponseWriter, r *http.Request) (models.Series, bool) {
	ctx := r.Context()
	key := strings.TrimSpace(r.PathValue("id"))
	series, err := findByIDOrSlug(ctx, key, h.Series.FindByID, h.Series.FindBySlug)
	if err != nil {
		respondStoreError(ctx, w, err, "series")
		return models.Series{}, false
	}
	if series.Status != models.StatusActive && !isAdmin(ctx) {
		respondError(ctx, w, http.StatusNotFound, "series not found")
		return models.Series{}, false
	}
	return series, true
}

func applySeries(ctx context.Context, w http.ResponseWriter, s *models.Series, req seriesRequest) bool {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			respondError(ctx, w, http.StatusBadRequest, "title must not be empty")
			return false
		}
		s.Title = title
	}
	if req.Description != nil {
		s.Description = strings.TrimSpace(*req.Description)
	}
	if req.Thumbnail != nil {
		s.Thumbnail = strings.TrimSpace(*req.Thumbnail)
	}
	if req.CategoryID != nil {
		s.CategoryID = optionalString(req.CategoryID)
	}
	if req.SortOrder != nil {
		s.SortOrder = *req.SortOrder
	}
	if req.Status != nil {
		if !validTaxonomyStatus(*req.Status) {
			respondError(ctx, w, http.StatusBadRequest, "invalid status")
			return false
		}
		s.Status = *req.Status
	}
	return true
}

// listPublished pages through published videos narrowed by base.
func listPublished(w http.ResponseWriter, r *http.Request, videos VideoStore, base repositories.VideoFilter) {
	ctx := r.Context()
	page, limit := models.NormalizePage(queryInt(r, "page", 1), queryInt(r, "limit", models.DefaultLimit))
	base.Page, base.Limit = page, limit
	base.Status = models.VideoStatusPublished
	if s := strings.TrimSpace(r.URL.Query().Get("sort")); s != "" {
		base.Sort = s
	}

	items, total, err := videos.List(ctx, base)
	if err != nil {
		respondStoreError(ctx, w, err, "videos")
		return
	}
	respondJSON(ctx, w, http.StatusOK, models.NewPage(items, page, limit, total))
}

func findByIDOrSlug[T any](ctx context.Context, key string, byID, bySlug func(context.Context, string) (T, error)) (T, error) {
	if key == "" {
		var zero T
		return zero, repositories.ErrNotFound
	}
	if _, err := uuid.Parse(key); err == nil {
		found, err := byID(ctx, key)
		if !errors.Is(err, repositories.ErrNotFound) {
			return found, err
		}
	}
	return bySlug(ctx, key)
}

func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return false
	}
	if !identity.IsAdmin() {
		respondError(ctx, w, http.StatusForbidden, "admin access required")
		return false
	}
	return true
}

func isAdmin(ctx context.Context) bool {
	identity, ok := auth.IdentityFromContext(ctx)
	return ok && identity.IsAdmin()
}

func wantsInactive(r *http.Request) bool {
	return r.URL.Query().Get("all") == "1" && isAdmin(r.Context())
}

func validTaxonomyStatus(status string) bool {
	return status == models.StatusActive || status == models.StatusInactive
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func nowOr(now func() time.Time) time.Time {
	if now != nil {
		return now()
	}
	return time.Now().UTC()
}
