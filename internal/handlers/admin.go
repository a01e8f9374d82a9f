package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidcms/backend/internal/ads"
	"github.com/vidcms/backend/internal/auth"
	"github.com/vidcms/backend/internal/logging"
	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/storage"
)

const dashboardListSize = 5

// AdminHandler serves the admin API. Routes are expected to sit behind RequireAdmin.
type AdminHandler struct {
	Analytics AnalyticsStore
	Users     UserStore
	Ads       AdStore
	Storage   storage.Storage
	Feed      FeedService
	NowFunc   func() time.Time
}

// Dashboard handles GET /api/admin/stats. Query failures degrade to zero values.
func (h AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	stats, err := h.Analytics.DashboardStats(ctx)
	if err != nil {
		logger.Warn("dashboard stats unavailable", "error", err)
		stats = models.DashboardStats{}
	}
	top, err := h.Analytics.TopVideos(ctx, dashboardListSize)
	if err != nil {
		logger.Warn("top videos unavailable", "error", err)
	}
	recent, err := h.Analytics.RecentVideos(ctx, dashboardListSize)
	if err != nil {
		logger.Warn("recent videos unavailable", "error", err)
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"stats":        stats,
		"topVideos":    nonNilSlice(top),
		"recentVideos": nonNilSlice(recent),
	})
}

// ViewHistory handles GET /api/admin/analytics?days=N.
func (h AdminHandler) ViewHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx := r.Context()

	days := queryInt(r, "days", 30)
	views, err := h.Analytics.DailyViews(ctx, days)
	if err != nil {
		logging.FromContext(ctx).Warn("daily views unavailable", "days", days, "error", err)
		views = []models.DailyCount{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"days": len(views), "views": views})
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Accounts handles GET (paginated list) and POST (create) on /api/admin/users.
func (h AdminHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		page, limit := models.NormalizePage(queryInt(r, "page", 1), queryInt(r, "limit", models.DefaultLimit))
		users, total, err := h.Users.List(ctx, page, limit)
		if err != nil {
			respondStoreError(ctx, w, err, "users")
			return
		}
		respondJSON(ctx, w, http.StatusOK, models.NewPage(users, page, limit, total))
	case http.MethodPost:
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.ToLower(strings.TrimSpace(req.Email))
		if req.Role == "" {
			req.Role = models.RoleUser
		}

		switch {
		case req.Username == "" || req.Email == "":
			respondError(ctx, w, http.StatusBadRequest, "username and email are required")
			return
		case req.Role != models.RoleUser && req.Role != models.RoleAdmin:
			respondError(ctx, w, http.StatusBadRequest, "role must be user or admin")
			return
		}
		if _, err := mail.ParseAddress(req.Email); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid email address")
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrPasswordTooShort) {
				respondError(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
				return
			}
			logging.FromContext(ctx).Error("hash password", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
			return
		}

		now := nowOr(h.NowFunc)
		user := models.User{
			ID:        uuid.NewString(),
			Username:  req.Username,
			Email:     req.Email,
			Password:  hash,
			Role:      req.Role,
			Status:    models.UserStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := h.Users.Create(ctx, user); err != nil {
			respondStoreError(ctx, w, err, "user")
			return
		}
		logging.FromContext(ctx).Info("user created", "userId", user.ID, "role", user.Role)
		respondJSON(ctx, w, http.StatusCreated, user)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// StorageUsage handles GET /api/admin/storage?prefix=.
func (h AdminHandler) StorageUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx := r.Context()
	if h.Storage == nil {
		respondError(ctx, w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}

	objects, err := h.Storage.List(ctx, r.URL.Query().Get("prefix"))
	if err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			respondError(ctx, w, http.StatusBadRequest, "invalid prefix")
			return
		}
		logging.FromContext(ctx).Error("list storage objects", "error", err)
		respondError(ctx, w, http.StatusBadGateway, "storage listing failed")
		return
	}

	var total int64
	for _, obj := range objects {
		total += obj.Size
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"type":       h.Storage.Type(),
		"objects":    nonNilSlice(objects),
		"count":      len(objects),
		"totalBytes": total,
	})
}

type adRequest struct {
	Name     *string `json:"name"`
	Type     *string `json:"type"`
	Code     *string `json:"code"`
	Position *string `json:"position"`
	Status   *string `json:"status"`
}

type validateRequest struct {
	Code string `json:"code"`
	Type string `json:"type"`
}

type adResponse struct {
	Ad         models.AdSetting `json:"ad"`
	Validation ads.Result       `json:"validation"`
}

// AdsCollection handles GET (list, active=1 to filter) and POST on /api/admin/ads. Invalid
// snippets may only be stored inactive.
func (h AdminHandler) AdsCollection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		list, err := h.Ads.List(ctx, r.URL.Query().Get("active") == "1")
		if err != nil {
			respondStoreError(ctx, w, err, "ads")
			return
		}
		respondJSON(ctx, w, http.StatusOK, map[string]any{"items": nonNilSlice(list)})
	case http.MethodPost:
		var req adRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}
		now := nowOr(h.NowFunc)
		ad := models.AdSetting{
			ID:        uuid.NewString(),
			Position:  models.AdPositionHeader,
			Status:    models.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if !applyAd(w, r, &ad, req) {
			return
		}
		res, ok := h.validateForSave(w, r, &ad, now)
		if !ok {
			return
		}
		if err := h.Ads.Create(ctx, ad); err != nil {
			respondStoreError(ctx, w, err, "ad")
			return
		}
		respondJSON(ctx, w, http.StatusCreated, adResponse{Ad: ad, Validation: res})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// AdsItem handles GET, PUT and DELETE on /api/admin/ads/{id}.
func (h AdminHandler) AdsItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet && r.Method != http.MethodPut && r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		return
	}

	id := r.PathValue("id")
	if r.Method == http.MethodDelete {
		if err := h.Ads.Delete(ctx, id); err != nil {
			respondStoreError(ctx, w, err, "ad")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	ad, err := h.Ads.FindByID(ctx, id)
	if err != nil {
		respondStoreError(ctx, w, err, "ad")
		return
	}
	if r.Method == http.MethodGet {
		respondJSON(ctx, w, http.StatusOK, ad)
		return
	}

	var req adRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !applyAd(w, r, &ad, req) {
		return
	}
	now := nowOr(h.NowFunc)
	res, ok := h.validateForSave(w, r, &ad, now)
	if !ok {
		return
	}
	ad.UpdatedAt = now
	if err := h.Ads.Update(ctx, ad); err != nil {
		respondStoreError(ctx, w, err, "ad")
		return
	}
	respondJSON(ctx, w, http.StatusOK, adResponse{Ad: ad, Validation: res})
}

// ValidateSnippet handles POST /api/admin/ads/validate without persisting anything.
func (h AdminHandler) ValidateSnippet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	ctx := r.Context()
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	respondJSON(ctx, w, http.StatusOK, ads.Validate(req.Code, req.Type))
}

// RevalidateAd handles POST /api/admin/ads/{id}/validate, storing the fresh result.
func (h AdminHandler) RevalidateAd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	ctx := r.Context()

	ad, err := h.Ads.FindByID(ctx, r.PathValue("id"))
	if err != nil {
		respondStoreError(ctx, w, err, "ad")
		return
	}

	res := ads.Validate(ad.Code, ad.Type)
	ads.Apply(&ad, res)
	now := nowOr(h.NowFunc)
	ad.ValidatedAt = &now
	if err := h.Ads.SaveValidation(ctx, ad); err != nil {
		respondStoreError(ctx, w, err, "ad")
		return
	}
	respondJSON(ctx, w, http.StatusOK, adResponse{Ad: ad, Validation: res})
}

// FlushCache handles POST /api/admin/cache/flush.
func (h AdminHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	ctx := r.Context()
	if err := h.Feed.Flush(ctx); err != nil {
		logging.FromContext(ctx).Error("flush feed cache", "error", err)
		respondError(ctx, w, http.StatusBadGateway, "cache flush failed")
		return
	}
	logging.FromContext(ctx).Info("feed cache flushed")
	w.WriteHeader(http.StatusNoContent)
}

// validateForSave attaches a validation result to ad. An active ad with errors is rejected
// with 422.
func (h AdminHandler) validateForSave(w http.ResponseWriter, r *http.Request, ad *models.AdSetting, now time.Time) (ads.Result, bool) {
	res := ads.Validate(ad.Code, ad.Type)
	ads.Apply(ad, res)
	ad.ValidatedAt = &now

	if !res.Valid && ad.Status == models.StatusActive {
		respondJSON(r.Context(), w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "ad code failed validation",
			"validation": res,
		})
		return res, false
	}
	return res, true
}

func applyAd(w http.ResponseWriter, r *http.Request, ad *models.AdSetting, req adRequest) bool {
	ctx := r.Context()
	if req.Name != nil {
		ad.Name = strings.TrimSpace(*req.Name)
	}
	if req.Type != nil {
		ad.Type = strings.TrimSpace(*req.Type)
	}
	if req.Code != nil {
		ad.Code = strings.TrimSpace(*req.Code)
	}
	if req.Position != nil {
		ad.Position = strings.TrimSpace(*req.Position)
	}
	if req.Status != nil {
		ad.Status = strings.TrimSpace(*req.Status)
	}

	switch {
	case ad.Name == "":
		respondError(ctx, w, http.StatusBadRequest, "name is required")
		return false
	case !validAdType(ad.Type):
		respondError(ctx, w, http.StatusBadRequest, "type must be adsense, google_ads, custom or analytics")
		return false
	case !validAdPosition(ad.Position):
		respondError(ctx, w, http.StatusBadRequest, "invalid position")
		return false
	case !validTaxonomyStatus(ad.Status):
		respondError(ctx, w, http.StatusBadRequest, "invalid status")
		return false
	}
	return true
}

func validAdType(t string) bool {
	switch t {
	case models.AdTypeAdSense, models.AdTypeGoogleAds, models.AdTypeCustom, models.AdTypeAnalytics:
		return true
	}
	return false
}

func validAdPosition(p string) bool {
	switch p {
	case models.AdPositionHeader, models.AdPositionFooter, models.AdPositionSidebar,
		models.AdPositionBeforeVideo, models.AdPositionAfterVideo, models.AdPositionInFeed:
		return true
	}
	return false
}
