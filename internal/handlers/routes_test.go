package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vidcms/backend/internal/auth"
	"github.com/vidcms/backend/internal/middleware"
	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/storage"
)

func TestRegisterRoutes(t *testing.T) {
	users := newUserStoreStub(
		models.User{ID: "admin-1", Username: "admin", Email: "admin@example.com", Role: models.RoleAdmin, Status: models.UserStatusActive},
		models.User{ID: "user-1", Username: "alice", Email: "alice@example.com", Role: models.RoleUser, Status: models.UserStatusActive},
	)
	manager := auth.NewManager("routes-secret", time.Minute, time.Hour, auth.NewInMemorySessionStore(), users)
	store, err := storage.NewLocalStorage(t.TempDir(), "/media")
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	if _, err := store.Save(t.Context(), "thumbnails/v1.jpg", strings.NewReader("jpeg"), "image/jpeg"); err != nil {
		t.Fatalf("save: %v", err)
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Users:         users,
		Sessions:      manager,
		Videos:        newVideoStoreStub(models.Video{ID: "v1", Slug: "clip", Status: models.VideoStatusPublished}),
		Interactions:  &interactionStub{},
		Ads:           newAdStoreStub(),
		Analytics:     &analyticsStub{},
		Feed:          &feedStub{},
		Storage:       store,
		ActionLimiter: middleware.NewIPRateLimiter(2, time.Minute, 2, time.Minute),
	})
	handler := middleware.Authenticate(manager)(mux)

	token := func(id string) string {
		user, _ := users.FindByID(t.Context(), id)
		tokens, err := manager.Issue(t.Context(), user)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		return tokens.AccessToken
	}
	adminToken, userToken := token("admin-1"), token("user-1")

	cases := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"meAnonymous", http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
		{"meUser", http.MethodGet, "/api/auth/me", userToken, http.StatusOK},
		{"adminAnonymous", http.MethodGet, "/api/admin/stats", "", http.StatusUnauthorized},
		{"adminAsUser", http.MethodGet, "/api/admin/stats", userToken, http.StatusForbidden},
		{"adminAsAdmin", http.MethodGet, "/api/admin/stats", adminToken, http.StatusOK},
		{"adsValidateLiteral", http.MethodGet, "/api/admin/ads/validate", adminToken, http.StatusMethodNotAllowed},
		{"video", http.MethodGet, "/api/videos/clip", "", http.StatusOK},
		{"trending", http.MethodGet, "/api/public/trending", "", http.StatusOK},
		{"adsTxt", http.MethodGet, "/ads.txt", "", http.StatusOK},
		{"media", http.MethodGet, "/media/thumbnails/v1.jpg", "", http.StatusOK},
		{"embedMissing", http.MethodGet, "/embed/nope", "", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("%s %s: expected %d got %d", tc.method, tc.path, tc.wantStatus, rec.Code)
			}
		})
	}

	t.Run("actionRateLimit", func(t *testing.T) {
		var last int
		for range 3 {
			req := httptest.NewRequest(http.MethodPost, "/api/videos/clip/view", nil)
			req.RemoteAddr = "198.51.100.7:5000"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			last = rec.Code
		}
		if last != http.StatusTooManyRequests {
			t.Fatalf("expected third view to be limited, got %d", last)
		}
	})
}
