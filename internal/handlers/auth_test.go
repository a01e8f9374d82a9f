package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vidcms/backend/internal/auth"
	"github.com/vidcms/backend/internal/middleware"
	"github.com/vidcms/backend/internal/models"
)

func newAuthFixture(t *testing.T) (AuthHandler, *userStoreStub, *auth.Manager) {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	users := newUserStoreStub(
		models.User{ID: "user-1", Username: "alice", Email: "alice@example.com", Password: hash, Role: models.RoleUser, Status: models.UserStatusActive},
		models.User{ID: "user-2", Username: "bob", Email: "bob@example.com", Password: hash, Role: models.RoleUser, Status: models.UserStatusDisabled},
	)
	manager := auth.NewManager("test-secret", time.Minute, time.Hour, auth.NewInMemorySessionStore(), users)
	return AuthHandler{Users: users, Sessions: manager, NowFunc: fixedNow}, users, manager
}

func TestAuthHandlerLogin(t *testing.T) {
	handler, users, manager := newAuthFixture(t)

	body, err := json.Marshal(loginRequest{Login: "alice", Password: "password123"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tokens.AccessToken == "" || resp.Tokens.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Tokens)
	}
	if resp.User == nil || resp.User.ID != "user-1" {
		t.Fatalf("expected user in response, got %+v", resp.User)
	}

	identity, err := manager.Verify(resp.Tokens.AccessToken)
	if err != nil || identity.UserID != "user-1" {
		t.Fatalf("issued token does not verify: %+v %v", identity, err)
	}
	if got := users.lastLogin["user-1"]; !got.Equal(fixedNow()) {
		t.Fatalf("expected last login to be recorded, got %v", got)
	}

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	if c := cookies[middleware.SessionCookie]; c == nil || c.Value != resp.Tokens.AccessToken || !c.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %+v", c)
	}
	if c := cookies[refreshCookie]; c == nil || c.Path != "/api/auth" {
		t.Fatalf("expected refresh cookie scoped to /api/auth, got %+v", c)
	}
}

func TestAuthHandlerLoginByEmailField(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"email":"ALICE@example.com","password":"password123"}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
}

func TestAuthHandlerLoginFailures(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	cases := []struct {
		name       string
		method     string
		body       string
		wantStatus int
	}{
		{"wrongMethod", http.MethodGet, `{}`, http.StatusMethodNotAllowed},
		{"badJSON", http.MethodPost, `{`, http.StatusBadRequest},
		{"unknownField", http.MethodPost, `{"login":"alice","password":"x","extra":1}`, http.StatusBadRequest},
		{"missingPassword", http.MethodPost, `{"login":"alice"}`, http.StatusBadRequest},
		{"unknownUser", http.MethodPost, `{"login":"carol","password":"password123"}`, http.StatusUnauthorized},
		{"wrongPassword", http.MethodPost, `{"login":"alice","password":"nope-nope"}`, http.StatusUnauthorized},
		{"disabled", http.MethodPost, `{"login":"bob","password":"password123"}`, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/auth/login", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

func TestAuthHandlerLoginRateLimited(t *testing.T) {
	handler, _, _ := newAuthFixture(t)
	handler.LoginLimiter = denyLimiter{}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{"login":"alice","password":"password123"}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestAuthHandlerLoginMissingDeps(t *testing.T) {
	handler := AuthHandler{}
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}

func TestAuthHandlerRefresh(t *testing.T) {
	handler, users, manager := newAuthFixture(t)
	user, _ := users.FindByID(t.Context(), "user-1")
	tokens, err := manager.Issue(t.Context(), user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	body, _ := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp authResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Tokens.RefreshToken == "" || resp.Tokens.RefreshToken == tokens.RefreshToken {
		t.Fatalf("expected rotated refresh token, got %+v", resp.Tokens)
	}

	// The consumed token must not be accepted twice.
	req = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	handler.Refresh(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for reused token got %d", rec.Code)
	}
}

func TestAuthHandlerRefreshFromCookie(t *testing.T) {
	handler, users, manager := newAuthFixture(t)
	user, _ := users.FindByID(t.Context(), "user-1")
	tokens, err := manager.Issue(t.Context(), user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: tokens.RefreshToken})
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestAuthHandlerRefreshValidation(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/refresh", nil)
	rec := httptest.NewRecorder()
	handler.Refresh(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	rec = httptest.NewRecorder()
	handler.Refresh(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewBufferString(`{"refreshToken":"unknown"}`))
	rec = httptest.NewRecorder()
	handler.Refresh(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthHandlerRefreshDisabledUser(t *testing.T) {
	handler, users, manager := newAuthFixture(t)
	user, _ := users.FindByID(t.Context(), "user-2")
	tokens, err := manager.Issue(t.Context(), user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	body, _ := json.Marshal(refreshRequest{RefreshToken: tokens.RefreshToken})
	rec := httptest.NewRecorder()
	handler.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/auth/refresh", bytes.NewReader(body)))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rec.Code)
	}
}

func TestAuthHandlerLogout(t *testing.T) {
	handler, users, manager := newAuthFixture(t)
	user, _ := users.FindByID(t.Context(), "user-1")
	tokens, err := manager.Issue(t.Context(), user)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookie, Value: tokens.RefreshToken})
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rec.Code)
	}
	cleared := map[string]string{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = c.Path
		}
	}
	if cleared[middleware.SessionCookie] != "/" || cleared[refreshCookie] != "/api/auth" {
		t.Fatalf("expected both cookies cleared on their paths, got %v", cleared)
	}

	if _, err := manager.Refresh(t.Context(), tokens.RefreshToken); err == nil {
		t.Fatal("expected revoked refresh token to be rejected")
	}
}

func TestAuthHandlerMe(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	handler.Me(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Me(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), "user-1", models.RoleUser))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var user models.User
	if err := json.NewDecoder(rec.Body).Decode(&user); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if user.Username != "alice" || user.Password != "" {
		t.Fatalf("unexpected user payload %+v", user)
	}
}
