package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vidcms/backend/internal/auth"
	"github.com/vidcms/backend/internal/logging"
	"github.com/vidcms/backend/internal/middleware"
	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/repositories"
)

// refreshCookie carries the refresh token for browser clients.
const refreshCookie = "vidcms_refresh"

// AuthHandler implements user authentication endpoints.
type AuthHandler struct {
	Users        UserStore
	Sessions     SessionManager
	LoginLimiter RateLimiter
	SecureCookie bool
	NowFunc      func() time.Time
}

// Login handles POST /api/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Users == nil || h.Sessions == nil {
		logger.Error("authentication dependencies unavailable", "hasUsers", h.Users != nil, "hasSessions", h.Sessions != nil)
		respondError(ctx, w, http.StatusInternalServerError, "authentication services unavailable")
		return
	}
	if !allowRequest(w, r, h.LoginLimiter, "login") {
		logger.Warn("login rate limited")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" {
		req.Login = strings.TrimSpace(req.Email)
	}
	if req.Login == "" || req.Password == "" {
		logger.Warn("login missing credentials", "login", req.Login)
		respondError(ctx, w, http.StatusBadRequest, "login and password are required")
		return
	}

	user, err := h.Users.FindByLogin(ctx, req.Login)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login user lookup failed", "login", req.Login, "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to sign in")
			return
		}
		logger.Warn("login unknown user", "login", req.Login)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if user.Status == models.UserStatusDisabled {
		logger.Warn("login disabled account", "userId", user.ID)
		respondError(ctx, w, http.StatusForbidden, "account disabled")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	if err := h.Users.UpdateLastLogin(ctx, user.ID, h.now()); err != nil {
		logger.Warn("failed to record last login", "userId", user.ID, "error", err)
	}

	h.setCookies(w, tokens)
	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens, User: &user})
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Sessions == nil {
		logger.Error("session manager unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "session service unavailable")
		return
	}

	token := h.refreshToken(w, r)
	if token == "" {
		logger.Warn("missing refresh token")
		respondError(ctx, w, http.StatusBadRequest, "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, auth.ErrRefreshTokenExpired), errors.Is(err, auth.ErrSessionNotFound):
			status = http.StatusUnauthorized
		case errors.Is(err, auth.ErrUserDisabled):
			status = http.StatusForbidden
		}
		logger.Warn("refresh failed", "error", err, "status", status)
		respondError(ctx, w, status, "unable to refresh session")
		return
	}

	h.setCookies(w, tokens)
	respondJSON(ctx, w, http.StatusOK, authResponse{Tokens: tokens})
}

// Logout revokes the refresh token and clears the session cookies.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	if token := h.refreshToken(w, r); token != "" && h.Sessions != nil {
		h.Sessions.Revoke(r.Context(), token)
	}

	for name, path := range map[string]string{middleware.SessionCookie: "/", refreshCookie: "/api/auth"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the signed-in account.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.Users.FindByID(ctx, identity.UserID)
	if err != nil {
		respondStoreError(ctx, w, err, "user")
		return
	}
	respondJSON(ctx, w, http.StatusOK, user)
}

type loginRequest struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Tokens models.SessionTokens `json:"tokens"`
	User   *models.User         `json:"user,omitempty"`
}

// refreshToken reads the token from the JSON body, falling back to the refresh cookie.
func (h AuthHandler) refreshToken(w http.ResponseWriter, r *http.Request) string {
	if r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err == nil {
			if token := strings.TrimSpace(req.RefreshToken); token != "" {
				return token
			}
		}
	}
	if c, err := r.Cookie(refreshCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func (h AuthHandler) setCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.AccessExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    tokens.RefreshToken,
		Path:     "/api/auth",
		Expires:  tokens.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
