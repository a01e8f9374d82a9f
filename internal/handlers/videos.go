package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vidcms/backend/internal/auth"
	"github.com/vidcms/backend/internal/logging"
	"github.com/vidcms/backend/internal/media"
	"github.com/vidcms/backend/internal/middleware"
	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/repositories"
	"github.com/vidcms/backend/internal/slug"
	"github.com/vidcms/backend/internal/storage"
)

const (
	multipartMemory     = 32 << 20
	multipartOverhead   = 1 << 20
	maxThumbnailBytes   = 10 << 20
	defaultRelatedLimit = 6
	maxRelatedLimit     = 24
	maxPlatformLength   = 32
)

var allowedVideoExtensions = map[string]struct{}{
	".mp4": {}, ".webm": {}, ".mov": {}, ".mkv": {}, ".avi": {}, ".m4v": {},
}

var allowedThumbnailTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// VideoHandler provides endpoints for uploading, browsing and engaging with videos.
type VideoHandler struct {
	Videos        VideoStore
	Interactions  InteractionStore
	Storage       storage.Storage
	Media         MediaQueue
	UploadLimiter RateLimiter
	Upload        UploadPolicy
	SignedURLTTL  time.Duration
	NowFunc       func() time.Time
}

// UploadPolicy bounds accepted uploads.
type UploadPolicy struct {
	MaxBytes    int64
	AllowedMIME []string
	SpoolDir    string
}

// Collection handles GET (list) and POST (upload) on /api/videos.
func (h VideoHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.upload(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// Item handles GET, PUT and DELETE on /api/videos/{id}. The id may also be a slug.
func (h VideoHandler) Item(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		video, ok := h.load(w, r)
		if !ok {
			return
		}
		respondJSON(r.Context(), w, http.StatusOK, video)
	case http.MethodPut:
		h.update(w, r)
	case http.MethodDelete:
		h.delete(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (h VideoHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, limit := models.NormalizePage(queryInt(r, "page", 1), queryInt(r, "limit", models.DefaultLimit))
	filter := repositories.VideoFilter{
		Page:     page,
		Limit:    limit,
		Category: strings.TrimSpace(q.Get("category")),
		Series:   strings.TrimSpace(q.Get("series")),
		Search:   strings.TrimSpace(q.Get("q")),
		Sort:     strings.TrimSpace(q.Get("sort")),
		Status:   models.VideoStatusPublished,
	}
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity.IsAdmin() {
		filter.Status = strings.TrimSpace(q.Get("status"))
		if filter.Status != "" && !validStatus(filter.Status) {
			respondError(ctx, w, http.StatusBadRequest, "invalid status")
			return
		}
	}

	videos, total, err := h.Videos.List(ctx, filter)
	if err != nil {
		respondStoreError(ctx, w, err, "videos")
		return
	}
	respondJSON(ctx, w, http.StatusOK, models.NewPage(videos, page, limit, total))
}

func (h VideoHandler) upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.Videos == nil || h.Storage == nil {
		logger.Error("upload dependencies unavailable", "hasVideos", h.Videos != nil, "hasStorage", h.Storage != nil)
		respondError(ctx, w, http.StatusInternalServerError, "upload service unavailable")
		return
	}
	if !allowRequest(w, r, h.UploadLimiter, "upload") {
		logger.Warn("upload rate limited", "userId", identity.UserID)
		return
	}

	maxBytes := h.Upload.MaxBytes
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(ctx, w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		logger.Warn("invalid upload form", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	if maxBytes > 0 && header.Size > maxBytes {
		respondError(ctx, w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	contentType := uploadContentType(header, ext)
	if !h.mimeAllowed(contentType) {
		logger.Warn("upload rejected content type", "contentType", contentType, "file", header.Filename)
		respondError(ctx, w, http.StatusBadRequest, fmt.Sprintf("unsupported content type %q", contentType))
		return
	}
	if _, ok := allowedVideoExtensions[ext]; !ok {
		logger.Warn("upload rejected extension", "extension", ext, "file", header.Filename)
		respondError(ctx, w, http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported file extension %q", ext))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
	}
	status := strings.TrimSpace(r.FormValue("status"))
	if status == "" {
		status = models.VideoStatusPublished
	}
	if !validStatus(status) {
		respondError(ctx, w, http.StatusBadRequest, "invalid status")
		return
	}

	now := h.now()
	video := models.Video{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(r.FormValue("description")),
		CategoryID:  optionalString(ptr(r.FormValue("categoryId"))),
		SeriesID:    optionalString(ptr(r.FormValue("seriesId"))),
		UserID:      &identity.UserID,
		Status:      status,
		StorageType: h.Storage.Type(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	video.Slug, err = slug.Unique(ctx, title, func(ctx context.Context, candidate string) (bool, error) {
		return h.Videos.SlugExists(ctx, candidate, "")
	})
	if err != nil {
		respondStoreError(ctx, w, err, "video")
		return
	}

	spoolPath, err := h.spool(file, ext)
	if err != nil {
		logger.Error("spool upload failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	keepSpool := false
	defer func() {
		if !keepSpool {
			_ = os.Remove(spoolPath)
		}
	}()

	obj, err := saveSpool(ctx, h.Storage, storage.VideoKey(video.ID, ext), spoolPath, contentType)
	if err != nil {
		logger.Error("save upload failed", "videoId", video.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	video.VideoURL = obj.URL
	video.VideoKey = obj.Key
	video.FileSize = obj.Size

	if thumb, ok := h.saveThumbnail(ctx, r, video.ID); ok {
		video.Thumbnail = thumb.URL
		video.ThumbnailKey = thumb.Key
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		h.removeObjects(ctx, video.VideoKey, video.ThumbnailKey)
		respondStoreError(ctx, w, err, "video")
		return
	}

	if h.Media != nil {
		job := media.Job{VideoID: video.ID, SourcePath: spoolPath, SourceKey: video.VideoKey, HasThumbnail: video.ThumbnailKey != ""}
		if err := h.Media.Enqueue(ctx, job); err != nil {
			logger.Warn("media processing not scheduled", "videoId", video.ID, "error", err)
		} else {
			keepSpool = true
		}
	}

	logger.Info("video uploaded", "videoId", video.ID, "size", video.FileSize, "storage", video.StorageType)
	respondJSON(ctx, w, http.StatusCreated, video)
}

func (h VideoHandler) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	video, ok := h.loadEditable(w, r)
	if !ok {
		return
	}

	var req updateVideoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			respondError(ctx, w, http.StatusBadRequest, "title must not be empty")
			return
		}
		if title != video.Title {
			s, err := slug.Unique(ctx, title, func(ctx context.Context, candidate string) (bool, error) {
				return h.Videos.SlugExists(ctx, candidate, video.ID)
			})
			if err != nil {
				respondStoreError(ctx, w, err, "video")
				return
			}
			video.Title, video.Slug = title, s
		}
	}
	if req.Description != nil {
		video.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		video.CategoryID = optionalString(req.CategoryID)
	}
	if req.SeriesID != nil {
		video.SeriesID = optionalString(req.SeriesID)
	}
	if req.Status != nil {
		if !validStatus(*req.Status) {
			respondError(ctx, w, http.StatusBadRequest, "invalid status")
			return
		}
		video.Status = *req.Status
	}
	video.UpdatedAt = h.now()

	if err := h.Videos.Update(ctx, video); err != nil {
		respondStoreError(ctx, w, err, "video")
		return
	}
	respondJSON(ctx, w, http.StatusOK, video)
}

func (h VideoHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	video, ok := h.loadEditable(w, r)
	if !ok {
		return
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		respondStoreError(ctx, w, err, "video")
		return
	}

	keys := []string{video.VideoKey, video.ThumbnailKey}
	if h.Storage != nil {
		if objects, err := h.Storage.List(ctx, "videos/"+video.ID+"/"); err != nil {
			logging.FromContext(ctx).Warn("list video objects", "videoId", video.ID, "error", err)
		} else {
			for _, obj := range objects {
				keys = append(keys, obj.Key)
			}
		}
	}
	h.removeObjects(ctx, keys...)

	logging.FromContext(ctx).Info("video deleted", "videoId", video.ID)
	w.WriteHeader(http.StatusNoContent)
}

// View handles POST /api/videos/{id}/view.
func (h VideoHandler) View(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	ctx := r.Context()
	video, ok := h.load(w, r)
	if !ok {
		return
	}

	event := models.ViewEvent{
		VideoID:   video.ID,
		UserID:    callerID(ctx),
		IP:        middleware.ClientIP(r),
		UserAgent: truncate(r.UserAgent(), 255),
		CreatedAt: h.now(),
	}
	counters, err := h.Interactions.RecordView(ctx, event)
	if err != nil {
		respondStoreError(ctx, w, err, "video")
		return
	}
	respondJSON(ctx, w, http.StatusOK, counters)
}

// Like handles POST (like) and DELETE (unlike) on /api/videos/{id}/like.
func (h VideoHandler) Like(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		methodNotAllowed(w, http.MethodPost, http.MethodDelete)
		return
	}
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	video, ok := h.load(w, r)
	if !ok {
		return
	}

	var (
		counters models.Counters
		changed  bool
		err      error
	)
	if r.Method == http.MethodPost {
		counters, changed, err = h.Interactions.Like(ctx, models.LikeEvent{
			VideoID:   video.ID,
			UserID:    &identity.UserID,
			IP:        middleware.ClientIP(r),
			CreatedAt: h.now(),
		})
	} else {
		counters, changed, err = h.Interactions.Unlike(ctx, video.ID, identity.UserID)
	}
	if err != nil {
		respondStoreError(ctx, w, err, "video")
		return
	}

	respondJSON(ctx, w, http.StatusOK, likeResponse{Counters: counters, Liked: r.Method == http.MethodPost, Changed: changed})
}

// Share handles POST /api/videos/{id}/share.
func (h VideoHandler) Share(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	ctx := r.Context()
	video, ok := h.load(w, r)
	if !ok {
		return
	}

	var req shareRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	if platform == "" {
		platform = "link"
	}
	if len(platform) > maxPlatformLength {
		respondError(ctx, w, http.StatusBadRequest, "platform name too long")
		return
	}

	counters, err := h.Interactions.RecordShare(ctx, models.ShareEvent{
		VideoID:   video.ID,
		UserID:    callerID(ctx),
		Platform:  platform,
		IP:        middleware.ClientIP(r),
		CreatedAt: h.now(),
	})
	if err != nil {
		respondStoreError(ctx, w, err, "video")
		return
	}
	respondJSON(ctx, w, http.StatusOK, counters)
}

// Related handles GET /api/videos/{id}/related.
func (h VideoHandler) Related(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx := r.Context()
	video, ok := h.load(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", defaultRelatedLimit)
	if limit <= 0 {
		limit = defaultRelatedLimit
	}
	if limit > maxRelatedLimit {
		limit = maxRelatedLimit
	}

	related, err := h.Videos.Related(ctx, video, limit)
	if err != nil {
		logging.FromContext(ctx).Warn("related videos unavailable", "videoId", video.ID, "error", err)
		related = []models.Video{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"items": related})
}

// Download handles GET /api/videos/{id}/download with a time-limited URL. Pass redirect=1
// to be redirected straight to it.
func (h VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	ctx := r.Context()
	video, ok := h.load(w, r)
	if !ok {
		return
	}
	if video.VideoKey == "" || h.Storage == nil {
		respondError(ctx, w, http.StatusNotFound, "video file not available")
		return
	}

	ttl := h.SignedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	url, err := h.Storage.SignedURL(ctx, video.VideoKey, ttl)
	if err != nil {
		logging.FromContext(ctx).Error("sign download url", "videoId", video.ID, "error", err)
		respondError(ctx, w, http.StatusNotFound, "video file not available")
		return
	}

	if r.URL.Query().Get("redirect") == "1" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"url": url, "expiresAt": h.now().Add(ttl)})
}

// load resolves {id} as an id or slug and hides unpublished videos from everyone but their
// owner and admins.
func (h VideoHandler) load(w http.ResponseWriter, r *http.Request) (models.Video, bool) {
	ctx := r.Context()
	video, err := findVideo(ctx, h.Videos, r.PathValue("id"))
	if err != nil {
		respondStoreError(ctx, w, err, "video")
		return models.Video{}, false
	}
	if video.Status != models.VideoStatusPublished && !canManage(ctx, video) {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return models.Video{}, false
	}
	return video, true
}

func (h VideoHandler) loadEditable(w http.ResponseWriter, r *http.Request) (models.Video, bool) {
	ctx := r.Context()
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return models.Video{}, false
	}
	video, ok := h.load(w, r)
	if !ok {
		return models.Video{}, false
	}
	if !canManage(ctx, video) {
		logging.FromContext(ctx).Warn("video edit denied", "videoId", video.ID, "userId", identity.UserID)
		respondError(ctx, w, http.StatusForbidden, "not allowed to modify this video")
		return models.Video{}, false
	}
	return video, true
}

func (h VideoHandler) spool(file multipart.File, ext string) (string, error) {
	dir := h.Upload.SpoolDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	out, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

func (h VideoHandler) saveThumbnail(ctx context.Context, r *http.Request, videoID string) (storage.Object, bool) {
	file, header, err := r.FormFile("thumbnail")
	if err != nil {
		return storage.Object{}, false
	}
	defer file.Close()

	logger := logging.FromContext(ctx)
	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedThumbnailTypes[contentType]
	if !ok || header.Size > maxThumbnailBytes {
		logger.Warn("ignoring thumbnail upload", "contentType", contentType, "size", header.Size)
		return storage.Object{}, false
	}

	obj, err := h.Storage.Save(ctx, storage.ThumbnailKey(videoID, ext), file, contentType)
	if err != nil {
		logger.Warn("save thumbnail failed", "videoId", videoID, "error", err)
		return storage.Object{}, false
	}
	return obj, true
}

func (h VideoHandler) removeObjects(ctx context.Context, keys ...string) {
	if h.Storage == nil {
		return
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if err := h.Storage.Delete(ctx, key); err != nil {
			logging.FromContext(ctx).Warn("delete stored object", "key", key, "error", err)
		}
	}
}

func (h VideoHandler) mimeAllowed(contentType string) bool {
	if len(h.Upload.AllowedMIME) == 0 {
		return strings.HasPrefix(contentType, "video/")
	}
	for _, allowed := range h.Upload.AllowedMIME {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type updateVideoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	CategoryID  *string `json:"categoryId"`
	SeriesID    *string `json:"seriesId"`
	Status      *string `json:"status"`
}

type shareRequest struct {
	Platform string `json:"platform"`
}

type likeResponse struct {
	models.Counters
	Liked   bool `json:"liked"`
	Changed bool `json:"changed"`
}

// findVideo looks key up as an id first and as a slug when it is not a UUID or no id matched.
func findVideo(ctx context.Context, videos VideoStore, key string) (models.Video, error) {
	return findByIDOrSlug(ctx, strings.TrimSpace(key), videos.FindByID, videos.FindBySlug)
}

func canManage(ctx context.Context, video models.Video) bool {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return false
	}
	if identity.IsAdmin() {
		return true
	}
	return video.UserID != nil && *video.UserID == identity.UserID
}

func callerID(ctx context.Context) *string {
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		id := identity.UserID
		return &id
	}
	return nil
}

func validStatus(status string) bool {
	switch status {
	case models.VideoStatusDraft, models.VideoStatusPublished, models.VideoStatusPrivate:
		return true
	}
	return false
}

func uploadContentType(header *multipart.FileHeader, ext string) string {
	ct := strings.TrimSpace(header.Header.Get("Content-Type"))
	if ct == "" || ct == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			ct = byExt
		}
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}

func saveSpool(ctx context.Context, store storage.Storage, key, path, contentType string) (storage.Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return storage.Object{}, err
	}
	defer f.Close()
	return store.Save(ctx, key, f, contentType)
}

// truncate returns valid UTF-8 of at most n bytes, cutting on a rune boundary. Header values
// may carry arbitrary bytes, which Postgres rejects in TEXT columns.
func truncate(s string, n int) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func ptr(s string) *string { return &s }
