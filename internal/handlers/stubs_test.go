package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vidcms/backend/internal/auth"
	"github.com/vidcms/backend/internal/feed"
	"github.com/vidcms/backend/internal/media"
	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/repositories"
)

var fixedNow = func() time.Time { return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC) }

func asUser(r *http.Request, id, role string) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: id, Role: role}))
}

type userStoreStub struct {
	mu        sync.Mutex
	users     map[string]models.User
	lastLogin map[string]time.Time
	err       error
}

func newUserStoreStub(users ...models.User) *userStoreStub {
	s := &userStoreStub{users: make(map[string]models.User), lastLogin: make(map[string]time.Time)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *userStoreStub) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *userStoreStub) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.User{}, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return u, nil
}

func (s *userStoreStub) FindByLogin(_ context.Context, login string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.User{}, s.err
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, login) || u.Username == login {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *userStoreStub) List(_ context.Context, page, limit int) ([]models.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	start := (page - 1) * limit
	if start >= len(out) {
		return nil, total, nil
	}
	end := min(start+limit, len(out))
	return out[start:end], total, nil
}

func (s *userStoreStub) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLogin[id] = at
	return nil
}

type videoStoreStub struct {
	videos    map[string]models.Video
	created   []models.Video
	updated   []models.Video
	deleted   []string
	filter    repositories.VideoFilter
	createErr error
	listErr   error
	related   []models.Video
}

func newVideoStoreStub(videos ...models.Video) *videoStoreStub {
	s := &videoStoreStub{videos: make(map[string]models.Video)}
	for _, v := range videos {
		s.videos[v.ID] = v
	}
	return s
}

func (s *videoStoreStub) Create(_ context.Context, video models.Video) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, video)
	s.videos[video.ID] = video
	return nil
}

func (s *videoStoreStub) FindByID(_ context.Context, id string) (models.Video, error) {
	v, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return v, nil
}

func (s *videoStoreStub) FindBySlug(_ context.Context, slug string) (models.Video, error) {
	for _, v := range s.videos {
		if v.Slug == slug {
			return v, nil
		}
	}
	return models.Video{}, repositories.ErrNotFound
}

func (s *videoStoreStub) List(_ context.Context, filter repositories.VideoFilter) ([]models.Video, int64, error) {
	s.filter = filter
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	var out []models.Video
	for _, v := range s.videos {
		if filter.Status != "" && v.Status != filter.Status {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (s *videoStoreStub) Update(_ context.Context, video models.Video) error {
	if _, ok := s.videos[video.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.updated = append(s.updated, video)
	s.videos[video.ID] = video
	return nil
}

func (s *videoStoreStub) Delete(_ context.Context, id string) error {
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	s.deleted = append(s.deleted, id)
	delete(s.videos, id)
	return nil
}

func (s *videoStoreStub) SlugExists(_ context.Context, slug, excludeID string) (bool, error) {
	for _, v := range s.videos {
		if v.Slug == slug && v.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *videoStoreStub) Related(_ context.Context, _ models.Video, limit int) ([]models.Video, error) {
	if len(s.related) > limit {
		return s.related[:limit], nil
	}
	return s.related, nil
}

type interactionStub struct {
	counters models.Counters
	views    []models.ViewEvent
	likes    []models.LikeEvent
	shares   []models.ShareEvent
	unliked  []string
	err      error
}

func (s *interactionStub) RecordView(_ context.Context, event models.ViewEvent) (models.Counters, error) {
	if s.err != nil {
		return models.Counters{}, s.err
	}
	s.views = append(s.views, event)
	s.counters.Views++
	return s.counters, nil
}

func (s *interactionStub) Like(_ context.Context, event models.LikeEvent) (models.Counters, bool, error) {
	if s.err != nil {
		return models.Counters{}, false, s.err
	}
	for _, l := range s.likes {
		if *l.UserID == *event.UserID && l.VideoID == event.VideoID {
			return s.counters, false, nil
		}
	}
	s.likes = append(s.likes, event)
	s.counters.Likes++
	return s.counters, true, nil
}

func (s *interactionStub) Unlike(_ context.Context, videoID, userID string) (models.Counters, bool, error) {
	if s.err != nil {
		return models.Counters{}, false, s.err
	}
	s.unliked = append(s.unliked, videoID+":"+userID)
	return s.counters, false, nil
}

func (s *interactionStub) RecordShare(_ context.Context, event models.ShareEvent) (models.Counters, error) {
	if s.err != nil {
		return models.Counters{}, s.err
	}
	s.shares = append(s.shares, event)
	s.counters.Shares++
	return s.counters, nil
}

type adStoreStub struct {
	ads       map[string]models.AdSetting
	validated []models.AdSetting
	err       error
}

func newAdStoreStub(ads ...models.AdSetting) *adStoreStub {
	s := &adStoreStub{ads: make(map[string]models.AdSetting)}
	for _, ad := range ads {
		s.ads[ad.ID] = ad
	}
	return s
}

func (s *adStoreStub) Create(_ context.Context, ad models.AdSetting) error {
	s.ads[ad.ID] = ad
	return nil
}

func (s *adStoreStub) FindByID(_ context.Context, id string) (models.AdSetting, error) {
	ad, ok := s.ads[id]
	if !ok {
		return models.AdSetting{}, repositories.ErrNotFound
	}
	return ad, nil
}

func (s *adStoreStub) List(_ context.Context, activeOnly bool) ([]models.AdSetting, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.AdSetting
	for _, ad := range s.ads {
		if activeOnly && ad.Status != models.StatusActive {
			continue
		}
		out = append(out, ad)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *adStoreStub) ListActive(ctx context.Context) ([]models.AdSetting, error) {
	return s.List(ctx, true)
}

func (s *adStoreStub) Update(_ context.Context, ad models.AdSetting) error {
	if _, ok := s.ads[ad.ID]; !ok {
		return repositories.ErrNotFound
	}
	s.ads[ad.ID] = ad
	return nil
}

func (s *adStoreStub) Delete(_ context.Context, id string) error {
	if _, ok := s.ads[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.ads, id)
	return nil
}

func (s *adStoreStub) SaveValidation(_ context.Context, ad models.AdSetting) error {
	s.validated = append(s.validated, ad)
	s.ads[ad.ID] = ad
	return nil
}

type feedStub struct {
	trending feed.Trending
	page     models.Page[models.Video]
	calls    []string
	flushed  int
	flushErr error
}

func (f *feedStub) Trending(_ context.Context, limit int, category string) feed.Trending {
	f.calls = append(f.calls, "trending:"+category)
	return f.trending
}

func (f *feedStub) Latest(_ context.Context, page, limit int, category string) models.Page[models.Video] {
	f.calls = append(f.calls, "latest:"+category)
	return f.page
}

func (f *feedStub) Popular(_ context.Context, page, limit int, category string) models.Page[models.Video] {
	f.calls = append(f.calls, "popular:"+category)
	return f.page
}

func (f *feedStub) Flush(context.Context) error {
	f.flushed++
	return f.flushErr
}

type queueStub struct {
	jobs []media.Job
	err  error
}

func (q *queueStub) Enqueue(_ context.Context, job media.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}
