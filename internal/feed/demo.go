package feed

import (
	"time"

	"github.com/vidcms/backend/internal/models"
)

var demoCatalog = []struct {
	slug, title, description string
	duration                 int
	views, likes, shares     int64
}{
	{"welcome-to-vidcms", "Welcome to vidcms", "A quick tour of the platform.", 95, 1200, 140, 32},
	{"uploading-your-first-video", "Uploading your first video", "From file picker to published in a minute.", 182, 860, 97, 18},
	{"organising-with-series", "Organising with series", "Group episodes so viewers can binge them.", 240, 540, 61, 9},
	{"understanding-trending", "Understanding trending", "How views, likes and shares shape the ranking.", 131, 410, 44, 12},
}

// DemoVideos returns placeholder videos shown when the database has nothing to offer.
func DemoVideos(now time.Time) []models.Video {
	videos := make([]models.Video, 0, len(demoCatalog))
	for i, d := range demoCatalog {
		created := now.Add(-time.Duration(i+1) * 24 * time.Hour).UTC()
		videos = append(videos, models.Video{
			ID:          "demo-" + d.slug,
			Title:       d.title,
			Description: d.description,
			Slug:        d.slug,
			Duration:    d.duration,
			Views:       d.views,
			Likes:       d.likes,
			Shares:      d.shares,
			Status:      models.VideoStatusPublished,
			StorageType: models.StorageLocal,
			CreatedAt:   created,
			UpdatedAt:   created,
		})
	}
	return videos
}
