package feed

import (
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/feeds"

	"github.com/vidcms/backend/internal/models"
)

// Site describes the channel an RSS feed belongs to.
type Site struct {
	Title       string
	URL         string
	Description string
}

// RenderRSS renders videos as an RSS 2.0 document linking to their embed pages.
func RenderRSS(site Site, videos []models.Video, now time.Time) (string, error) {
	base := strings.TrimSuffix(site.URL, "/")
	f := &feeds.Feed{
		Title:       site.Title,
		Link:        &feeds.Link{Href: base + "/"},
		Description: site.Description,
		Created:     now,
	}

	for _, v := range videos {
		item := &feeds.Item{
			Id:          v.ID,
			Title:       v.Title,
			Link:        &feeds.Link{Href: base + "/embed/" + v.Slug},
			Description: v.Description,
			Created:     v.CreatedAt,
			Updated:     v.UpdatedAt,
		}
		if v.VideoURL != "" {
			item.Enclosure = &feeds.Enclosure{
				Url:    absoluteURL(base, v.VideoURL),
				Length: strconv.FormatInt(v.FileSize, 10),
				Type:   "video/mp4",
			}
		}
		f.Items = append(f.Items, item)
	}

	return f.ToRss()
}

func absoluteURL(base, u string) string {
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	return base + "/" + strings.TrimPrefix(u, "/")
}
