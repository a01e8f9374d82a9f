package ads

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vidcms/backend/internal/logging"
	"github.com/vidcms/backend/internal/models"
)

// Source lists ad settings that are currently active.
type Source interface {
	ListActive(ctx context.Context) ([]models.AdSetting, error)
}

// Inject places header snippets before </head> and footer snippets before </body>. Snippets
// of other positions are left to the caller. When a closing tag is absent the snippets are
// appended (footer) or prepended (header).
func Inject(html string, settings []models.AdSetting) string {
	var head, foot strings.Builder
	for _, ad := range settings {
		if ad.Status != models.StatusActive {
			continue
		}
		switch ad.Position {
		case models.AdPositionHeader:
			head.WriteString(ad.Code)
			head.WriteByte('\n')
		case models.AdPositionFooter:
			foot.WriteString(ad.Code)
			foot.WriteByte('\n')
		}
	}

	if head.Len() > 0 {
		html = insertBefore(html, "</head>", head.String(), true)
	}
	if foot.Len() > 0 {
		html = insertBefore(html, "</body>", foot.String(), false)
	}
	return html
}

// ByPosition groups active settings by their position.
func ByPosition(settings []models.AdSetting) map[string][]models.AdSetting {
	out := make(map[string][]models.AdSetting)
	for _, ad := range settings {
		if ad.Status != models.StatusActive {
			continue
		}
		out[ad.Position] = append(out[ad.Position], ad)
	}
	return out
}

func insertBefore(html, tag, snippet string, prependWhenMissing bool) string {
	idx := strings.LastIndex(strings.ToLower(html), tag)
	if idx < 0 {
		if prependWhenMissing {
			return snippet + html
		}
		return html + snippet
	}
	return html[:idx] + snippet + html[idx:]
}

// InjectMiddleware buffers text/html responses and injects the active ads into them. Other
// content types pass through untouched. Failing to load ads serves the page without them.
func InjectMiddleware(source Source) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if source == nil {
				next.ServeHTTP(w, r)
				return
			}

			buf := &bufferedResponse{header: make(http.Header)}
			next.ServeHTTP(buf, r)

			body := buf.body.Bytes()
			if strings.HasPrefix(buf.header.Get("Content-Type"), "text/html") {
				settings, err := source.ListActive(r.Context())
				if err != nil {
					logging.FromContext(r.Context()).Warn("load ads for injection", slog.Any("error", err))
				} else {
					body = []byte(Inject(string(body), settings))
				}
			}

			for key, values := range buf.header {
				w.Header()[key] = values
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(buf.status())
			_, _ = w.Write(body)
		})
	}
}

type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
	code   int
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.code == 0 {
		b.code = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.code == 0 {
		b.code = status
	}
}

func (b *bufferedResponse) status() int {
	if b.code == 0 {
		return http.StatusOK
	}
	return b.code
}
