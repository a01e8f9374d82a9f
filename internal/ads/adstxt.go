package ads

import (
	"sort"
	"strings"

	"github.com/vidcms/backend/internal/models"
)

// GoogleCertificationID is the TAG id Google publishes for its ads.txt records.
const GoogleCertificationID = "f08c47fec0942fa0"

// GenerateAdsTxt renders an ads.txt body declaring Google as a direct seller for every
// publisher id found on active settings, followed by any extra records.
func GenerateAdsTxt(settings []models.AdSetting, extra []string) string {
	lines := make(map[string]struct{})

	for _, ad := range settings {
		if ad.Status != models.StatusActive {
			continue
		}
		if ad.Type != models.AdTypeAdSense && ad.Type != models.AdTypeGoogleAds {
			continue
		}
		pub := ad.PublisherID
		if pub == "" {
			pub = Validate(ad.Code, ad.Type).PublisherID
		}
		if pub == "" {
			continue
		}
		lines["google.com, "+pub+", DIRECT, "+GoogleCertificationID] = struct{}{}
	}

	for _, line := range extra {
		if line = strings.TrimSpace(line); line != "" {
			lines[line] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(lines))
	for line := range lines {
		sorted = append(sorted, line)
	}
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString("# ads.txt generated by vidcms\n")
	for _, line := range sorted {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
