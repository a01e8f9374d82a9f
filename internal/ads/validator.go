// Package ads validates third-party ad and analytics snippets and renders them into pages.
package ads

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/vidcms/backend/internal/models"
)

// Scoring penalties.
const (
	maxScore       = 100
	errorPenalty   = 25
	warningPenalty = 10
)

// Result is the outcome of validating one snippet.
type Result struct {
	Valid        bool     `json:"valid"`
	Score        int      `json:"score"`
	Errors       []string `json:"errors"`
	Warnings     []string `json:"warnings"`
	PublisherID  string   `json:"publisherId,omitempty"`
	AdSlot       string   `json:"adSlot,omitempty"`
	GAID         string   `json:"gaId,omitempty"`
	GTMID        string   `json:"gtmId,omitempty"`
	ConversionID string   `json:"conversionId,omitempty"`
	Domains      []string `json:"domains,omitempty"`
	ContentHash  string   `json:"contentHash"`
}

type rule struct {
	pattern *regexp.Regexp
	message string
}

var blockedPatterns = []rule{
	{regexp.MustCompile(`(?i)\beval\s*\(`), "eval() is not allowed"},
	{regexp.MustCompile(`(?i)\bnew\s+Function\s*\(`), "dynamic Function constructor is not allowed"},
	{regexp.MustCompile(`(?i)document\.cookie`), "access to document.cookie is not allowed"},
	{regexp.MustCompile(`(?i)document\.write\s*\(\s*['"]?\s*<\s*script`), "document.write of script tags is not allowed"},
	{regexp.MustCompile(`(?i)\b(?:window|document|top|self)\.location(?:\.href)?\s*=[^=]`), "page redirects are not allowed"},
	{regexp.MustCompile(`(?i)javascript\s*:`), "javascript: URLs are not allowed"},
	{regexp.MustCompile(`(?i)\batob\s*\(`), "base64-decoded payloads are not allowed"},
	{regexp.MustCompile(`(?i)String\.fromCharCode\s*\(`), "character-code obfuscation is not allowed"},
	{regexp.MustCompile(`(?i)coinhive|cryptonight|coin-hive|minero\.cc`), "crypto-mining scripts are not allowed"},
	{regexp.MustCompile(`(?i)localStorage\.|sessionStorage\.`), "access to browser storage is not allowed"},
}

var warningPatterns = []rule{
	{regexp.MustCompile(`(?i)<[a-z][^>]*\son[a-z]+\s*=`), "inline event handlers found"},
	{regexp.MustCompile(`(?i)<iframe\b`), "iframe embeds found"},
	{regexp.MustCompile(`(?i)setTimeout\s*\(\s*['"]`), "string-based setTimeout found"},
	{regexp.MustCompile(`(?i)http://`), "insecure http:// resource found"},
}

var (
	publisherPattern  = regexp.MustCompile(`ca-pub-(\d{16})`)
	adSlotPattern     = regexp.MustCompile(`data-ad-slot\s*=\s*["'](\d+)["']`)
	gaPattern         = regexp.MustCompile(`\b(G-[A-Z0-9]{6,12}|UA-\d{4,10}-\d{1,4})\b`)
	gtmPattern        = regexp.MustCompile(`\b(GTM-[A-Z0-9]{4,10})\b`)
	conversionPattern = regexp.MustCompile(`\b(AW-\d{6,12})\b`)
	urlPattern        = regexp.MustCompile(`(?i)(?:https?:)?//[a-z0-9.-]+\.[a-z]{2,}[^\s"'<>)]*`)
)

// AllowedDomains lists hosts (and their subdomains) snippets may load resources from.
var AllowedDomains = []string{
	"googlesyndication.com",
	"googletagmanager.com",
	"google-analytics.com",
	"googleadservices.com",
	"doubleclick.net",
	"google.com",
	"gstatic.com",
	"googletagservices.com",
	"adtrafficquality.google",
}

// Validate runs the static checks for snippet code of the given ad type.
func Validate(code, adType string) Result {
	code = strings.TrimSpace(code)
	res := Result{Errors: []string{}, Warnings: []string{}, ContentHash: ContentHash(code)}

	if code == "" {
		res.Errors = append(res.Errors, "ad code is empty")
		return res
	}

	switch adType {
	case models.AdTypeAdSense, models.AdTypeGoogleAds, models.AdTypeCustom, models.AdTypeAnalytics:
	default:
		res.Errors = append(res.Errors, fmt.Sprintf("unknown ad type %q", adType))
	}

	for _, r := range blockedPatterns {
		if r.pattern.MatchString(code) {
			res.Errors = append(res.Errors, r.message)
		}
	}
	for _, r := range warningPatterns {
		if r.pattern.MatchString(code) {
			res.Warnings = append(res.Warnings, r.message)
		}
	}

	if m := publisherPattern.FindStringSubmatch(code); m != nil {
		res.PublisherID = "pub-" + m[1]
	}
	if m := adSlotPattern.FindStringSubmatch(code); m != nil {
		res.AdSlot = m[1]
	}
	if m := gaPattern.FindStringSubmatch(code); m != nil {
		res.GAID = m[1]
	}
	if m := gtmPattern.FindStringSubmatch(code); m != nil {
		res.GTMID = m[1]
	}
	if m := conversionPattern.FindStringSubmatch(code); m != nil {
		res.ConversionID = m[1]
	}

	switch adType {
	case models.AdTypeAdSense:
		if res.PublisherID == "" {
			res.Errors = append(res.Errors, "AdSense code must contain a ca-pub-XXXXXXXXXXXXXXXX publisher id")
		}
		if res.AdSlot == "" && !strings.Contains(code, "adsbygoogle.js") {
			res.Warnings = append(res.Warnings, "no data-ad-slot found")
		}
	case models.AdTypeGoogleAds:
		if res.ConversionID == "" {
			res.Errors = append(res.Errors, "Google Ads code must contain an AW- conversion id")
		}
	case models.AdTypeAnalytics:
		if res.GAID == "" && res.GTMID == "" {
			res.Errors = append(res.Errors, "analytics code must contain a G-, UA- or GTM- id")
		}
	}

	res.Domains = extractDomains(code)
	for _, domain := range res.Domains {
		if domainAllowed(domain) {
			continue
		}
		msg := fmt.Sprintf("resource loaded from non-allowlisted domain %s", domain)
		if adType == models.AdTypeCustom {
			res.Warnings = append(res.Warnings, msg)
		} else {
			res.Errors = append(res.Errors, msg)
		}
	}

	res.Score = score(len(res.Errors), len(res.Warnings))
	res.Valid = len(res.Errors) == 0
	return res
}

// ContentHash fingerprints snippet code so unchanged snippets can skip revalidation.
func ContentHash(code string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(code)))
	return hex.EncodeToString(sum[:])
}

// Apply copies a validation result onto an ad setting. The publisher id always follows the
// latest code so ads.txt drops sellers an edit removed.
func Apply(ad *models.AdSetting, res Result) {
	score := res.Score
	ad.ValidationScore = &score
	ad.ValidationErrors = res.Errors
	ad.ValidationWarnings = res.Warnings
	ad.ContentHash = res.ContentHash
	ad.PublisherID = res.PublisherID
}

func score(errs, warnings int) int {
	s := maxScore - errs*errorPenalty - warnings*warningPenalty
	if s < 0 {
		return 0
	}
	return s
}

func extractDomains(code string) []string {
	seen := make(map[string]struct{})
	for _, raw := range urlPattern.FindAllString(code, -1) {
		if strings.HasPrefix(raw, "//") {
			raw = "https:" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" {
			continue
		}
		seen[strings.ToLower(u.Hostname())] = struct{}{}
	}

	domains := make([]string, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

func domainAllowed(host string) bool {
	for _, allowed := range AllowedDomains {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
