// Package slug derives URL-safe unique identifiers from titles.
package slug

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	gosimple "github.com/gosimple/slug"
)

const (
	maxLength   = 80
	maxAttempts = 50
	fallback    = "untitled"
)

// ExistsFunc reports whether a slug is already taken.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Make lower-cases and transliterates s into a slug. Empty results become "untitled".
func Make(s string) string {
	out := gosimple.Make(strings.TrimSpace(s))
	if len(out) > maxLength {
		out = strings.TrimRight(out[:maxLength], "-")
	}
	if out == "" {
		return fallback
	}
	return out
}

// Unique returns base, or base suffixed with -2, -3, ... until exists reports the candidate free.
func Unique(ctx context.Context, base string, exists ExistsFunc) (string, error) {
	base = Make(base)
	candidate := base
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			candidate = fmt.Sprintf("%s-%d", base, attempt)
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}

	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(buf)), nil
}
