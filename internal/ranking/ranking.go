// Package ranking holds the engagement score used to order trending videos.
package ranking

import (
	"fmt"
	"math"
	"time"
)

// Engagement weights.
const (
	ViewWeight  = 0.5
	LikeWeight  = 0.3
	ShareWeight = 0.2

	// Gravity controls how fast scores decay with age.
	Gravity = 1.5
	// AgeOffsetHours keeps brand new videos from dividing by ~0.
	AgeOffsetHours = 2.0
)

// Score is the weighted engagement of a video.
func Score(views, likes, shares int64) float64 {
	return float64(views)*ViewWeight + float64(likes)*LikeWeight + float64(shares)*ShareWeight
}

// Decayed divides score by (ageHours + 2)^1.5.
func Decayed(score float64, age time.Duration) float64 {
	hours := age.Hours()
	if hours < 0 {
		hours = 0
	}
	return score / math.Pow(hours+AgeOffsetHours, Gravity)
}

// ScoreSQL renders Score over the given column expressions as a FLOAT8.
func ScoreSQL(views, likes, shares string) string {
	return fmt.Sprintf("(%s::FLOAT8 * %.2f + %s::FLOAT8 * %.2f + %s::FLOAT8 * %.2f)", views, ViewWeight, likes, LikeWeight, shares, ShareWeight)
}

// DecayedSQL renders Decayed for a score expression and a timestamp column.
func DecayedSQL(score, createdAt string) string {
	return fmt.Sprintf("(%s / POWER(GREATEST(EXTRACT(EPOCH FROM (NOW() - %s))::FLOAT8, 0) / 3600.0 + %.1f, %.1f))", score, createdAt, AgeOffsetHours, Gravity)
}
