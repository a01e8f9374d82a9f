package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/vidcms/backend/internal/db"
	"github.com/vidcms/backend/internal/models"
)

// MaxAnalyticsDays bounds the daily series window.
const MaxAnalyticsDays = 365

// PostgresAnalyticsRepository aggregates statistics from PostgreSQL.
type PostgresAnalyticsRepository struct {
	pool db.Pool
	now  func() time.Time
}

// NewPostgresAnalyticsRepository constructs an analytics repository backed by PostgreSQL.
func NewPostgresAnalyticsRepository(pool db.Pool) *PostgresAnalyticsRepository {
	return &PostgresAnalyticsRepository{pool: pool, now: time.Now}
}

// DashboardStats returns site-wide totals.
func (r *PostgresAnalyticsRepository) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var s models.DashboardStats
	err = conn.QueryRow(ctx, `
        SELECT
            (SELECT COUNT(*) FROM videos),
            (SELECT COUNT(*) FROM videos WHERE status = 'published'),
            (SELECT COUNT(*) FROM videos WHERE status = 'draft'),
            (SELECT COUNT(*) FROM videos WHERE status = 'private'),
            (SELECT COALESCE(SUM(views), 0)::BIGINT FROM videos),
            (SELECT COALESCE(SUM(likes), 0)::BIGINT FROM videos),
            (SELECT COALESCE(SUM(shares), 0)::BIGINT FROM videos),
            (SELECT COUNT(*) FROM categories WHERE status = 'active'),
            (SELECT COUNT(*) FROM series WHERE status = 'active'),
            (SELECT COUNT(*) FROM users),
            (SELECT COALESCE(SUM(file_size), 0)::BIGINT FROM videos)
    `).Scan(&s.TotalVideos, &s.PublishedVideos, &s.DraftVideos, &s.PrivateVideos,
		&s.TotalViews, &s.TotalLikes, &s.TotalShares, &s.TotalCategories, &s.TotalSeries,
		&s.TotalUsers, &s.StorageBytes)
	if err != nil {
		return models.DashboardStats{}, fmt.Errorf("select dashboard stats: %w", err)
	}
	return s, nil
}

// DailyViews returns one point per UTC day for the last days days, oldest first. Days without
// views are reported as zero.
func (r *PostgresAnalyticsRepository) DailyViews(ctx context.Context, days int) ([]models.DailyCount, error) {
	if days <= 0 {
		days = 30
	}
	if days > MaxAnalyticsDays {
		days = MaxAnalyticsDays
	}

	today := truncateDay(r.now())
	start := today.AddDate(0, 0, -(days - 1))

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, COUNT(*)
        FROM video_views
        WHERE created_at >= $1
        GROUP BY day
    `, start)
	if err != nil {
		if isUndefinedTable(err) {
			return fillDays(start, days, nil), nil
		}
		return nil, fmt.Errorf("query daily views: %w", err)
	}
	defer rows.Close()

	counts := make(map[time.Time]int64)
	for rows.Next() {
		var (
			day   time.Time
			count int64
		)
		if err := rows.Scan(&day, &count); err != nil {
			return nil, fmt.Errorf("scan daily views: %w", err)
		}
		counts[truncateDay(day)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily views: %w", err)
	}

	return fillDays(start, days, counts), nil
}

// TopVideos returns the most viewed videos of all time.
func (r *PostgresAnalyticsRepository) TopVideos(ctx context.Context, limit int) ([]models.Video, error) {
	return r.videos(ctx, "query top videos", "v.views DESC, v.likes DESC", limit)
}

// RecentVideos returns the most recently uploaded videos regardless of status.
func (r *PostgresAnalyticsRepository) RecentVideos(ctx context.Context, limit int) ([]models.Video, error) {
	return r.videos(ctx, "query recent videos", "v.created_at DESC", limit)
}

func (r *PostgresAnalyticsRepository) videos(ctx context.Context, op, order string, limit int) ([]models.Video, error) {
	_, limit = models.NormalizePage(1, limit)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, videoSelect+videoFrom+` ORDER BY `+order+` LIMIT $1`, limit)
	if err != nil {
		return nil, mapError(op, err)
	}
	return collectVideos(rows, false)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func fillDays(start time.Time, days int, counts map[time.Time]int64) []models.DailyCount {
	out := make([]models.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		out = append(out, models.DailyCount{Day: day, Count: counts[day]})
	}
	return out
}
