package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidcms/backend/internal/db"
	"github.com/vidcms/backend/internal/models"
	"github.com/vidcms/backend/internal/ranking"
)

const videoSelect = `
        SELECT v.id, v.title, v.description, v.slug, v.video_url, v.video_key, v.thumbnail,
               v.thumbnail_key, v.duration, v.file_size, v.quality, v.storage_type,
               v.category_id, v.series_id, v.user_id, v.views, v.likes, v.shares, v.status,
               v.created_at, v.updated_at, COALESCE(c.name, ''), COALESCE(s.title, '')`

const videoFrom = `
        FROM videos v
        LEFT JOIN categories c ON c.id = v.category_id
        LEFT JOIN series s ON s.id = v.series_id`

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create persists a new video.
func (r *PostgresVideoRepository) Create(ctx context.Context, v models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (
            id, title, description, slug, video_url, video_key, thumbnail, thumbnail_key,
            duration, file_size, quality, storage_type, category_id, series_id, user_id,
            views, likes, shares, status, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
    `, v.ID, v.Title, v.Description, v.Slug, v.VideoURL, v.VideoKey, v.Thumbnail, v.ThumbnailKey,
		v.Duration, v.FileSize, v.Quality, v.StorageType, v.CategoryID, v.SeriesID, v.UserID,
		v.Views, v.Likes, v.Shares, v.Status, v.CreatedAt, v.UpdatedAt)
	return mapError("insert video", err)
}

// FindByID fetches a video by primary key.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	return r.findOne(ctx, "select video by id", `WHERE v.id = $1`, id)
}

// FindBySlug fetches a video by slug.
func (r *PostgresVideoRepository) FindBySlug(ctx context.Context, slug string) (models.Video, error) {
	return r.findOne(ctx, "select video by slug", `WHERE v.slug = $1`, slug)
}

func (r *PostgresVideoRepository) findOne(ctx context.Context, op, where string, arg any) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	video, err := scanVideo(conn.QueryRow(ctx, videoSelect+videoFrom+" "+where, arg))
	if err != nil {
		return models.Video{}, mapError(op, err)
	}
	return video, nil
}

// List returns one page of videos matching the filter together with the total match count.
func (r *PostgresVideoRepository) List(ctx context.Context, filter VideoFilter) ([]models.Video, int64, error) {
	page, limit := models.NormalizePage(filter.Page, filter.Limit)
	where, args := filter.where()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*)`+videoFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError("count videos", err)
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf("%s%s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		videoSelect, videoFrom, where, orderBy(filter.Sort), len(args)-1, len(args))

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError("query videos", err)
	}
	videos, err := collectVideos(rows, false)
	if err != nil {
		return nil, 0, err
	}
	return videos, total, nil
}

func (f VideoFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.Status != "" {
		add("v.status = $%d", f.Status)
	}
	if f.Category != "" {
		args = append(args, f.Category)
		clauses = append(clauses, fmt.Sprintf("(v.category_id::TEXT = $%[1]d OR c.slug = $%[1]d)", len(args)))
	}
	if f.Series != "" {
		args = append(args, f.Series)
		clauses = append(clauses, fmt.Sprintf("(v.series_id::TEXT = $%[1]d OR s.slug = $%[1]d)", len(args)))
	}
	if q := strings.TrimSpace(f.Search); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		clauses = append(clauses, fmt.Sprintf("(v.title ILIKE $%[1]d OR v.description ILIKE $%[1]d)", len(args)))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(sort string) string {
	switch sort {
	case SortPopular:
		return ranking.ScoreSQL("v.views", "v.likes", "v.shares") + " DESC, v.created_at DESC"
	case SortOldest:
		return "v.created_at ASC"
	case SortTitle:
		return "v.title ASC, v.created_at DESC"
	default:
		return "v.created_at DESC"
	}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Update modifies the editable fields of a video.
func (r *PostgresVideoRepository) Update(ctx context.Context, v models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET title = $2, description = $3, slug = $4, category_id = $5, series_id = $6,
            status = $7, thumbnail = $8, thumbnail_key = $9, updated_at = $10
        WHERE id = $1
    `, v.ID, v.Title, v.Description, v.Slug, v.CategoryID, v.SeriesID, v.Status, v.Thumbnail, v.ThumbnailKey, v.UpdatedAt)
	if err != nil {
		return mapError("update video", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a video and, through cascades, its interaction logs.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return mapError("delete video", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SlugExists reports whether another video already uses slug.
func (r *PostgresVideoRepository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	return slugExists(ctx, r.pool, "videos", slug, excludeID)
}

// Related returns published videos sharing the category or series of v, most viewed first.
func (r *PostgresVideoRepository) Related(ctx context.Context, v models.Video, limit int) ([]models.Video, error) {
	_, limit = models.NormalizePage(1, limit)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, videoSelect+videoFrom+`
        WHERE v.status = $1 AND v.id <> $2
          AND (($3::UUID IS NOT NULL AND v.category_id = $3::UUID) OR ($4::UUID IS NOT NULL AND v.series_id = $4::UUID))
        ORDER BY COALESCE($4::UUID IS NOT NULL AND v.series_id = $4::UUID, false) DESC, v.views DESC, v.created_at DESC
        LIMIT $5
    `, models.VideoStatusPublished, v.ID, v.CategoryID, v.SeriesID, limit)
	if err != nil {
		return nil, mapError("query related videos", err)
	}
	return collectVideos(rows, false)
}

// TrendingByInteractions ranks published videos by weighted events logged since the cutoff.
func (r *PostgresVideoRepository) TrendingByInteractions(ctx context.Context, since time.Time, limit int, category string) ([]models.Video, error) {
	_, limit = models.NormalizePage(1, limit)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	score := ranking.ScoreSQL("COALESCE(vv.n, 0)", "COALESCE(vl.n, 0)", "COALESCE(vs.n, 0)")
	rows, err := conn.Query(ctx, videoSelect+`, `+score+` AS score`+videoFrom+`
        LEFT JOIN (SELECT video_id, COUNT(*) AS n FROM video_views WHERE created_at >= $1 GROUP BY video_id) vv ON vv.video_id = v.id
        LEFT JOIN (SELECT video_id, COUNT(*) AS n FROM video_likes WHERE created_at >= $1 GROUP BY video_id) vl ON vl.video_id = v.id
        LEFT JOIN (SELECT video_id, COUNT(*) AS n FROM video_shares WHERE created_at >= $1 GROUP BY video_id) vs ON vs.video_id = v.id
        WHERE v.status = $2
          AND ($3 = '' OR v.category_id::TEXT = $3 OR c.slug = $3)
          AND (vv.n IS NOT NULL OR vl.n IS NOT NULL OR vs.n IS NOT NULL)
        ORDER BY score DESC, v.created_at DESC
        LIMIT $4
    `, since.UTC(), models.VideoStatusPublished, category, limit)
	if err != nil {
		return nil, mapError("query trending by interactions", err)
	}
	return collectVideos(rows, true)
}

// TrendingByCounters ranks published videos by their counters decayed by age.
func (r *PostgresVideoRepository) TrendingByCounters(ctx context.Context, limit int, category string) ([]models.Video, error) {
	_, limit = models.NormalizePage(1, limit)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	score := ranking.DecayedSQL(ranking.ScoreSQL("v.views", "v.likes", "v.shares"), "v.created_at")
	rows, err := conn.Query(ctx, videoSelect+`, `+score+` AS score`+videoFrom+`
        WHERE v.status = $1
          AND ($2 = '' OR v.category_id::TEXT = $2 OR c.slug = $2)
        ORDER BY score DESC, v.created_at DESC
        LIMIT $3
    `, models.VideoStatusPublished, category, limit)
	if err != nil {
		return nil, mapError("query trending by counters", err)
	}
	return collectVideos(rows, true)
}

// LatestPublished returns the newest published videos without any filtering.
func (r *PostgresVideoRepository) LatestPublished(ctx context.Context, limit int) ([]models.Video, error) {
	_, limit = models.NormalizePage(1, limit)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, videoSelect+videoFrom+`
        WHERE v.status = $1
        ORDER BY v.created_at DESC
        LIMIT $2
    `, models.VideoStatusPublished, limit)
	if err != nil {
		return nil, mapError("query latest videos", err)
	}
	return collectVideos(rows, false)
}

// UpdateMedia stores the output of background processing, keeping columns the update leaves empty.
func (r *PostgresVideoRepository) UpdateMedia(ctx context.Context, id string, u models.MediaUpdate) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos
        SET video_url = COALESCE(NULLIF($2, ''), video_url),
            video_key = COALESCE(NULLIF($3, ''), video_key),
            thumbnail = COALESCE(NULLIF($4, ''), thumbnail),
            thumbnail_key = COALESCE(NULLIF($5, ''), thumbnail_key),
            duration = CASE WHEN $6::INT > 0 THEN $6::INT ELSE duration END,
            file_size = CASE WHEN $7::BIGINT > 0 THEN $7::BIGINT ELSE file_size END,
            quality = COALESCE(NULLIF($8, ''), quality),
            updated_at = NOW()
        WHERE id = $1
    `, id, u.VideoURL, u.VideoKey, u.Thumbnail, u.ThumbnailKey, u.Duration, u.FileSize, u.Quality)
	if err != nil {
		return mapError("update video media", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanVideo(row pgx.Row, extra ...any) (models.Video, error) {
	var v models.Video
	dest := []any{
		&v.ID, &v.Title, &v.Description, &v.Slug, &v.VideoURL, &v.VideoKey, &v.Thumbnail,
		&v.ThumbnailKey, &v.Duration, &v.FileSize, &v.Quality, &v.StorageType,
		&v.CategoryID, &v.SeriesID, &v.UserID, &v.Views, &v.Likes, &v.Shares, &v.Status,
		&v.CreatedAt, &v.UpdatedAt, &v.CategoryName, &v.SeriesTitle,
	}
	err := row.Scan(append(dest, extra...)...)
	return v, err
}

func collectVideos(rows pgx.Rows, withScore bool) ([]models.Video, error) {
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var (
			v     models.Video
			err   error
			score float64
		)
		if withScore {
			v, err = scanVideo(rows, &score)
			v.Score = score
		} else {
			v, err = scanVideo(rows)
		}
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate videos", err)
	}
	return videos, nil
}

func slugExists(ctx context.Context, pool db.Pool, table, slug, excludeID string) (bool, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE slug = $1 AND ($2 = '' OR id::TEXT <> $2))`, table)
	if err := conn.QueryRow(ctx, query, slug, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s slug: %w", table, err)
	}
	return exists, nil
}
