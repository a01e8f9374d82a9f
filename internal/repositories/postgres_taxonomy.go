package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidcms/backend/internal/db"
	"github.com/vidcms/backend/internal/models"
)

// PostgresCategoryRepository provides PostgreSQL-backed persistence for categories.
type PostgresCategoryRepository struct {
	pool db.Pool
}

// NewPostgresCategoryRepository constructs a category repository backed by PostgreSQL.
func NewPostgresCategoryRepository(pool db.Pool) *PostgresCategoryRepository {
	return &PostgresCategoryRepository{pool: pool}
}

const categorySelect = `
        SELECT c.id, c.name, c.slug, c.description, c.status, c.sort_order, c.created_at, c.updated_at,
               (SELECT COUNT(*) FROM videos v WHERE v.category_id = c.id AND v.status = 'published')
        FROM categories c`

// Create persists a new category.
func (r *PostgresCategoryRepository) Create(ctx context.Context, c models.Category) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO categories (id, name, slug, description, status, sort_order, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, c.ID, c.Name, c.Slug, c.Description, c.Status, c.SortOrder, c.CreatedAt, c.UpdatedAt)
	return mapError("insert category", err)
}

// FindByID fetches a category by primary key.
func (r *PostgresCategoryRepository) FindByID(ctx context.Context, id string) (models.Category, error) {
	return r.findOne(ctx, "select category by id", ` WHERE c.id = $1`, id)
}

// FindBySlug fetches a category by slug.
func (r *PostgresCategoryRepository) FindBySlug(ctx context.Context, slug string) (models.Category, error) {
	return r.findOne(ctx, "select category by slug", ` WHERE c.slug = $1`, slug)
}

func (r *PostgresCategoryRepository) findOne(ctx context.Context, op, where string, arg any) (models.Category, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Category{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	c, err := scanCategory(conn.QueryRow(ctx, categorySelect+where, arg))
	if err != nil {
		return models.Category{}, mapError(op, err)
	}
	return c, nil
}

// List returns categories in display order. Inactive categories are skipped unless requested.
func (r *PostgresCategoryRepository) List(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, categorySelect+`
        WHERE $1::BOOL OR c.status = 'active'
        ORDER BY c.sort_order ASC, c.name ASC
    `, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// Update modifies an existing category.
func (r *PostgresCategoryRepository) Update(ctx context.Context, c models.Category) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE categories
        SET name = $2, slug = $3, description = $4, status = $5, sort_order = $6, updated_at = $7
        WHERE id = $1
    `, c.ID, c.Name, c.Slug, c.Description, c.Status, c.SortOrder, c.UpdatedAt)
	if err != nil {
		return mapError("update category", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a category inactive.
func (r *PostgresCategoryRepository) SoftDelete(ctx context.Context, id string) error {
	return softDelete(ctx, r.pool, "categories", id)
}

// SlugExists reports whether another category already uses slug.
func (r *PostgresCategoryRepository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	return slugExists(ctx, r.pool, "categories", slug, excludeID)
}

func scanCategory(row pgx.Row) (models.Category, error) {
	var c models.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.Status, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt, &c.VideoCount)
	return c, err
}

// PostgresSeriesRepository provides PostgreSQL-backed persistence for series.
type PostgresSeriesRepository struct {
	pool db.Pool
}

// NewPostgresSeriesRepository constructs a series repository backed by PostgreSQL.
func NewPostgresSeriesRepository(pool db.Pool) *PostgresSeriesRepository {
	return &PostgresSeriesRepository{pool: pool}
}

const seriesSelect = `
        SELECT s.id, s.title, s.slug, s.description, s.thumbnail, s.category_id, s.status, s.sort_order,
               s.created_at, s.updated_at,
               (SELECT COUNT(*) FROM videos v WHERE v.series_id = s.id AND v.status = 'published')
        FROM series s`

// Create persists a new series.
func (r *PostgresSeriesRepository) Create(ctx context.Context, s models.Series) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO series (id, title, slug, description, thumbnail, category_id, status, sort_order, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, s.ID, s.Title, s.Slug, s.Description, s.Thumbnail, s.CategoryID, s.Status, s.SortOrder, s.CreatedAt, s.UpdatedAt)
	return mapError("insert series", err)
}

// FindByID fetches a series by primary key.
func (r *PostgresSeriesRepository) FindByID(ctx context.Context, id string) (models.Series, error) {
	return r.findOne(ctx, "select series by id", ` WHERE s.id = $1`, id)
}

// FindBySlug fetches a series by slug.
func (r *PostgresSeriesRepository) FindBySlug(ctx context.Context, slug string) (models.Series, error) {
	return r.findOne(ctx, "select series by slug", ` WHERE s.slug = $1`, slug)
}

func (r *PostgresSeriesRepository) findOne(ctx context.Context, op, where string, arg any) (models.Series, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Series{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	s, err := scanSeries(conn.QueryRow(ctx, seriesSelect+where, arg))
	if err != nil {
		return models.Series{}, mapError(op, err)
	}
	return s, nil
}

// List returns series in display order. Inactive series are skipped unless requested.
func (r *PostgresSeriesRepository) List(ctx context.Context, includeInactive bool) ([]models.Series, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, seriesSelect+`
        WHERE $1::BOOL OR s.status = 'active'
        ORDER BY s.sort_order ASC, s.title ASC
    `, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	var list []models.Series
	for rows.Next() {
		s, err := scanSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return list, nil
}

// Update modifies an existing series.
func (r *PostgresSeriesRepository) Update(ctx context.Context, s models.Series) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE series
        SET title = $2, slug = $3, description = $4, thumbnail = $5, category_id = $6, status = $7,
            sort_order = $8, updated_at = $9
        WHERE id = $1
    `, s.ID, s.Title, s.Slug, s.Description, s.Thumbnail, s.CategoryID, s.Status, s.SortOrder, s.UpdatedAt)
	if err != nil {
		return mapError("update series", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks a series inactive.
func (r *PostgresSeriesRepository) SoftDelete(ctx context.Context, id string) error {
	return softDelete(ctx, r.pool, "series", id)
}

// SlugExists reports whether another series already uses slug.
func (r *PostgresSeriesRepository) SlugExists(ctx context.Context, slug, excludeID string) (bool, error) {
	return slugExists(ctx, r.pool, "series", slug, excludeID)
}

func scanSeries(row pgx.Row) (models.Series, error) {
	var s models.Series
	err := row.Scan(&s.ID, &s.Title, &s.Slug, &s.Description, &s.Thumbnail, &s.CategoryID, &s.Status, &s.SortOrder,
		&s.CreatedAt, &s.UpdatedAt, &s.EpisodeCount)
	return s, err
}

func softDelete(ctx context.Context, pool db.Pool, table, id string) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, fmt.Sprintf(`UPDATE %s SET status = $2, updated_at = NOW() WHERE id = $1`, table), id, models.StatusInactive)
	if err != nil {
		return mapError("soft delete "+table, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
