package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidcms/backend/internal/db"
	"github.com/vidcms/backend/internal/models"
)

const adColumns = `id, name, type, code, position, status, publisher_id, validation_score,
               validation_errors, validation_warnings, content_hash, validated_at, created_at, updated_at`

// PostgresAdRepository provides PostgreSQL-backed persistence for ad settings.
type PostgresAdRepository struct {
	pool db.Pool
}

// NewPostgresAdRepository constructs an ad repository backed by PostgreSQL.
func NewPostgresAdRepository(pool db.Pool) *PostgresAdRepository {
	return &PostgresAdRepository{pool: pool}
}

// Create persists a new ad setting including any validation already applied to it.
func (r *PostgresAdRepository) Create(ctx context.Context, ad models.AdSetting) error {
	errs, warns, err := encodeFindings(ad)
	if err != nil {
		return err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO ad_settings (id, name, type, code, position, status, publisher_id, validation_score,
                                 validation_errors, validation_warnings, content_hash, validated_at,
                                 created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `, ad.ID, ad.Name, ad.Type, ad.Code, ad.Position, ad.Status, ad.PublisherID, ad.ValidationScore,
		errs, warns, ad.ContentHash, ad.ValidatedAt, ad.CreatedAt, ad.UpdatedAt)
	return mapError("insert ad setting", err)
}

// FindByID fetches an ad setting by primary key.
func (r *PostgresAdRepository) FindByID(ctx context.Context, id string) (models.AdSetting, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.AdSetting{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	ad, err := scanAd(conn.QueryRow(ctx, `SELECT `+adColumns+` FROM ad_settings WHERE id = $1`, id))
	if err != nil {
		return models.AdSetting{}, mapError("select ad setting", err)
	}
	return ad, nil
}

// List returns ad settings ordered by position then name.
func (r *PostgresAdRepository) List(ctx context.Context, activeOnly bool) ([]models.AdSetting, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+adColumns+`
        FROM ad_settings
        WHERE NOT $1::BOOL OR status = 'active'
        ORDER BY position ASC, name ASC
    `, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("query ad settings: %w", err)
	}
	defer rows.Close()

	var ads []models.AdSetting
	for rows.Next() {
		ad, err := scanAd(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ad setting: %w", err)
		}
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ad settings: %w", err)
	}
	return ads, nil
}

// ListActive returns only active ad settings.
func (r *PostgresAdRepository) ListActive(ctx context.Context) ([]models.AdSetting, error) {
	return r.List(ctx, true)
}

// Update modifies an ad setting together with its validation columns.
func (r *PostgresAdRepository) Update(ctx context.Context, ad models.AdSetting) error {
	errs, warns, err := encodeFindings(ad)
	if err != nil {
		return err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE ad_settings
        SET name = $2, type = $3, code = $4, position = $5, status = $6, publisher_id = $7,
            validation_score = $8, validation_errors = $9, validation_warnings = $10,
            content_hash = $11, validated_at = $12, updated_at = $13
        WHERE id = $1
    `, ad.ID, ad.Name, ad.Type, ad.Code, ad.Position, ad.Status, ad.PublisherID, ad.ValidationScore,
		errs, warns, ad.ContentHash, ad.ValidatedAt, ad.UpdatedAt)
	if err != nil {
		return mapError("update ad setting", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an ad setting.
func (r *PostgresAdRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM ad_settings WHERE id = $1`, id)
	if err != nil {
		return mapError("delete ad setting", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveValidation stores only the validation columns of an ad setting.
func (r *PostgresAdRepository) SaveValidation(ctx context.Context, ad models.AdSetting) error {
	errs, warns, err := encodeFindings(ad)
	if err != nil {
		return err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE ad_settings
        SET publisher_id = $2, validation_score = $3, validation_errors = $4,
            validation_warnings = $5, content_hash = $6, validated_at = $7
        WHERE id = $1
    `, ad.ID, ad.PublisherID, ad.ValidationScore, errs, warns, ad.ContentHash, ad.ValidatedAt)
	if err != nil {
		return mapError("save ad validation", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeFindings(ad models.AdSetting) (string, string, error) {
	errs, err := json.Marshal(nonNil(ad.ValidationErrors))
	if err != nil {
		return "", "", fmt.Errorf("encode validation errors: %w", err)
	}
	warns, err := json.Marshal(nonNil(ad.ValidationWarnings))
	if err != nil {
		return "", "", fmt.Errorf("encode validation warnings: %w", err)
	}
	return string(errs), string(warns), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func scanAd(row pgx.Row) (models.AdSetting, error) {
	var (
		ad    models.AdSetting
		errs  []byte
		warns []byte
	)
	if err := row.Scan(&ad.ID, &ad.Name, &ad.Type, &ad.Code, &ad.Position, &ad.Status, &ad.PublisherID,
		&ad.ValidationScore, &errs, &warns, &ad.ContentHash, &ad.ValidatedAt, &ad.CreatedAt, &ad.UpdatedAt); err != nil {
		return ad, err
	}
	if len(errs) > 0 {
		if err := json.Unmarshal(errs, &ad.ValidationErrors); err != nil {
			return ad, fmt.Errorf("decode validation errors: %w", err)
		}
	}
	if len(warns) > 0 {
		if err := json.Unmarshal(warns, &ad.ValidationWarnings); err != nil {
			return ad, fmt.Errorf("decode validation warnings: %w", err)
		}
	}
	return ad, nil
}
