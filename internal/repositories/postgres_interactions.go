package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vidcms/backend/internal/db"
	"github.com/vidcms/backend/internal/models"
)

const interactionTablesMigration = "0002_interactions.sql"

// PostgresInteractionRepository writes engagement events and their counters in one transaction.
type PostgresInteractionRepository struct {
	pool db.Pool
}

// NewPostgresInteractionRepository constructs an interaction repository backed by PostgreSQL.
func NewPostgresInteractionRepository(pool db.Pool) *PostgresInteractionRepository {
	return &PostgresInteractionRepository{pool: pool}
}

// RecordView logs a view and increments the video's view counter.
func (r *PostgresInteractionRepository) RecordView(ctx context.Context, e models.ViewEvent) (models.Counters, error) {
	var counters models.Counters
	err := r.inTx(ctx, "record view", func(tx pgx.Tx) error {
		var err error
		counters, err = bumpCounter(ctx, tx, e.VideoID, "views", 1)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO video_views (id, video_id, user_id, ip, user_agent, created_at)
            VALUES ($1, $2, $3, $4, $5, NOW())
        `, eventID(e.ID), e.VideoID, e.UserID, e.IP, e.UserAgent)
		return err
	})
	return counters, err
}

// Like logs a like and increments the like counter. A repeated like by the same user changes
// nothing and reports false.
func (r *PostgresInteractionRepository) Like(ctx context.Context, e models.LikeEvent) (models.Counters, bool, error) {
	var (
		counters models.Counters
		changed  bool
	)
	err := r.inTx(ctx, "record like", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            INSERT INTO video_likes (id, video_id, user_id, ip, created_at)
            VALUES ($1, $2, $3, $4, NOW())
            ON CONFLICT (video_id, user_id) DO NOTHING
        `, eventID(e.ID), e.VideoID, e.UserID, e.IP)
		if err != nil {
			return err
		}

		changed = tag.RowsAffected() > 0
		delta := 0
		if changed {
			delta = 1
		}
		counters, err = bumpCounter(ctx, tx, e.VideoID, "likes", delta)
		return err
	})
	return counters, changed, err
}

// Unlike removes a user's like and decrements the like counter when one existed.
func (r *PostgresInteractionRepository) Unlike(ctx context.Context, videoID, userID string) (models.Counters, bool, error) {
	var (
		counters models.Counters
		changed  bool
	)
	err := r.inTx(ctx, "remove like", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM video_likes WHERE video_id = $1 AND user_id = $2`, videoID, userID)
		if err != nil {
			return err
		}

		changed = tag.RowsAffected() > 0
		delta := 0
		if changed {
			delta = -1
		}
		counters, err = bumpCounter(ctx, tx, videoID, "likes", delta)
		return err
	})
	return counters, changed, err
}

// RecordShare logs a share and increments the share counter.
func (r *PostgresInteractionRepository) RecordShare(ctx context.Context, e models.ShareEvent) (models.Counters, error) {
	var counters models.Counters
	err := r.inTx(ctx, "record share", func(tx pgx.Tx) error {
		var err error
		counters, err = bumpCounter(ctx, tx, e.VideoID, "shares", 1)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
            INSERT INTO video_shares (id, video_id, user_id, platform, ip, created_at)
            VALUES ($1, $2, $3, $4, $5, NOW())
        `, eventID(e.ID), e.VideoID, e.UserID, e.Platform, e.IP)
		return err
	})
	return counters, err
}

// inTx runs fn in a transaction. When an event log table is missing it is created and fn is
// retried once.
func (r *PostgresInteractionRepository) inTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	err := r.runTx(ctx, fn)
	if err != nil && isUndefinedTable(err) {
		if ensureErr := r.ensureTables(ctx); ensureErr != nil {
			return fmt.Errorf("%s: create interaction tables: %w", op, ensureErr)
		}
		err = r.runTx(ctx, fn)
	}
	return mapError(op, err)
}

func (r *PostgresInteractionRepository) runTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresInteractionRepository) ensureTables(ctx context.Context) error {
	contents, err := db.MigrationSQL(interactionTablesMigration)
	if err != nil {
		return err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, contents)
	return err
}

func bumpCounter(ctx context.Context, tx pgx.Tx, videoID, column string, delta int) (models.Counters, error) {
	var c models.Counters
	query := fmt.Sprintf(`
        UPDATE videos
        SET %[1]s = GREATEST(%[1]s + $2, 0)
        WHERE id = $1
        RETURNING views, likes, shares
    `, column)
	err := tx.QueryRow(ctx, query, videoID, delta).Scan(&c.Views, &c.Likes, &c.Shares)
	return c, err
}

func eventID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}
