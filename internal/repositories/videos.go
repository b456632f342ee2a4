package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

const videoColumns = `id, owner_id, file_url, thumbnail_url, title, description, duration, views, is_published, created_at, updated_at`

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(
		&video.ID, &video.OwnerID, &video.FileURL, &video.ThumbnailURL,
		&video.Title, &video.Description, &video.Duration, &video.Views,
		&video.IsPublished, &video.CreatedAt, &video.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("scan video: %w", err)
	}
	return video, nil
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, file_url, thumbnail_url, title, description, duration, views, is_published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10)
    `, video.ID, video.OwnerID, video.FileURL, video.ThumbnailURL, video.Title,
		video.Description, video.Duration, video.IsPublished, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a single video.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanVideo(conn.QueryRow(ctx, `
        SELECT `+videoColumns+` FROM videos WHERE id = $1
    `, id))
}

// IncrementViews bumps the monotonic view counter.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE videos SET views = views + 1 WHERE id = $1
    `, id)
	if err != nil {
		return fmt.Errorf("increment views: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateMetadata modifies title, description and, when non-empty, the
// thumbnail URL. It returns the updated record.
func (r *PostgresVideoRepository) UpdateMetadata(ctx context.Context, id, title, description, thumbnailURL string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanVideo(conn.QueryRow(ctx, `
        UPDATE videos
        SET title = COALESCE(NULLIF($2, ''), title),
            description = COALESCE(NULLIF($3, ''), description),
            thumbnail_url = COALESCE(NULLIF($4, ''), thumbnail_url),
            updated_at = $5
        WHERE id = $1
        RETURNING `+videoColumns+`
    `, id, title, description, thumbnailURL, time.Now().UTC()))
}

// TogglePublish flips the soft-visibility flag and returns the new record.
func (r *PostgresVideoRepository) TogglePublish(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanVideo(conn.QueryRow(ctx, `
        UPDATE videos SET is_published = NOT is_published, updated_at = $2
        WHERE id = $1
        RETURNING `+videoColumns+`
    `, id, time.Now().UTC()))
}

// Delete removes the video document outright; there is no tombstone.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
