package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// PostgresPlaylistRepository provides PostgreSQL-backed persistence for
// playlists and their ordered video membership.
type PostgresPlaylistRepository struct {
	pool db.Pool
}

// NewPostgresPlaylistRepository constructs a playlist repository backed by PostgreSQL.
func NewPostgresPlaylistRepository(pool db.Pool) *PostgresPlaylistRepository {
	return &PostgresPlaylistRepository{pool: pool}
}

const playlistColumns = `id, owner_id, name, description, created_at, updated_at`

func scanPlaylist(row pgx.Row) (models.Playlist, error) {
	var playlist models.Playlist
	err := row.Scan(&playlist.ID, &playlist.OwnerID, &playlist.Name,
		&playlist.Description, &playlist.CreatedAt, &playlist.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("scan playlist: %w", err)
	}
	return playlist, nil
}

// Create stores a new playlist.
func (r *PostgresPlaylistRepository) Create(ctx context.Context, playlist models.Playlist) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO playlists (id, owner_id, name, description, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, playlist.ID, playlist.OwnerID, playlist.Name, playlist.Description,
		playlist.CreatedAt, playlist.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert playlist: %w", err)
	}

	return nil
}

// FindByID fetches a playlist record without resolving its videos.
func (r *PostgresPlaylistRepository) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanPlaylist(conn.QueryRow(ctx, `
        SELECT `+playlistColumns+` FROM playlists WHERE id = $1
    `, id))
}

// ListByOwner returns a user's playlists, newest first.
func (r *PostgresPlaylistRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Playlist, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+playlistColumns+` FROM playlists
        WHERE owner_id = $1
        ORDER BY created_at DESC, id DESC
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query playlists: %w", err)
	}
	defer rows.Close()

	var playlists []models.Playlist
	for rows.Next() {
		playlist, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlists: %w", err)
	}

	return playlists, nil
}

// Update replaces the playlist's name and description.
func (r *PostgresPlaylistRepository) Update(ctx context.Context, id, name, description string) (models.Playlist, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanPlaylist(conn.QueryRow(ctx, `
        UPDATE playlists SET name = $2, description = $3, updated_at = $4
        WHERE id = $1
        RETURNING `+playlistColumns+`
    `, id, name, description, time.Now().UTC()))
}

// Delete removes a playlist and, via cascade, its membership rows.
func (r *PostgresPlaylistRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AddVideo appends a video to the playlist. A duplicate add surfaces as
// ErrConflict; a missing video as ErrNotFound.
func (r *PostgresPlaylistRepository) AddVideo(ctx context.Context, playlistID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM videos WHERE id = $1)`, videoID).Scan(&exists); err != nil {
			return fmt.Errorf("check video: %w", err)
		}
		if !exists {
			return ErrNotFound
		}

		tag, err := tx.Exec(ctx, `
            INSERT INTO playlist_videos (playlist_id, video_id, position, added_at)
            SELECT $1, $2, COALESCE(MAX(position), 0) + 1, $3
            FROM playlist_videos
            WHERE playlist_id = $1
            ON CONFLICT (playlist_id, video_id) DO NOTHING
        `, playlistID, videoID, time.Now().UTC())
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return fmt.Errorf("insert playlist video: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}

		return nil
	})
}

// RemoveVideo pulls a video out of the playlist. Removing an absent entry
// surfaces as ErrNotFound.
func (r *PostgresPlaylistRepository) RemoveVideo(ctx context.Context, playlistID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2
    `, playlistID, videoID)
	if err != nil {
		return fmt.Errorf("delete playlist video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
