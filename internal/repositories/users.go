package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for user
// accounts, including the refresh-token slot and watch history.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.PasswordHash, &user.AvatarURL, &user.CoverImageURL,
		&user.RefreshToken, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	return user, nil
}

// Create persists a new user record. Username and email are stored as
// given but unique case-insensitively.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, username, email, full_name, password_hash, avatar_url, cover_image_url, refresh_token, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, '', $8, $9)
    `, user.ID, user.Username, user.Email, user.FullName, user.PasswordHash,
		user.AvatarURL, user.CoverImageURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByID fetches a full user record including secret material.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanUser(conn.QueryRow(ctx, `
        SELECT `+userColumns+` FROM users WHERE id = $1
    `, id))
}

// FindByUsername fetches a user by username, case-insensitively.
func (r *PostgresUserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanUser(conn.QueryRow(ctx, `
        SELECT `+userColumns+` FROM users WHERE lower(username) = lower($1)
    `, strings.TrimSpace(username)))
}

// FindByEmail fetches a user by email, case-insensitively.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanUser(conn.QueryRow(ctx, `
        SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)
    `, strings.TrimSpace(email)))
}

// FindPublicByID fetches the public projection of a user, leaving the
// password hash and refresh token behind in the database.
func (r *PostgresUserRepository) FindPublicByID(ctx context.Context, id string) (models.PublicUser, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var user models.PublicUser
	err = conn.QueryRow(ctx, `
        SELECT id, username, email, full_name, avatar_url, cover_image_url, created_at
        FROM users
        WHERE id = $1
    `, id).Scan(&user.ID, &user.Username, &user.Email, &user.FullName,
		&user.AvatarURL, &user.CoverImageURL, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PublicUser{}, ErrNotFound
		}
		return models.PublicUser{}, fmt.Errorf("select public user: %w", err)
	}

	return user, nil
}

// UpdateRefreshToken replaces the user's persisted refresh token. An empty
// token clears the slot (logout).
func (r *PostgresUserRepository) UpdateRefreshToken(ctx context.Context, userID, refreshToken string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET refresh_token = $2, updated_at = $3 WHERE id = $1
    `, userID, refreshToken, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ReplaceRefreshToken swaps the refresh-token slot only while it still
// holds presented. A superseded or cleared token matches no row and
// surfaces as ErrNotFound.
func (r *PostgresUserRepository) ReplaceRefreshToken(ctx context.Context, userID, presented, next string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET refresh_token = $3, updated_at = $4
        WHERE id = $1 AND refresh_token = $2
    `, userID, presented, next, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("replace refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *PostgresUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1
    `, userID, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateProfile updates the mutable account fields.
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, userID, fullName, email string) (models.PublicUser, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.PublicUser{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE users SET full_name = $2, email = $3, updated_at = $4 WHERE id = $1
    `, userID, fullName, email, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return models.PublicUser{}, ErrConflict
		}
		return models.PublicUser{}, fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.PublicUser{}, ErrNotFound
	}

	return r.FindPublicByID(ctx, userID)
}

// UpdateAvatar stores a new avatar URL and returns the previous one so the
// caller can delete the replaced object.
func (r *PostgresUserRepository) UpdateAvatar(ctx context.Context, userID, avatarURL string) (previous string, err error) {
	return r.swapImage(ctx, userID, "avatar_url", avatarURL)
}

// UpdateCoverImage stores a new cover image URL and returns the previous one.
func (r *PostgresUserRepository) UpdateCoverImage(ctx context.Context, userID, coverURL string) (previous string, err error) {
	return r.swapImage(ctx, userID, "cover_image_url", coverURL)
}

func (r *PostgresUserRepository) swapImage(ctx context.Context, userID, column, url string) (string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var previous string
	err = conn.QueryRow(ctx, `
        UPDATE users SET `+column+` = $2, updated_at = $3
        WHERE id = $1
        RETURNING (SELECT `+column+` FROM users WHERE id = $1)
    `, userID, url, time.Now().UTC()).Scan(&previous)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("update %s: %w", column, err)
	}

	return previous, nil
}

// RecordWatch appends a video to the user's watch history. Re-watching
// moves the entry to the most recent position instead of duplicating it.
func (r *PostgresUserRepository) RecordWatch(ctx context.Context, userID, videoID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO watch_history (user_id, video_id, position, watched_at)
        SELECT $1, $2, COALESCE(MAX(position), 0) + 1, $3
        FROM watch_history
        WHERE user_id = $1
        ON CONFLICT (user_id, video_id)
        DO UPDATE SET position = EXCLUDED.position, watched_at = EXCLUDED.watched_at
    `, userID, videoID, time.Now().UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("record watch: %w", err)
	}

	return nil
}
