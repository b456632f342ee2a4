package repositories

import (
	"context"
	"fmt"
	"time"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// PostgresRelationRepository persists like and subscription edges. Toggles
// run inside a retried transaction so a concurrent duplicate request loses
// against the uniqueness constraint and simply observes the other state,
// never a hard failure.
type PostgresRelationRepository struct {
	pool db.Pool
}

// NewPostgresRelationRepository constructs a relation repository backed by PostgreSQL.
func NewPostgresRelationRepository(pool db.Pool) *PostgresRelationRepository {
	return &PostgresRelationRepository{pool: pool}
}

func likeTargetTable(kind models.LikeKind) (string, error) {
	switch kind {
	case models.LikeKindVideo:
		return "videos", nil
	case models.LikeKindComment:
		return "comments", nil
	case models.LikeKindTweet:
		return "tweets", nil
	}
	return "", fmt.Errorf("unsupported like kind %q", kind)
}

// ToggleLike creates the (kind, target, liker) edge if absent and deletes
// it if present. It reports the resulting state and the target's new like
// total. A missing target surfaces as ErrNotFound before any mutation.
func (r *PostgresRelationRepository) ToggleLike(ctx context.Context, kind models.LikeKind, targetID, likerID string) (liked bool, total int64, err error) {
	table, err := likeTargetTable(kind)
	if err != nil {
		return false, 0, err
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, targetID).Scan(&exists); err != nil {
			return fmt.Errorf("check like target: %w", err)
		}
		if !exists {
			return ErrNotFound
		}

		// Losing the insert race reads as "already liked" and flips the
		// toggle to an unlike.
		tag, err := tx.Exec(ctx, `
            INSERT INTO likes (id, kind, target_id, liker_id, created_at)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT ON CONSTRAINT likes_target_liker_key DO NOTHING
        `, uuid.NewString(), kind, targetID, likerID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert like: %w", err)
		}

		liked = tag.RowsAffected() == 1
		if !liked {
			if _, err := tx.Exec(ctx, `
                DELETE FROM likes WHERE kind = $1 AND target_id = $2 AND liker_id = $3
            `, kind, targetID, likerID); err != nil {
				return fmt.Errorf("delete like: %w", err)
			}
		}

		if err := tx.QueryRow(ctx, `
            SELECT COUNT(*) FROM likes WHERE kind = $1 AND target_id = $2
        `, kind, targetID).Scan(&total); err != nil {
			return fmt.Errorf("count likes: %w", err)
		}

		return nil
	})
	if err != nil {
		return false, 0, err
	}

	return liked, total, nil
}

// ToggleSubscription creates or removes the follow edge from subscriber to
// channel, re-deriving the current state server-side inside the same
// transaction. It reports whether the subscription now exists.
func (r *PostgresRelationRepository) ToggleSubscription(ctx context.Context, channelID, subscriberID string) (subscribed bool, err error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, channelID).Scan(&exists); err != nil {
			return fmt.Errorf("check channel: %w", err)
		}
		if !exists {
			return ErrNotFound
		}

		tag, err := tx.Exec(ctx, `
            INSERT INTO subscriptions (subscriber_id, channel_id, created_at)
            VALUES ($1, $2, $3)
            ON CONFLICT (subscriber_id, channel_id) DO NOTHING
        `, subscriberID, channelID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("insert subscription: %w", err)
		}

		subscribed = tag.RowsAffected() == 1
		if !subscribed {
			if _, err := tx.Exec(ctx, `
                DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2
            `, subscriberID, channelID); err != nil {
				return fmt.Errorf("delete subscription: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return subscribed, nil
}

// SubscriberCount returns the number of subscribers a channel has.
func (r *PostgresRelationRepository) SubscriberCount(ctx context.Context, channelID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int64
	if err := conn.QueryRow(ctx, `
        SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1
    `, channelID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}

	return count, nil
}

// SubscribedChannels lists the channels a user follows as reduced profiles,
// most recent subscription first.
func (r *PostgresRelationRepository) SubscribedChannels(ctx context.Context, subscriberID string) ([]models.OwnerProfile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT u.id, u.username, u.full_name, u.avatar_url
        FROM subscriptions s
        JOIN users u ON u.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at DESC, u.id
    `, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("query subscribed channels: %w", err)
	}
	defer rows.Close()

	var channels []models.OwnerProfile
	for rows.Next() {
		var profile models.OwnerProfile
		if err := rows.Scan(&profile.ID, &profile.Username, &profile.FullName, &profile.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan subscribed channel: %w", err)
		}
		channels = append(channels, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscribed channels: %w", err)
	}

	return channels, nil
}
