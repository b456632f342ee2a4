package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clipstream/backend/internal/db"
	"github.com/clipstream/backend/internal/models"
)

// PostgresViewRepository composes the multi-collection read views. Each
// view is a single ordered query: joins introduce the fields later stages
// project, owner joins are LEFT JOINs flattened to a nullable profile, and
// every paginated listing is ordered deterministically before the
// offset/limit window is applied.
type PostgresViewRepository struct {
	pool db.Pool
}

// NewPostgresViewRepository constructs a view repository backed by PostgreSQL.
func NewPostgresViewRepository(pool db.Pool) *PostgresViewRepository {
	return &PostgresViewRepository{pool: pool}
}

const (
	// DefaultPage and DefaultLimit apply when the caller omits pagination.
	DefaultPage  = 1
	DefaultLimit = 10
	maxLimit     = 100
)

// NormalizePage clamps pagination parameters to the shared contract:
// page and limit are positive, limit is capped.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// feedSortColumns whitelists caller-facing sort fields. An unordered or
// caller-controlled ORDER BY would make skip/limit non-deterministic.
var feedSortColumns = map[string]string{
	"createdAt": "v.created_at",
	"views":     "v.views",
	"duration":  "v.duration",
	"title":     "v.title",
}

// FeedSortable reports whether the field can order the video feed.
func FeedSortable(field string) bool {
	_, ok := feedSortColumns[field]
	return ok
}

const ownerJoinColumns = `o.id, o.username, o.full_name, o.avatar_url`

func scanOwnerProfile(id, username, fullName, avatar sql.NullString) *models.OwnerProfile {
	if !id.Valid {
		return nil
	}
	return &models.OwnerProfile{
		ID:        id.String,
		Username:  username.String,
		FullName:  fullName.String,
		AvatarURL: avatar.String,
	}
}

func scanVideoWithOwner(row pgx.Rows) (models.VideoWithOwner, error) {
	var (
		item                           models.VideoWithOwner
		oID, oUsername, oName, oAvatar sql.NullString
	)
	err := row.Scan(
		&item.ID, &item.OwnerID, &item.FileURL, &item.ThumbnailURL,
		&item.Title, &item.Description, &item.Duration, &item.Views,
		&item.IsPublished, &item.CreatedAt, &item.UpdatedAt,
		&oID, &oUsername, &oName, &oAvatar,
	)
	if err != nil {
		return models.VideoWithOwner{}, fmt.Errorf("scan video row: %w", err)
	}
	item.Owner = scanOwnerProfile(oID, oUsername, oName, oAvatar)
	return item, nil
}

// ChannelProfile resolves the composite channel view for a username using
// a case-insensitive exact match. The viewer's id drives isSubscribed.
func (r *PostgresViewRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var profile models.ChannelProfile
	err = conn.QueryRow(ctx, `
        SELECT u.id, u.username, u.full_name, u.email, u.avatar_url, u.cover_image_url, u.created_at,
               (SELECT COUNT(*) FROM subscriptions s WHERE s.channel_id = u.id)    AS subscribers_count,
               (SELECT COUNT(*) FROM subscriptions s WHERE s.subscriber_id = u.id) AS subscribed_to_count,
               EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2) AS is_subscribed
        FROM users u
        WHERE lower(u.username) = lower($1)
    `, username, viewerID).Scan(
		&profile.ID, &profile.Username, &profile.FullName, &profile.Email,
		&profile.AvatarURL, &profile.CoverImageURL, &profile.CreatedAt,
		&profile.SubscribersCount, &profile.SubscribedToCount, &profile.IsSubscribed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, ErrNotFound
		}
		return models.ChannelProfile{}, fmt.Errorf("select channel profile: %w", err)
	}

	return profile, nil
}

// WatchHistory resolves the user's watch history into full videos with
// reduced owner profiles, preserving the stored watch order regardless of
// how the video rows were inserted.
func (r *PostgresViewRepository) WatchHistory(ctx context.Context, userID string) ([]models.VideoWithOwner, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.owner_id, v.file_url, v.thumbnail_url, v.title, v.description,
               v.duration, v.views, v.is_published, v.created_at, v.updated_at,
               `+ownerJoinColumns+`
        FROM watch_history wh
        JOIN videos v ON v.id = wh.video_id
        LEFT JOIN users o ON o.id = v.owner_id
        WHERE wh.user_id = $1
        ORDER BY wh.position
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	history := []models.VideoWithOwner{}
	for rows.Next() {
		item, err := scanVideoWithOwner(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}

	return history, nil
}

// LikedVideos returns the videos a user has liked, most recent like first,
// each joined to its owner's reduced profile.
func (r *PostgresViewRepository) LikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT l.created_at,
               v.id, v.owner_id, v.file_url, v.thumbnail_url, v.title, v.description,
               v.duration, v.views, v.is_published, v.created_at, v.updated_at,
               `+ownerJoinColumns+`
        FROM likes l
        JOIN videos v ON v.id = l.target_id
        LEFT JOIN users o ON o.id = v.owner_id
        WHERE l.liker_id = $1 AND l.kind = 'video'
        ORDER BY l.created_at DESC, v.id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query liked videos: %w", err)
	}
	defer rows.Close()

	liked := []models.LikedVideo{}
	for rows.Next() {
		var (
			item                           models.LikedVideo
			oID, oUsername, oName, oAvatar sql.NullString
		)
		err := rows.Scan(
			&item.LikedAt,
			&item.Video.ID, &item.Video.OwnerID, &item.Video.FileURL, &item.Video.ThumbnailURL,
			&item.Video.Title, &item.Video.Description, &item.Video.Duration, &item.Video.Views,
			&item.Video.IsPublished, &item.Video.CreatedAt, &item.Video.UpdatedAt,
			&oID, &oUsername, &oName, &oAvatar,
		)
		if err != nil {
			return nil, fmt.Errorf("scan liked video: %w", err)
		}
		item.Video.Owner = scanOwnerProfile(oID, oUsername, oName, oAvatar)
		liked = append(liked, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate liked videos: %w", err)
	}

	return liked, nil
}

// PlaylistDetail resolves a playlist's ordered member videos with a fixed
// per-video projection, plus the derived video count.
func (r *PostgresViewRepository) PlaylistDetail(ctx context.Context, playlistID string) (models.PlaylistDetail, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.PlaylistDetail{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var detail models.PlaylistDetail
	playlist, err := scanPlaylist(conn.QueryRow(ctx, `
        SELECT `+playlistColumns+` FROM playlists WHERE id = $1
    `, playlistID))
	if err != nil {
		return models.PlaylistDetail{}, err
	}
	detail.Playlist = playlist

	rows, err := conn.Query(ctx, `
        SELECT v.id, v.title, v.description, v.thumbnail_url, v.duration, v.views,
               `+ownerJoinColumns+`
        FROM playlist_videos pv
        JOIN videos v ON v.id = pv.video_id
        LEFT JOIN users o ON o.id = v.owner_id
        WHERE pv.playlist_id = $1
        ORDER BY pv.position
    `, playlistID)
	if err != nil {
		return models.PlaylistDetail{}, fmt.Errorf("query playlist videos: %w", err)
	}
	defer rows.Close()

	detail.Videos = []models.PlaylistVideo{}
	for rows.Next() {
		var (
			video                          models.PlaylistVideo
			oID, oUsername, oName, oAvatar sql.NullString
		)
		err := rows.Scan(&video.ID, &video.Title, &video.Description,
			&video.ThumbnailURL, &video.Duration, &video.Views,
			&oID, &oUsername, &oName, &oAvatar)
		if err != nil {
			return models.PlaylistDetail{}, fmt.Errorf("scan playlist video: %w", err)
		}
		video.Owner = scanOwnerProfile(oID, oUsername, oName, oAvatar)
		detail.Videos = append(detail.Videos, video)
	}
	if err := rows.Err(); err != nil {
		return models.PlaylistDetail{}, fmt.Errorf("iterate playlist videos: %w", err)
	}

	detail.VideoCount = len(detail.Videos)
	return detail, nil
}

// FeedQuery parameterizes the paginated video feed.
type FeedQuery struct {
	Page    int
	Limit   int
	SortBy  string // one of feedSortColumns; createdAt when empty
	SortAsc bool
	OwnerID string // restrict to one channel when non-empty
	Search  string // substring match on title when non-empty
}

// VideoFeed returns one deterministic page of published videos with owner
// profiles plus page metadata. A page past the end yields an empty slice,
// not an error.
func (r *PostgresViewRepository) VideoFeed(ctx context.Context, q FeedQuery) ([]models.VideoWithOwner, models.PageMeta, error) {
	page, limit := NormalizePage(q.Page, q.Limit)

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "createdAt"
	}
	column, ok := feedSortColumns[sortBy]
	if !ok {
		return nil, models.PageMeta{}, fmt.Errorf("unsupported sort field %q", q.SortBy)
	}
	direction := "DESC"
	if q.SortAsc {
		direction = "ASC"
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	const feedFilter = `
        v.is_published
        AND ($1 = '' OR v.owner_id = $1)
        AND ($2 = '' OR v.title ILIKE '%' || $2 || '%')`

	var total int64
	if err := conn.QueryRow(ctx, `
        SELECT COUNT(*) FROM videos v WHERE `+feedFilter, q.OwnerID, q.Search).Scan(&total); err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("count feed: %w", err)
	}

	// The id tiebreak keeps the window stable when the sort key repeats.
	rows, err := conn.Query(ctx, `
        SELECT v.id, v.owner_id, v.file_url, v.thumbnail_url, v.title, v.description,
               v.duration, v.views, v.is_published, v.created_at, v.updated_at,
               `+ownerJoinColumns+`
        FROM videos v
        LEFT JOIN users o ON o.id = v.owner_id
        WHERE `+feedFilter+`
        ORDER BY `+column+` `+direction+`, v.id
        LIMIT $3 OFFSET $4
    `, q.OwnerID, q.Search, limit, (page-1)*limit)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("query feed: %w", err)
	}
	defer rows.Close()

	videos := []models.VideoWithOwner{}
	for rows.Next() {
		item, err := scanVideoWithOwner(rows)
		if err != nil {
			return nil, models.PageMeta{}, err
		}
		videos = append(videos, item)
	}
	if err := rows.Err(); err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("iterate feed: %w", err)
	}

	return videos, models.NewPageMeta(page, limit, total), nil
}

// CommentList returns one page of a video's comments, newest first, each
// with its owner's reduced profile and a derived like count.
func (r *PostgresViewRepository) CommentList(ctx context.Context, videoID string, page, limit int) ([]models.CommentWithMeta, models.PageMeta, error) {
	page, limit = NormalizePage(page, limit)

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int64
	if err := conn.QueryRow(ctx, `
        SELECT COUNT(*) FROM comments WHERE video_id = $1
    `, videoID).Scan(&total); err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("count comments: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT c.id, c.video_id, c.owner_id, c.content, c.created_at, c.updated_at,
               `+ownerJoinColumns+`,
               (SELECT COUNT(*) FROM likes l WHERE l.kind = 'comment' AND l.target_id = c.id) AS like_count
        FROM comments c
        LEFT JOIN users o ON o.id = c.owner_id
        WHERE c.video_id = $1
        ORDER BY c.created_at DESC, c.id
        LIMIT $2 OFFSET $3
    `, videoID, limit, (page-1)*limit)
	if err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := []models.CommentWithMeta{}
	for rows.Next() {
		var (
			item                           models.CommentWithMeta
			oID, oUsername, oName, oAvatar sql.NullString
		)
		err := rows.Scan(
			&item.ID, &item.VideoID, &item.OwnerID, &item.Content,
			&item.CreatedAt, &item.UpdatedAt,
			&oID, &oUsername, &oName, &oAvatar,
			&item.LikeCount,
		)
		if err != nil {
			return nil, models.PageMeta{}, fmt.Errorf("scan comment row: %w", err)
		}
		item.Owner = scanOwnerProfile(oID, oUsername, oName, oAvatar)
		comments = append(comments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, models.PageMeta{}, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, models.NewPageMeta(page, limit, total), nil
}

// ChannelStats derives the dashboard aggregate for a channel owner: summed
// views and count over owned videos, subscriber count, and likes received
// on owned videos and comments.
func (r *PostgresViewRepository) ChannelStats(ctx context.Context, userID string) (models.ChannelStats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var stats models.ChannelStats
	err = conn.QueryRow(ctx, `
        SELECT
            (SELECT COALESCE(SUM(views), 0) FROM videos WHERE owner_id = $1),
            (SELECT COUNT(*) FROM videos WHERE owner_id = $1),
            (SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1),
            (SELECT COUNT(*) FROM likes l
             WHERE (l.kind = 'video'   AND l.target_id IN (SELECT id FROM videos   WHERE owner_id = $1))
                OR (l.kind = 'comment' AND l.target_id IN (SELECT id FROM comments WHERE owner_id = $1)))
    `, userID).Scan(&stats.TotalViews, &stats.TotalVideos, &stats.TotalSubscribers, &stats.TotalLikes)
	if err != nil {
		return models.ChannelStats{}, fmt.Errorf("select channel stats: %w", err)
	}

	return stats, nil
}
