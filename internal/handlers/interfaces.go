package handlers

import (
	"context"
	"io"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the auth and
// account handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindPublicByID(ctx context.Context, id string) (models.PublicUser, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateProfile(ctx context.Context, userID, fullName, email string) (models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string) (previous string, err error)
	UpdateCoverImage(ctx context.Context, userID, coverURL string) (previous string, err error)
	RecordWatch(ctx context.Context, userID, videoID string) error
}

// TokenManager drives the session token lifecycle for the auth handlers.
type TokenManager interface {
	Issue(ctx context.Context, userID, username string) (models.TokenPair, error)
	Rotate(ctx context.Context, presented string) (models.TokenPair, error)
	Invalidate(ctx context.Context, userID string) error
	VerifyAccess(token string) (auth.Identity, error)
}

// VideoStore captures persistence for video lifecycle operations.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	IncrementViews(ctx context.Context, id string) error
	UpdateMetadata(ctx context.Context, id, title, description, thumbnailURL string) (models.Video, error)
	TogglePublish(ctx context.Context, id string) (models.Video, error)
	Delete(ctx context.Context, id string) error
}

// CommentStore captures persistence for comment lifecycle operations.
type CommentStore interface {
	Create(ctx context.Context, comment models.Comment) error
	FindByID(ctx context.Context, id string) (models.Comment, error)
	UpdateContent(ctx context.Context, id, content string) (models.Comment, error)
	Delete(ctx context.Context, id string) error
}

// TweetStore captures persistence for tweet operations.
type TweetStore interface {
	Create(ctx context.Context, tweet models.Tweet) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Tweet, error)
}

// RelationStore toggles like and subscription edges.
type RelationStore interface {
	ToggleLike(ctx context.Context, kind models.LikeKind, targetID, likerID string) (liked bool, total int64, err error)
	ToggleSubscription(ctx context.Context, channelID, subscriberID string) (subscribed bool, err error)
	SubscriberCount(ctx context.Context, channelID string) (int64, error)
	SubscribedChannels(ctx context.Context, subscriberID string) ([]models.OwnerProfile, error)
}

// PlaylistStore captures playlist persistence including membership edits.
type PlaylistStore interface {
	Create(ctx context.Context, playlist models.Playlist) error
	FindByID(ctx context.Context, id string) (models.Playlist, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Playlist, error)
	Update(ctx context.Context, id, name, description string) (models.Playlist, error)
	Delete(ctx context.Context, id string) error
	AddVideo(ctx context.Context, playlistID, videoID string) error
	RemoveVideo(ctx context.Context, playlistID, videoID string) error
}

// ViewStore resolves the composite read views.
type ViewStore interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string) ([]models.VideoWithOwner, error)
	LikedVideos(ctx context.Context, userID string) ([]models.LikedVideo, error)
	PlaylistDetail(ctx context.Context, playlistID string) (models.PlaylistDetail, error)
	VideoFeed(ctx context.Context, q repositories.FeedQuery) ([]models.VideoWithOwner, models.PageMeta, error)
	CommentList(ctx context.Context, videoID string, page, limit int) ([]models.CommentWithMeta, models.PageMeta, error)
	ChannelStats(ctx context.Context, userID string) (models.ChannelStats, error)
}

// AssetStorage persists uploaded media and serves back public locations.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}
