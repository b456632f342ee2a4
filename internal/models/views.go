package models

import "time"

// ChannelProfile is the composite channel view resolved by username.
type ChannelProfile struct {
	ID                string    `json:"id"`
	Username          string    `json:"username"`
	FullName          string    `json:"fullname"`
	Email             string    `json:"email"`
	AvatarURL         string    `json:"avatar"`
	CoverImageURL     string    `json:"coverImage"`
	SubscribersCount  int64     `json:"subscribersCount"`
	SubscribedToCount int64     `json:"channelsSubscribedToCount"`
	IsSubscribed      bool      `json:"isSubscribed"`
	CreatedAt         time.Time `json:"createdAt"`
}

// VideoWithOwner is a video joined to its owner's reduced profile. Owner is
// nil when the owning account no longer exists.
type VideoWithOwner struct {
	Video
	Owner *OwnerProfile `json:"ownerDetails"`
}

// LikedVideo is a liked-videos view row.
type LikedVideo struct {
	LikedAt time.Time      `json:"likedAt"`
	Video   VideoWithOwner `json:"video"`
}

// CommentWithMeta is a comment joined to its owner profile and like count.
type CommentWithMeta struct {
	Comment
	Owner     *OwnerProfile `json:"ownerDetails"`
	LikeCount int64         `json:"likes"`
}

// PlaylistVideo is the fixed per-video projection inside a playlist detail.
type PlaylistVideo struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	ThumbnailURL string        `json:"thumbnail"`
	Duration     float64       `json:"duration"`
	Views        int64         `json:"views"`
	Owner        *OwnerProfile `json:"ownerDetails"`
}

// PlaylistDetail is a playlist with its member videos resolved in order.
type PlaylistDetail struct {
	Playlist
	Videos     []PlaylistVideo `json:"videos"`
	VideoCount int             `json:"videoCount"`
}

// ChannelStats is the dashboard aggregate for a channel owner.
type ChannelStats struct {
	TotalViews       int64 `json:"totalViews"`
	TotalVideos      int64 `json:"totalVideos"`
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalLikes       int64 `json:"totalLikes"`
}

// PageMeta describes one page of a deterministic listing.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int64 `json:"totalPages"`
}

// NewPageMeta derives page metadata from a total row count.
func NewPageMeta(page, limit int, total int64) PageMeta {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return PageMeta{Page: page, Limit: limit, TotalItems: total, TotalPages: pages}
}
