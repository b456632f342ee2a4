package models

import "time"

// User represents an account within the clipstream platform. The password
// hash and refresh token never leave the repository and auth layers;
// handlers expose PublicUser instead.
type User struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	RefreshToken  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Public returns the projection of the user that is safe to serialize.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}

// PublicUser is a user without secret material.
type PublicUser struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullname"`
	AvatarURL     string    `json:"avatar"`
	CoverImageURL string    `json:"coverImage"`
	CreatedAt     time.Time `json:"createdAt"`
}

// OwnerProfile is the reduced profile attached to joined view rows.
type OwnerProfile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullname"`
	AvatarURL string `json:"avatar"`
}

// Video is an uploaded video with its stored media references.
type Video struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner"`
	FileURL      string    `json:"videoFile"`
	ThumbnailURL string    `json:"thumbnail"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Duration     float64   `json:"duration"`
	Views        int64     `json:"views"`
	IsPublished  bool      `json:"isPublished"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Comment is a user comment attached to a video.
type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"video"`
	OwnerID   string    `json:"owner"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LikeKind tags the entity type a like points at.
type LikeKind string

const (
	LikeKindVideo   LikeKind = "video"
	LikeKindComment LikeKind = "comment"
	LikeKindTweet   LikeKind = "tweet"
)

// ValidLikeKind reports whether kind is one of the supported targets.
func ValidLikeKind(kind LikeKind) bool {
	switch kind {
	case LikeKindVideo, LikeKindComment, LikeKindTweet:
		return true
	}
	return false
}

// Like is a (kind, target, liker) edge. At most one exists per triple.
type Like struct {
	ID        string
	Kind      LikeKind
	TargetID  string
	LikerID   string
	CreatedAt time.Time
}

// Tweet is a short text post; it exists primarily as a like target.
type Tweet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Subscription is a directed follow edge from subscriber to channel.
type Subscription struct {
	SubscriberID string    `json:"subscriber"`
	ChannelID    string    `json:"channel"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Playlist groups an ordered list of videos under an owning user.
type Playlist struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TokenPair groups the bearer credentials issued to authenticated users.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
