package handlers

import (
	"net/http"
	"time"

	"github.com/clipstream/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users     UserStore
	Tokens    TokenManager
	Videos    VideoStore
	Comments  CommentStore
	Tweets    TweetStore
	Relations RelationStore
	Playlists PlaylistStore
	Views     ViewStore
	Assets    AssetStorage
	Limiter   RateLimiter
	NowFunc   func() time.Time
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Gated
// routes are wrapped explicitly; everything else serves anonymously.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	gate := middleware.NewAuthenticator(deps.Tokens, deps.Users, RespondError)

	health := HealthHandler{}
	authH := AuthHandler{Users: deps.Users, Tokens: deps.Tokens, Assets: deps.Assets, Limiter: deps.Limiter, NowFunc: deps.NowFunc}
	videos := VideoHandler{Videos: deps.Videos, Views: deps.Views, Users: deps.Users, Assets: deps.Assets}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos, Views: deps.Views}
	likes := LikeHandler{Relations: deps.Relations, Views: deps.Views}
	subs := SubscriptionHandler{Relations: deps.Relations}
	playlists := PlaylistHandler{Playlists: deps.Playlists, Views: deps.Views}
	tweets := TweetHandler{Tweets: deps.Tweets}
	channel := ChannelHandler{Views: deps.Views}

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/users/register", authH.Register)
	mux.HandleFunc("POST /api/v1/users/login", authH.Login)
	mux.HandleFunc("POST /api/v1/users/refresh-token", authH.Refresh)
	mux.HandleFunc("POST /api/v1/users/logout", gate.Require(authH.Logout))
	mux.HandleFunc("POST /api/v1/users/change-password", gate.Require(authH.ChangePassword))
	mux.HandleFunc("GET /api/v1/users/current-user", gate.Require(authH.CurrentUser))
	mux.HandleFunc("PATCH /api/v1/users/update-account", gate.Require(authH.UpdateAccount))
	mux.HandleFunc("PATCH /api/v1/users/avatar", gate.Require(authH.UpdateAvatar))
	mux.HandleFunc("PATCH /api/v1/users/cover-image", gate.Require(authH.UpdateCover))
	mux.HandleFunc("GET /api/v1/users/c/{username}", gate.Require(channel.Profile))
	mux.HandleFunc("GET /api/v1/users/history", gate.Require(channel.History))

	mux.HandleFunc("GET /api/v1/videos", videos.Feed)
	mux.HandleFunc("POST /api/v1/videos", gate.Require(videos.Publish))
	mux.HandleFunc("GET /api/v1/videos/{videoId}", gate.Require(videos.Get))
	mux.HandleFunc("PATCH /api/v1/videos/{videoId}", gate.Require(videos.Update))
	mux.HandleFunc("DELETE /api/v1/videos/{videoId}", gate.Require(videos.Delete))
	mux.HandleFunc("PATCH /api/v1/videos/toggle/publish/{videoId}", gate.Require(videos.TogglePublish))

	mux.HandleFunc("GET /api/v1/comments/{videoId}", comments.List)
	mux.HandleFunc("POST /api/v1/comments/{videoId}", gate.Require(comments.Add))
	mux.HandleFunc("PATCH /api/v1/comments/c/{commentId}", gate.Require(comments.Update))
	mux.HandleFunc("DELETE /api/v1/comments/c/{commentId}", gate.Require(comments.Delete))

	mux.HandleFunc("POST /api/v1/likes/toggle/v/{videoId}", gate.Require(likes.ToggleVideoLike))
	mux.HandleFunc("POST /api/v1/likes/toggle/c/{commentId}", gate.Require(likes.ToggleCommentLike))
	mux.HandleFunc("POST /api/v1/likes/toggle/t/{tweetId}", gate.Require(likes.ToggleTweetLike))
	mux.HandleFunc("GET /api/v1/likes/videos", gate.Require(likes.LikedVideos))

	mux.HandleFunc("POST /api/v1/subscriptions/c/{channelId}", gate.Require(subs.Toggle))
	mux.HandleFunc("GET /api/v1/subscriptions/c/{channelId}", subs.Subscribers)
	mux.HandleFunc("GET /api/v1/subscriptions", gate.Require(subs.Subscribed))

	mux.HandleFunc("POST /api/v1/playlists", gate.Require(playlists.Create))
	mux.HandleFunc("GET /api/v1/playlists/{playlistId}", playlists.Get)
	mux.HandleFunc("GET /api/v1/playlists/user/{userId}", playlists.ListByUser)
	mux.HandleFunc("PATCH /api/v1/playlists/{playlistId}", gate.Require(playlists.Update))
	mux.HandleFunc("DELETE /api/v1/playlists/{playlistId}", gate.Require(playlists.Delete))
	mux.HandleFunc("PATCH /api/v1/playlists/add/{videoId}/{playlistId}", gate.Require(playlists.AddVideo))
	mux.HandleFunc("PATCH /api/v1/playlists/remove/{videoId}/{playlistId}", gate.Require(playlists.RemoveVideo))

	mux.HandleFunc("POST /api/v1/tweets", gate.Require(tweets.Create))
	mux.HandleFunc("GET /api/v1/tweets/user/{userId}", tweets.ListByUser)

	mux.HandleFunc("GET /api/v1/dashboard/stats", gate.Require(channel.Stats))
}
