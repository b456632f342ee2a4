package handlers

import (
	"net/http"

	"github.com/clipstream/backend/internal/apperrors"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/models"
)

// LikeHandler implements like toggles and the liked-videos view.
type LikeHandler struct {
	Relations RelationStore
	Views     ViewStore
}

type likeResponse struct {
	Liked      bool  `json:"liked"`
	TotalLikes int64 `json:"totalLikes"`
}

// ToggleVideoLike handles POST /api/v1/likes/toggle/v/{videoId}.
func (h LikeHandler) ToggleVideoLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeKindVideo, r.PathValue("videoId"), "video not found")
}

// ToggleCommentLike handles POST /api/v1/likes/toggle/c/{commentId}.
func (h LikeHandler) ToggleCommentLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeKindComment, r.PathValue("commentId"), "comment not found")
}

// ToggleTweetLike handles POST /api/v1/likes/toggle/t/{tweetId}.
func (h LikeHandler) ToggleTweetLike(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeKindTweet, r.PathValue("tweetId"), "tweet not found")
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	videos, err := h.Views.LikedVideos(ctx, actor.ID)
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to load liked videos", err))
		return
	}

	respond(ctx, w, http.StatusOK, videos, "liked videos fetched")
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, kind models.LikeKind, targetID, notFoundMsg string) {
	ctx := r.Context()

	actor, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	if targetID == "" {
		RespondError(w, r, apperrors.BadRequest("target id is required"))
		return
	}

	liked, total, err := h.Relations.ToggleLike(ctx, kind, targetID, actor.ID)
	if err != nil {
		RespondError(w, r, storeError(err, notFoundMsg))
		return
	}

	message := "like removed"
	if liked {
		message = "like added"
	}
	respond(ctx, w, http.StatusOK, likeResponse{Liked: liked, TotalLikes: total}, message)
}
