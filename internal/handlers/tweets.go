package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/apperrors"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/models"
)

// TweetHandler implements short text posts.
type TweetHandler struct {
	Tweets TweetStore
}

type tweetRequest struct {
	Content string `json:"content"`
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	var req tweetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, apperrors.BadRequest("invalid request body"))
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		RespondError(w, r, apperrors.BadRequest("content is required"))
		return
	}

	tweet := models.Tweet{
		ID:        uuid.NewString(),
		OwnerID:   actor.ID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Tweets.Create(ctx, tweet); err != nil {
		RespondError(w, r, apperrors.Internal("failed to create tweet", err))
		return
	}

	respond(ctx, w, http.StatusCreated, tweet, "tweet created")
}

// ListByUser handles GET /api/v1/tweets/user/{userId}.
func (h TweetHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tweets, err := h.Tweets.ListByOwner(ctx, r.PathValue("userId"))
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to load tweets", err))
		return
	}

	respond(ctx, w, http.StatusOK, tweets, "tweets fetched")
}
