package handlers

import (
	"net/http"

	"github.com/clipstream/backend/internal/apperrors"
	"github.com/clipstream/backend/internal/middleware"
)

// ChannelHandler implements the channel profile, watch history, and
// dashboard views.
type ChannelHandler struct {
	Views ViewStore
}

// Profile handles GET /api/v1/users/c/{username}. The viewer's identity
// determines isSubscribed.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	username := r.PathValue("username")
	if username == "" {
		RespondError(w, r, apperrors.BadRequest("username is required"))
		return
	}

	profile, err := h.Views.ChannelProfile(ctx, username, viewer.ID)
	if err != nil {
		RespondError(w, r, storeError(err, "channel not found"))
		return
	}

	respond(ctx, w, http.StatusOK, profile, "channel profile fetched")
}

// History handles GET /api/v1/users/history.
func (h ChannelHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	viewer, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	history, err := h.Views.WatchHistory(ctx, viewer.ID)
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to load watch history", err))
		return
	}

	respond(ctx, w, http.StatusOK, history, "watch history fetched")
}

// Stats handles GET /api/v1/dashboard/stats.
func (h ChannelHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	stats, err := h.Views.ChannelStats(ctx, owner.ID)
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to load channel stats", err))
		return
	}

	respond(ctx, w, http.StatusOK, stats, "channel stats fetched")
}
