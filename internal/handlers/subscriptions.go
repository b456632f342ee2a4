package handlers

import (
	"net/http"

	"github.com/clipstream/backend/internal/apperrors"
	"github.com/clipstream/backend/internal/middleware"
)

// SubscriptionHandler implements channel follow endpoints.
type SubscriptionHandler struct {
	Relations RelationStore
}

type subscriptionResponse struct {
	Subscribed bool `json:"subscribed"`
}

type subscriberCountResponse struct {
	Subscribers int64 `json:"subscribers"`
}

// Toggle handles POST /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	channelID := r.PathValue("channelId")
	if channelID == "" {
		RespondError(w, r, apperrors.BadRequest("channel id is required"))
		return
	}
	if channelID == actor.ID {
		RespondError(w, r, apperrors.BadRequest("cannot subscribe to your own channel"))
		return
	}

	subscribed, err := h.Relations.ToggleSubscription(ctx, channelID, actor.ID)
	if err != nil {
		RespondError(w, r, storeError(err, "channel not found"))
		return
	}

	message := "unsubscribed"
	if subscribed {
		message = "subscribed"
	}
	respond(ctx, w, http.StatusOK, subscriptionResponse{Subscribed: subscribed}, message)
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId}.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID := r.PathValue("channelId")
	if channelID == "" {
		RespondError(w, r, apperrors.BadRequest("channel id is required"))
		return
	}

	count, err := h.Relations.SubscriberCount(ctx, channelID)
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to count subscribers", err))
		return
	}

	respond(ctx, w, http.StatusOK, subscriberCountResponse{Subscribers: count}, "subscriber count fetched")
}

// Subscribed handles GET /api/v1/subscriptions. It lists the channels the
// caller follows.
func (h SubscriptionHandler) Subscribed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	channels, err := h.Relations.SubscribedChannels(ctx, actor.ID)
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to load subscriptions", err))
		return
	}

	respond(ctx, w, http.StatusOK, channels, "subscribed channels fetched")
}
