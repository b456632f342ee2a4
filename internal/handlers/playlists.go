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

// PlaylistHandler implements playlist CRUD and membership edits.
type PlaylistHandler struct {
	Playlists PlaylistStore
	Views     ViewStore
}

type playlistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /api/v1/playlists.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, apperrors.BadRequest("invalid request body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		RespondError(w, r, apperrors.BadRequest("name is required"))
		return
	}

	now := time.Now().UTC()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		OwnerID:     actor.ID,
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Playlists.Create(ctx, playlist); err != nil {
		RespondError(w, r, apperrors.Internal("failed to create playlist", err))
		return
	}

	respond(ctx, w, http.StatusCreated, playlist, "playlist created")
}

// Get handles GET /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	detail, err := h.Views.PlaylistDetail(ctx, r.PathValue("playlistId"))
	if err != nil {
		RespondError(w, r, storeError(err, "playlist not found"))
		return
	}

	respond(ctx, w, http.StatusOK, detail, "playlist fetched")
}

// ListByUser handles GET /api/v1/playlists/user/{userId}.
func (h PlaylistHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlists, err := h.Playlists.ListByOwner(ctx, r.PathValue("userId"))
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to load playlists", err))
		return
	}

	respond(ctx, w, http.StatusOK, playlists, "playlists fetched")
}

// Update handles PATCH /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, ok := h.ownedPlaylist(w, r)
	if !ok {
		return
	}

	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, apperrors.BadRequest("invalid request body"))
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" && req.Description == "" {
		RespondError(w, r, apperrors.BadRequest("nothing to update"))
		return
	}

	updated, err := h.Playlists.Update(ctx, playlist.ID, req.Name, req.Description)
	if err != nil {
		RespondError(w, r, storeError(err, "playlist not found"))
		return
	}

	respond(ctx, w, http.StatusOK, updated, "playlist updated")
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, ok := h.ownedPlaylist(w, r)
	if !ok {
		return
	}

	if err := h.Playlists.Delete(ctx, playlist.ID); err != nil {
		RespondError(w, r, storeError(err, "playlist not found"))
		return
	}

	respond(ctx, w, http.StatusOK, nil, "playlist deleted")
}

// AddVideo handles PATCH /api/v1/playlists/add/{videoId}/{playlistId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, ok := h.ownedPlaylist(w, r)
	if !ok {
		return
	}

	if err := h.Playlists.AddVideo(ctx, playlist.ID, r.PathValue("videoId")); err != nil {
		RespondError(w, r, storeError(err, "video not found"))
		return
	}

	respond(ctx, w, http.StatusOK, nil, "video added to playlist")
}

// RemoveVideo handles PATCH /api/v1/playlists/remove/{videoId}/{playlistId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	playlist, ok := h.ownedPlaylist(w, r)
	if !ok {
		return
	}

	if err := h.Playlists.RemoveVideo(ctx, playlist.ID, r.PathValue("videoId")); err != nil {
		RespondError(w, r, storeError(err, "video is not in the playlist"))
		return
	}

	respond(ctx, w, http.StatusOK, nil, "video removed from playlist")
}

func (h PlaylistHandler) ownedPlaylist(w http.ResponseWriter, r *http.Request) (models.Playlist, bool) {
	ctx := r.Context()

	actor, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return models.Playlist{}, false
	}

	playlist, err := h.Playlists.FindByID(ctx, r.PathValue("playlistId"))
	if err != nil {
		RespondError(w, r, storeError(err, "playlist not found"))
		return models.Playlist{}, false
	}

	if playlist.OwnerID != actor.ID {
		RespondError(w, r, apperrors.Unauthorized("only the owner may modify this playlist"))
		return models.Playlist{}, false
	}

	return playlist, true
}
