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

// CommentHandler implements comment CRUD and the paginated comment view.
type CommentHandler struct {
	Comments CommentStore
	Videos   VideoStore
	Views    ViewStore
}

type commentRequest struct {
	Content string `json:"content"`
}

// List handles GET /api/v1/comments/{videoId}.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := r.PathValue("videoId")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		RespondError(w, r, storeError(err, "video not found"))
		return
	}

	comments, meta, err := h.Views.CommentList(ctx, videoID, intQuery(r, "page"), intQuery(r, "limit"))
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to load comments", err))
		return
	}

	respond(ctx, w, http.StatusOK, pagedResponse{Items: comments, Meta: meta}, "comments fetched")
}

// Add handles POST /api/v1/comments/{videoId}.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	videoID := r.PathValue("videoId")
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		RespondError(w, r, storeError(err, "video not found"))
		return
	}

	content, ok := h.decodeContent(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC()
	comment := models.Comment{
		ID:        uuid.NewString(),
		VideoID:   videoID,
		OwnerID:   actor.ID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Comments.Create(ctx, comment); err != nil {
		RespondError(w, r, storeError(err, "video not found"))
		return
	}

	respond(ctx, w, http.StatusCreated, comment, "comment added")
}

// Update handles PATCH /api/v1/comments/c/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	comment, ok := h.ownedComment(w, r)
	if !ok {
		return
	}

	content, ok := h.decodeContent(w, r)
	if !ok {
		return
	}

	updated, err := h.Comments.UpdateContent(ctx, comment.ID, content)
	if err != nil {
		RespondError(w, r, storeError(err, "comment not found"))
		return
	}

	respond(ctx, w, http.StatusOK, updated, "comment updated")
}

// Delete handles DELETE /api/v1/comments/c/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	comment, ok := h.ownedComment(w, r)
	if !ok {
		return
	}

	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		RespondError(w, r, storeError(err, "comment not found"))
		return
	}

	respond(ctx, w, http.StatusOK, nil, "comment deleted")
}

func (h CommentHandler) ownedComment(w http.ResponseWriter, r *http.Request) (models.Comment, bool) {
	ctx := r.Context()

	actor, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return models.Comment{}, false
	}

	comment, err := h.Comments.FindByID(ctx, r.PathValue("commentId"))
	if err != nil {
		RespondError(w, r, storeError(err, "comment not found"))
		return models.Comment{}, false
	}

	if comment.OwnerID != actor.ID {
		RespondError(w, r, apperrors.Unauthorized("only the author may modify this comment"))
		return models.Comment{}, false
	}

	return comment, true
}

func (h CommentHandler) decodeContent(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, apperrors.BadRequest("invalid request body"))
		return "", false
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		RespondError(w, r, apperrors.BadRequest("content is required"))
		return "", false
	}
	return content, true
}
