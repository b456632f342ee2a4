package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/apperrors"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

const maxVideoBytes = 512 << 20

// VideoHandler implements the video lifecycle and feed endpoints.
type VideoHandler struct {
	Videos VideoStore
	Views  ViewStore
	Users  UserStore
	Assets AssetStorage
}

type updateVideoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type pagedResponse struct {
	Items any             `json:"items"`
	Meta  models.PageMeta `json:"meta"`
}

// Feed handles GET /api/v1/videos.
func (h VideoHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx, span := logging.StartSpan(r.Context(), "video.feed")
	defer span.End()

	q := repositories.FeedQuery{
		Page:    intQuery(r, "page"),
		Limit:   intQuery(r, "limit"),
		SortBy:  r.URL.Query().Get("sortBy"),
		OwnerID: r.URL.Query().Get("userId"),
		Search:  r.URL.Query().Get("query"),
	}
	if q.SortBy != "" && !repositories.FeedSortable(q.SortBy) {
		RespondError(w, r, apperrors.BadRequest("unsupported sort field"))
		return
	}
	q.SortAsc = strings.EqualFold(r.URL.Query().Get("sortType"), "asc")

	videos, meta, err := h.Views.VideoFeed(ctx, q)
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to load feed", err))
		return
	}

	respond(ctx, w, http.StatusOK, pagedResponse{Items: videos, Meta: meta}, "videos fetched")
}

// Get handles GET /api/v1/videos/{videoId}. Fetching a video counts a view
// and records it in the viewer's watch history.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	viewer, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	video, err := h.Videos.FindByID(ctx, r.PathValue("videoId"))
	if err != nil {
		RespondError(w, r, storeError(err, "video not found"))
		return
	}

	// Unpublished videos are visible to their owner only.
	if !video.IsPublished && video.OwnerID != viewer.ID {
		RespondError(w, r, apperrors.NotFound("video not found"))
		return
	}

	if err := h.Videos.IncrementViews(ctx, video.ID); err != nil {
		logger.Warn("failed to count view", "videoId", video.ID, "error", err)
	} else {
		video.Views++
	}
	if err := h.Users.RecordWatch(ctx, viewer.ID, video.ID); err != nil {
		logger.Warn("failed to record watch", "videoId", video.ID, "error", err)
	}

	respond(ctx, w, http.StatusOK, video, "video fetched")
}

// Publish handles POST /api/v1/videos. Both media files are stored before
// the row is written; a failed thumbnail upload rolls back the video object.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx, span := logging.StartSpan(r.Context(), "video.publish")
	defer span.End()
	logger := logging.FromContext(ctx)

	owner, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		RespondError(w, r, apperrors.BadRequest("expected multipart form data"))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" {
		RespondError(w, r, apperrors.BadRequest("title is required"))
		return
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue("duration")), 64)
	if err != nil || duration < 0 {
		RespondError(w, r, apperrors.BadRequest("duration must be a non-negative number"))
		return
	}

	file, header, err := r.FormFile("videoFile")
	if err != nil {
		RespondError(w, r, apperrors.BadRequest("video file is required"))
		return
	}
	defer file.Close()
	if header.Size > maxVideoBytes {
		RespondError(w, r, apperrors.BadRequest("video exceeds the size limit"))
		return
	}

	fileURL, err := h.Assets.Save(ctx, uploadKey("videos", header), file)
	if err != nil {
		RespondError(w, r, apperrors.Upstream("failed to store video", err))
		return
	}

	thumb, thumbHeader, err := r.FormFile("thumbnail")
	if err != nil {
		h.discard(ctx, fileURL)
		RespondError(w, r, apperrors.BadRequest("thumbnail is required"))
		return
	}
	defer thumb.Close()
	if thumbHeader.Size > maxImageBytes {
		h.discard(ctx, fileURL)
		RespondError(w, r, apperrors.BadRequest("thumbnail exceeds the size limit"))
		return
	}

	thumbURL, err := h.Assets.Save(ctx, uploadKey("thumbnails", thumbHeader), thumb)
	if err != nil {
		h.discard(ctx, fileURL)
		RespondError(w, r, apperrors.Upstream("failed to store thumbnail", err))
		return
	}

	now := time.Now().UTC()
	video := models.Video{
		ID:           uuid.NewString(),
		OwnerID:      owner.ID,
		FileURL:      fileURL,
		ThumbnailURL: thumbURL,
		Title:        title,
		Description:  description,
		Duration:     duration,
		IsPublished:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		h.discard(ctx, fileURL)
		h.discard(ctx, thumbURL)
		RespondError(w, r, apperrors.Internal("failed to publish video", err))
		return
	}

	logger.Info("video published", "videoId", video.ID, "ownerId", owner.ID)
	respond(ctx, w, http.StatusCreated, video, "video published")
}

// Update handles PATCH /api/v1/videos/{videoId}. Multipart requests may
// replace the thumbnail; JSON requests update title and description only.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	var (
		title, description, thumbURL string
		previousThumb                string
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			RespondError(w, r, apperrors.BadRequest("expected multipart form data"))
			return
		}
		title = strings.TrimSpace(r.FormValue("title"))
		description = strings.TrimSpace(r.FormValue("description"))

		file, header, err := r.FormFile("thumbnail")
		if err == nil {
			defer file.Close()
			if header.Size > maxImageBytes {
				RespondError(w, r, apperrors.BadRequest("thumbnail exceeds the size limit"))
				return
			}
			thumbURL, err = h.Assets.Save(ctx, uploadKey("thumbnails", header), file)
			if err != nil {
				RespondError(w, r, apperrors.Upstream("failed to store thumbnail", err))
				return
			}
			previousThumb = video.ThumbnailURL
		} else if !errors.Is(err, http.ErrMissingFile) {
			RespondError(w, r, apperrors.BadRequest("invalid thumbnail upload"))
			return
		}
	} else {
		var req updateVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondError(w, r, apperrors.BadRequest("invalid request body"))
			return
		}
		title = strings.TrimSpace(req.Title)
		description = strings.TrimSpace(req.Description)
	}

	if title == "" && description == "" && thumbURL == "" {
		RespondError(w, r, apperrors.BadRequest("nothing to update"))
		return
	}

	updated, err := h.Videos.UpdateMetadata(ctx, video.ID, title, description, thumbURL)
	if err != nil {
		h.discard(ctx, thumbURL)
		RespondError(w, r, storeError(err, "video not found"))
		return
	}

	if previousThumb != "" {
		if err := h.Assets.Delete(ctx, previousThumb); err != nil {
			logger.Warn("failed to remove replaced thumbnail", "location", previousThumb, "error", err)
		}
	}

	respond(ctx, w, http.StatusOK, updated, "video updated")
}

// Delete handles DELETE /api/v1/videos/{videoId}. Stored media is removed
// best effort once the row is gone.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		RespondError(w, r, storeError(err, "video not found"))
		return
	}

	h.discard(ctx, video.FileURL)
	h.discard(ctx, video.ThumbnailURL)

	respond(ctx, w, http.StatusOK, nil, "video deleted")
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	updated, err := h.Videos.TogglePublish(ctx, video.ID)
	if err != nil {
		RespondError(w, r, storeError(err, "video not found"))
		return
	}

	respond(ctx, w, http.StatusOK, updated, "publish state toggled")
}

// ownedVideo loads the path video and enforces that the caller owns it.
func (h VideoHandler) ownedVideo(w http.ResponseWriter, r *http.Request) (models.Video, bool) {
	ctx := r.Context()

	actor, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return models.Video{}, false
	}

	video, err := h.Videos.FindByID(ctx, r.PathValue("videoId"))
	if err != nil {
		RespondError(w, r, storeError(err, "video not found"))
		return models.Video{}, false
	}

	if video.OwnerID != actor.ID {
		RespondError(w, r, apperrors.Unauthorized("only the owner may modify this video"))
		return models.Video{}, false
	}

	return video, true
}

func (h VideoHandler) discard(ctx context.Context, location string) {
	if location == "" {
		return
	}
	if err := h.Assets.Delete(ctx, location); err != nil {
		logging.FromContext(ctx).Warn("failed to remove stored object", "location", location, "error", err)
	}
}

func intQuery(r *http.Request, key string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return value
}
