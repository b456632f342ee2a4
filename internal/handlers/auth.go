package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clipstream/backend/internal/apperrors"
	"github.com/clipstream/backend/internal/logging"
	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

const (
	refreshTokenCookie = "refreshToken"
	maxUploadMemory    = 32 << 20
	maxImageBytes      = 8 << 20
)

// AuthHandler implements registration, login, and account maintenance.
type AuthHandler struct {
	Users   UserStore
	Tokens  TokenManager
	Assets  AssetStorage
	Limiter RateLimiter
	NowFunc func() time.Time
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
}

type sessionResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

// Register handles POST /api/v1/users/register. The avatar upload happens
// before the account row is written; when the row cannot be written the
// uploads are discarded so neither failure leaves anything behind.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "register") {
		RespondError(w, r, apperrors.RateLimited("too many registration attempts"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		RespondError(w, r, apperrors.BadRequest("expected multipart form data"))
		return
	}

	username := strings.TrimSpace(strings.ToLower(r.FormValue("username")))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	fullName := strings.TrimSpace(r.FormValue("fullname"))
	password := r.FormValue("password")

	var missing []string
	for field, value := range map[string]string{
		"username": username, "email": email, "fullname": fullName, "password": password,
	} {
		if value == "" {
			missing = append(missing, field+" is required")
		}
	}
	if len(missing) > 0 {
		RespondError(w, r, apperrors.BadRequest("missing required fields", missing...))
		return
	}

	if _, err := mail.ParseAddress(email); err != nil {
		RespondError(w, r, apperrors.BadRequest("invalid email address"))
		return
	}
	if len(password) < 8 {
		RespondError(w, r, apperrors.BadRequest("password must be at least 8 characters"))
		return
	}

	avatarURL, err := h.saveImage(r, "avatar", "avatars")
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if avatarURL == "" {
		RespondError(w, r, apperrors.BadRequest("avatar image is required"))
		return
	}

	coverURL, err := h.saveImage(r, "coverImage", "covers")
	if err != nil {
		RespondError(w, r, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		h.discard(ctx, avatarURL)
		h.discard(ctx, coverURL)
		RespondError(w, r, apperrors.Internal("failed to secure password", err))
		return
	}

	now := h.now()
	user := models.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		PasswordHash:  string(hashed),
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		h.discard(ctx, avatarURL)
		h.discard(ctx, coverURL)
		if errors.Is(err, repositories.ErrConflict) {
			RespondError(w, r, apperrors.Conflict("username or email already registered"))
			return
		}
		RespondError(w, r, apperrors.Internal("failed to create account", err))
		return
	}

	logger.Info("user registered", "userId", user.ID, "username", user.Username)
	respond(ctx, w, http.StatusCreated, user.Public(), "user registered")
}

// Login handles POST /api/v1/users/login. The caller may identify by
// username or email; credential failures are indistinguishable.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		RespondError(w, r, apperrors.RateLimited("too many login attempts"))
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, apperrors.BadRequest("invalid request body"))
		return
	}

	req.Username = strings.TrimSpace(strings.ToLower(req.Username))
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if (req.Username == "" && req.Email == "") || req.Password == "" {
		RespondError(w, r, apperrors.BadRequest("username or email and password are required"))
		return
	}

	var (
		user models.User
		err  error
	)
	if req.Username != "" {
		user, err = h.Users.FindByUsername(ctx, req.Username)
	} else {
		user, err = h.Users.FindByEmail(ctx, req.Email)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			RespondError(w, r, apperrors.Unauthorized("invalid credentials"))
			return
		}
		RespondError(w, r, apperrors.Internal("failed to look up account", err))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		RespondError(w, r, apperrors.Unauthorized("invalid credentials"))
		return
	}

	pair, err := h.Tokens.Issue(ctx, user.ID, user.Username)
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to create session", err))
		return
	}

	setAuthCookies(w, pair)
	respond(ctx, w, http.StatusOK, sessionResponse{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "logged in")
}

// Logout handles POST /api/v1/users/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	if err := h.Tokens.Invalidate(ctx, user.ID); err != nil {
		RespondError(w, r, apperrors.Internal("failed to end session", err))
		return
	}

	clearAuthCookies(w)
	respond(ctx, w, http.StatusOK, nil, "logged out")
}

// Refresh handles POST /api/v1/users/refresh-token. The refresh token can
// arrive via cookie or request body; rotation invalidates the presented
// token either way.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "refresh") {
		RespondError(w, r, apperrors.RateLimited("too many refresh attempts"))
		return
	}

	token := ""
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			token = strings.TrimSpace(req.RefreshToken)
		}
	}
	if token == "" {
		RespondError(w, r, apperrors.BadRequest("refresh token is required"))
		return
	}

	pair, err := h.Tokens.Rotate(ctx, token)
	if err != nil {
		RespondError(w, r, storeError(err, "account no longer exists"))
		return
	}

	setAuthCookies(w, pair)
	respond(ctx, w, http.StatusOK, pair, "session refreshed")
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	current, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, apperrors.BadRequest("invalid request body"))
		return
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		RespondError(w, r, apperrors.BadRequest("old and new passwords are required"))
		return
	}
	if len(req.NewPassword) < 8 {
		RespondError(w, r, apperrors.BadRequest("password must be at least 8 characters"))
		return
	}

	user, err := h.Users.FindByID(ctx, current.ID)
	if err != nil {
		RespondError(w, r, storeError(err, "account no longer exists"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		RespondError(w, r, apperrors.Unauthorized("incorrect password"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		RespondError(w, r, apperrors.Internal("failed to secure password", err))
		return
	}

	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed)); err != nil {
		RespondError(w, r, storeError(err, "account no longer exists"))
		return
	}

	respond(ctx, w, http.StatusOK, nil, "password changed")
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	respond(ctx, w, http.StatusOK, user, "current user")
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h AuthHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	current, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	var req updateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, apperrors.BadRequest("invalid request body"))
		return
	}

	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.FullName == "" || req.Email == "" {
		RespondError(w, r, apperrors.BadRequest("fullname and email are required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		RespondError(w, r, apperrors.BadRequest("invalid email address"))
		return
	}

	updated, err := h.Users.UpdateProfile(ctx, current.ID, req.FullName, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			RespondError(w, r, apperrors.Conflict("email already in use"))
			return
		}
		RespondError(w, r, storeError(err, "account no longer exists"))
		return
	}

	respond(ctx, w, http.StatusOK, updated, "account updated")
}

// UpdateAvatar handles PATCH /api/v1/users/avatar.
func (h AuthHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.swapImage(w, r, "avatar", "avatars", h.Users.UpdateAvatar)
}

// UpdateCover handles PATCH /api/v1/users/cover-image.
func (h AuthHandler) UpdateCover(w http.ResponseWriter, r *http.Request) {
	h.swapImage(w, r, "coverImage", "covers", h.Users.UpdateCoverImage)
}

func (h AuthHandler) swapImage(w http.ResponseWriter, r *http.Request, field, prefix string, update func(ctx context.Context, userID, url string) (string, error)) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	current, ok := middleware.UserFromContext(ctx)
	if !ok {
		RespondError(w, r, apperrors.Unauthorized("authentication required"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		RespondError(w, r, apperrors.BadRequest("expected multipart form data"))
		return
	}

	url, err := h.saveImage(r, field, prefix)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	if url == "" {
		RespondError(w, r, apperrors.BadRequest(field+" image is required"))
		return
	}

	previous, err := update(ctx, current.ID, url)
	if err != nil {
		RespondError(w, r, storeError(err, "account no longer exists"))
		return
	}

	if previous != "" {
		if err := h.Assets.Delete(ctx, previous); err != nil {
			logger.Warn("failed to remove replaced image", "location", previous, "error", err)
		}
	}

	user, err := h.Users.FindByID(ctx, current.ID)
	if err != nil {
		RespondError(w, r, storeError(err, "account no longer exists"))
		return
	}

	respond(ctx, w, http.StatusOK, user.Public(), field+" updated")
}

func (h AuthHandler) discard(ctx context.Context, location string) {
	if location == "" {
		return
	}
	if err := h.Assets.Delete(ctx, location); err != nil {
		logging.FromContext(ctx).Warn("failed to remove stored object", "location", location, "error", err)
	}
}

// saveImage uploads the named multipart file under prefix and returns its
// public location, or "" when the part is absent.
func (h AuthHandler) saveImage(r *http.Request, field, prefix string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", apperrors.BadRequest("invalid " + field + " upload")
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		return "", apperrors.BadRequest(field + " exceeds the size limit")
	}

	url, err := h.Assets.Save(r.Context(), uploadKey(prefix, header), file)
	if err != nil {
		return "", apperrors.Upstream("failed to store "+field, err)
	}
	return url, nil
}

func uploadKey(prefix string, header *multipart.FileHeader) string {
	ext := strings.ToLower(path.Ext(header.Filename))
	return fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)
}

func setAuthCookies(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		Expires:  pair.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, refreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
