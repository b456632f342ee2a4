package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
)

func newTokenService(store *fakeUserStore) *auth.TokenService {
	return auth.NewTokenService("access-secret", "refresh-secret", time.Minute, time.Hour, store)
}

func seedUser(store *fakeUserStore, id, username, password string) models.User {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	user := models.User{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		PasswordHash: string(hashed),
	}
	store.users[id] = user
	return user
}

func TestAuthHandlerRegister(t *testing.T) {
	store := newFakeUserStore()
	assets := &fakeAssetStorage{}
	handler := AuthHandler{Users: store, Tokens: newTokenService(store), Assets: assets}

	body, contentType, err := multipartBody(map[string]string{
		"username": "Creator",
		"email":    "creator@example.com",
		"fullname": "The Creator",
		"password": "supersafe",
	}, map[string]string{
		"avatar": "avatar.png",
	})
	if err != nil {
		t.Fatalf("build multipart body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	stored, err := store.FindByUsername(context.Background(), "creator")
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("supersafe")) != nil {
		t.Fatal("stored password is not hashed")
	}
	if stored.AvatarURL == "" {
		t.Fatal("expected avatar url on stored user")
	}
	if len(assets.saved) != 1 {
		t.Fatalf("expected one stored object got %d", len(assets.saved))
	}

	raw := rec.Body.String()
	for _, secret := range []string{"password", "refreshToken"} {
		if strings.Contains(raw, secret) {
			t.Fatalf("response body leaks %q: %s", secret, raw)
		}
	}

	var resp envelope
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success envelope, got %+v", resp)
	}
}

func TestAuthHandlerRegisterConflictDiscardsUploads(t *testing.T) {
	store := newFakeUserStore()
	seedUser(store, "user-1", "creator", "password123")
	assets := &fakeAssetStorage{}
	handler := AuthHandler{Users: store, Tokens: newTokenService(store), Assets: assets}

	body, contentType, err := multipartBody(map[string]string{
		"username": "creator",
		"email":    "other@example.com",
		"fullname": "The Creator",
		"password": "supersafe",
	}, map[string]string{
		"avatar":     "avatar.png",
		"coverImage": "cover.png",
	})
	if err != nil {
		t.Fatalf("build multipart body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d: %s", http.StatusConflict, rec.Code, rec.Body.String())
	}
	if len(assets.saved) != 2 {
		t.Fatalf("expected both uploads to reach storage, got %d", len(assets.saved))
	}
	if len(assets.deleted) != 2 {
		t.Fatalf("expected both uploads to be discarded, got %v", assets.deleted)
	}
}

func TestAuthHandlerRegisterValidation(t *testing.T) {
	cases := []struct {
		name       string
		fields     map[string]string
		files      map[string]string
		wantStatus int
	}{
		{
			name:       "missingFields",
			fields:     map[string]string{"username": "u"},
			files:      map[string]string{"avatar": "a.png"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missingAvatar",
			fields: map[string]string{
				"username": "u", "email": "u@example.com", "fullname": "U", "password": "supersafe",
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "shortPassword",
			fields: map[string]string{
				"username": "u", "email": "u@example.com", "fullname": "U", "password": "short",
			},
			files:      map[string]string{"avatar": "a.png"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "badEmail",
			fields: map[string]string{
				"username": "u", "email": "not-an-email", "fullname": "U", "password": "supersafe",
			},
			files:      map[string]string{"avatar": "a.png"},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeUserStore()
			handler := AuthHandler{Users: store, Tokens: newTokenService(store), Assets: &fakeAssetStorage{}}

			body, contentType, err := multipartBody(tc.fields, tc.files)
			if err != nil {
				t.Fatalf("build multipart body: %v", err)
			}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()

			handler.Register(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
			if len(store.users) != 0 {
				t.Fatal("expected no user to be created")
			}
		})
	}
}

func TestAuthHandlerRegisterStorageFailure(t *testing.T) {
	store := newFakeUserStore()
	handler := AuthHandler{
		Users:  store,
		Tokens: newTokenService(store),
		Assets: &fakeAssetStorage{saveErr: errors.New("bucket unavailable")},
	}

	body, contentType, err := multipartBody(map[string]string{
		"username": "u", "email": "u@example.com", "fullname": "U", "password": "supersafe",
	}, map[string]string{"avatar": "a.png"})
	if err != nil {
		t.Fatalf("build multipart body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d got %d", http.StatusBadGateway, rec.Code)
	}
	if len(store.users) != 0 {
		t.Fatal("expected registration to abort without a partial account")
	}
}

func TestAuthHandlerLogin(t *testing.T) {
	store := newFakeUserStore()
	seedUser(store, "user-1", "viewer", "password123")
	handler := AuthHandler{Users: store, Tokens: newTokenService(store)}

	body, _ := json.Marshal(loginRequest{Username: "viewer", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp struct {
		Data sessionResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.AccessToken == "" || resp.Data.RefreshToken == "" {
		t.Fatalf("expected tokens to be issued, got %+v", resp.Data)
	}
	if resp.Data.User.ID != "user-1" {
		t.Fatalf("unexpected user in response: %+v", resp.Data.User)
	}

	cookies := rec.Result().Cookies()
	var names []string
	for _, cookie := range cookies {
		names = append(names, cookie.Name)
		if !cookie.HttpOnly {
			t.Fatalf("expected cookie %s to be http only", cookie.Name)
		}
	}
	if len(names) != 2 {
		t.Fatalf("expected access and refresh cookies, got %v", names)
	}
}

func TestAuthHandlerLoginByEmail(t *testing.T) {
	store := newFakeUserStore()
	seedUser(store, "user-1", "viewer", "password123")
	handler := AuthHandler{Users: store, Tokens: newTokenService(store)}

	body, _ := json.Marshal(loginRequest{Email: "viewer@example.com", Password: "password123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
}

func TestAuthHandlerLoginFailures(t *testing.T) {
	store := newFakeUserStore()
	seedUser(store, "user-1", "viewer", "password123")
	handler := AuthHandler{Users: store, Tokens: newTokenService(store)}

	cases := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"badJSON", "{", http.StatusBadRequest},
		{"missingPassword", `{"username":"viewer"}`, http.StatusBadRequest},
		{"unknownUser", `{"username":"ghost","password":"password123"}`, http.StatusUnauthorized},
		{"wrongPassword", `{"username":"viewer","password":"nope"}`, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()

			handler.Login(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}

func TestAuthHandlerRefreshRotates(t *testing.T) {
	store := newFakeUserStore()
	user := seedUser(store, "user-1", "viewer", "password123")
	tokens := newTokenService(store)
	handler := AuthHandler{Users: store, Tokens: tokens}

	pair, err := tokens.Issue(context.Background(), user.ID, user.Username)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: pair.RefreshToken})
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	// The presented token was superseded by rotation.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: pair.RefreshToken})
	rec = httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuthHandlerRefreshMissingToken(t *testing.T) {
	store := newFakeUserStore()
	handler := AuthHandler{Users: store, Tokens: newTokenService(store)}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()

	handler.Refresh(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestAuthHandlerLogout(t *testing.T) {
	store := newFakeUserStore()
	user := seedUser(store, "user-1", "viewer", "password123")
	tokens := newTokenService(store)
	handler := AuthHandler{Users: store, Tokens: tokens}

	if _, err := tokens.Issue(context.Background(), user.ID, user.Username); err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	req := authedRequest(http.MethodPost, "/api/v1/users/logout", nil, user.Public())
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if store.users[user.ID].RefreshToken != "" {
		t.Fatal("expected persisted refresh token to be cleared")
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.MaxAge != -1 {
			t.Fatalf("expected cookie %s to be expired", cookie.Name)
		}
	}
}

func TestAuthHandlerChangePassword(t *testing.T) {
	store := newFakeUserStore()
	user := seedUser(store, "user-1", "viewer", "password123")
	handler := AuthHandler{Users: store, Tokens: newTokenService(store)}

	body, _ := json.Marshal(changePasswordRequest{OldPassword: "password123", NewPassword: "evenbetter1"})
	req := authedRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body), user.Public())
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if bcrypt.CompareHashAndPassword([]byte(store.users[user.ID].PasswordHash), []byte("evenbetter1")) != nil {
		t.Fatal("expected new password to be stored")
	}
}

func TestAuthHandlerChangePasswordWrongOld(t *testing.T) {
	store := newFakeUserStore()
	user := seedUser(store, "user-1", "viewer", "password123")
	handler := AuthHandler{Users: store, Tokens: newTokenService(store)}

	body, _ := json.Marshal(changePasswordRequest{OldPassword: "wrong", NewPassword: "evenbetter1"})
	req := authedRequest(http.MethodPost, "/api/v1/users/change-password", bytes.NewReader(body), user.Public())
	rec := httptest.NewRecorder()

	handler.ChangePassword(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestAuthHandlerUpdateAccountEmailConflict(t *testing.T) {
	store := newFakeUserStore()
	user := seedUser(store, "user-1", "viewer", "password123")
	seedUser(store, "user-2", "other", "password123")
	handler := AuthHandler{Users: store, Tokens: newTokenService(store)}

	body, _ := json.Marshal(updateAccountRequest{FullName: "Viewer", Email: "other@example.com"})
	req := authedRequest(http.MethodPatch, "/api/v1/users/update-account", bytes.NewReader(body), user.Public())
	rec := httptest.NewRecorder()

	handler.UpdateAccount(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
}

func TestAuthHandlerUpdateAvatarRemovesPrevious(t *testing.T) {
	store := newFakeUserStore()
	user := seedUser(store, "user-1", "viewer", "password123")
	user.AvatarURL = "https://cdn.test/avatars/old.png"
	store.users[user.ID] = user

	assets := &fakeAssetStorage{}
	handler := AuthHandler{Users: store, Tokens: newTokenService(store), Assets: assets}

	body, contentType, err := multipartBody(nil, map[string]string{"avatar": "new.png"})
	if err != nil {
		t.Fatalf("build multipart body: %v", err)
	}
	req := authedRequest(http.MethodPatch, "/api/v1/users/avatar", body, user.Public())
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.UpdateAvatar(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if len(assets.deleted) != 1 || assets.deleted[0] != "https://cdn.test/avatars/old.png" {
		t.Fatalf("expected previous avatar to be deleted, got %v", assets.deleted)
	}
	if store.users[user.ID].AvatarURL == user.AvatarURL {
		t.Fatal("expected avatar url to change")
	}
}

func TestAuthHandlerCurrentUser(t *testing.T) {
	store := newFakeUserStore()
	user := seedUser(store, "user-1", "viewer", "password123")
	handler := AuthHandler{Users: store, Tokens: newTokenService(store)}

	req := authedRequest(http.MethodGet, "/api/v1/users/current-user", nil, user.Public())
	rec := httptest.NewRecorder()

	handler.CurrentUser(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		Data models.PublicUser `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.ID != user.ID {
		t.Fatalf("unexpected user: %+v", resp.Data)
	}
}
