package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/clipstream/backend/internal/middleware"
	"github.com/clipstream/backend/internal/models"
	"github.com/clipstream/backend/internal/repositories"
)

type fakeUserStore struct {
	users    map[string]models.User
	watched  []string
	watchErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User)}
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *fakeUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	for _, user := range s.users {
		if user.Username == strings.ToLower(username) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range s.users {
		if user.Email == strings.ToLower(email) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *fakeUserStore) FindPublicByID(ctx context.Context, id string) (models.PublicUser, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return models.PublicUser{}, err
	}
	return user.Public(), nil
}

func (s *fakeUserStore) UpdateRefreshToken(_ context.Context, userID, refreshToken string) error {
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = refreshToken
	s.users[userID] = user
	return nil
}

func (s *fakeUserStore) ReplaceRefreshToken(_ context.Context, userID, presented, next string) error {
	user, ok := s.users[userID]
	if !ok || user.RefreshToken != presented {
		return repositories.ErrNotFound
	}
	user.RefreshToken = next
	s.users[userID] = user
	return nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.PasswordHash = passwordHash
	s.users[userID] = user
	return nil
}

func (s *fakeUserStore) UpdateProfile(_ context.Context, userID, fullName, email string) (models.PublicUser, error) {
	user, ok := s.users[userID]
	if !ok {
		return models.PublicUser{}, repositories.ErrNotFound
	}
	for id, other := range s.users {
		if id != userID && other.Email == email {
			return models.PublicUser{}, repositories.ErrConflict
		}
	}
	user.FullName = fullName
	user.Email = email
	s.users[userID] = user
	return user.Public(), nil
}

func (s *fakeUserStore) UpdateAvatar(_ context.Context, userID, avatarURL string) (string, error) {
	user, ok := s.users[userID]
	if !ok {
		return "", repositories.ErrNotFound
	}
	previous := user.AvatarURL
	user.AvatarURL = avatarURL
	s.users[userID] = user
	return previous, nil
}

func (s *fakeUserStore) UpdateCoverImage(_ context.Context, userID, coverURL string) (string, error) {
	user, ok := s.users[userID]
	if !ok {
		return "", repositories.ErrNotFound
	}
	previous := user.CoverImageURL
	user.CoverImageURL = coverURL
	s.users[userID] = user
	return previous, nil
}

func (s *fakeUserStore) RecordWatch(_ context.Context, userID, videoID string) error {
	if s.watchErr != nil {
		return s.watchErr
	}
	s.watched = append(s.watched, userID+":"+videoID)
	return nil
}

type fakeAssetStorage struct {
	saved   []string
	deleted []string
	saveErr error
}

func (s *fakeAssetStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.saved = append(s.saved, name)
	return "https://cdn.test/" + name, nil
}

func (s *fakeAssetStorage) Delete(_ context.Context, location string) error {
	s.deleted = append(s.deleted, location)
	return nil
}

type fakeVideoStore struct {
	videos    map[string]models.Video
	viewed    []string
	createErr error
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: make(map[string]models.Video)}
}

func (s *fakeVideoStore) Create(_ context.Context, video models.Video) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.videos[video.ID] = video
	return nil
}

func (s *fakeVideoStore) FindByID(_ context.Context, id string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *fakeVideoStore) IncrementViews(_ context.Context, id string) error {
	video, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	video.Views++
	s.videos[id] = video
	s.viewed = append(s.viewed, id)
	return nil
}

func (s *fakeVideoStore) UpdateMetadata(_ context.Context, id, title, description, thumbnailURL string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	if title != "" {
		video.Title = title
	}
	if description != "" {
		video.Description = description
	}
	if thumbnailURL != "" {
		video.ThumbnailURL = thumbnailURL
	}
	s.videos[id] = video
	return video, nil
}

func (s *fakeVideoStore) TogglePublish(_ context.Context, id string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	video.IsPublished = !video.IsPublished
	s.videos[id] = video
	return video, nil
}

func (s *fakeVideoStore) Delete(_ context.Context, id string) error {
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

type fakeViewStore struct {
	profile    models.ChannelProfile
	profileErr error
	history    []models.VideoWithOwner
	liked      []models.LikedVideo
	playlist   models.PlaylistDetail
	feed       []models.VideoWithOwner
	feedMeta   models.PageMeta
	feedQuery  repositories.FeedQuery
	comments   []models.CommentWithMeta
	stats      models.ChannelStats
}

func (s *fakeViewStore) ChannelProfile(_ context.Context, username, viewerID string) (models.ChannelProfile, error) {
	if s.profileErr != nil {
		return models.ChannelProfile{}, s.profileErr
	}
	return s.profile, nil
}

func (s *fakeViewStore) WatchHistory(_ context.Context, userID string) ([]models.VideoWithOwner, error) {
	return s.history, nil
}

func (s *fakeViewStore) LikedVideos(_ context.Context, userID string) ([]models.LikedVideo, error) {
	return s.liked, nil
}

func (s *fakeViewStore) PlaylistDetail(_ context.Context, playlistID string) (models.PlaylistDetail, error) {
	if s.playlist.ID == "" {
		return models.PlaylistDetail{}, repositories.ErrNotFound
	}
	return s.playlist, nil
}

func (s *fakeViewStore) VideoFeed(_ context.Context, q repositories.FeedQuery) ([]models.VideoWithOwner, models.PageMeta, error) {
	s.feedQuery = q
	return s.feed, s.feedMeta, nil
}

func (s *fakeViewStore) CommentList(_ context.Context, videoID string, page, limit int) ([]models.CommentWithMeta, models.PageMeta, error) {
	page, limit = repositories.NormalizePage(page, limit)
	return s.comments, models.NewPageMeta(page, limit, int64(len(s.comments))), nil
}

func (s *fakeViewStore) ChannelStats(_ context.Context, userID string) (models.ChannelStats, error) {
	return s.stats, nil
}

type fakeRelationStore struct {
	liked      bool
	total      int64
	subscribed bool
	channels   []models.OwnerProfile
	count      int64
	err        error
	lastKind   models.LikeKind
	lastTarget string
}

func (s *fakeRelationStore) ToggleLike(_ context.Context, kind models.LikeKind, targetID, likerID string) (bool, int64, error) {
	if s.err != nil {
		return false, 0, s.err
	}
	s.lastKind = kind
	s.lastTarget = targetID
	return s.liked, s.total, nil
}

func (s *fakeRelationStore) ToggleSubscription(_ context.Context, channelID, subscriberID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.subscribed, nil
}

func (s *fakeRelationStore) SubscriberCount(_ context.Context, channelID string) (int64, error) {
	return s.count, s.err
}

func (s *fakeRelationStore) SubscribedChannels(_ context.Context, subscriberID string) ([]models.OwnerProfile, error) {
	return s.channels, s.err
}

type fakePlaylistStore struct {
	playlists map[string]models.Playlist
	members   map[string][]string
	addErr    error
}

func newFakePlaylistStore() *fakePlaylistStore {
	return &fakePlaylistStore{
		playlists: make(map[string]models.Playlist),
		members:   make(map[string][]string),
	}
}

func (s *fakePlaylistStore) Create(_ context.Context, playlist models.Playlist) error {
	s.playlists[playlist.ID] = playlist
	return nil
}

func (s *fakePlaylistStore) FindByID(_ context.Context, id string) (models.Playlist, error) {
	playlist, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	return playlist, nil
}

func (s *fakePlaylistStore) ListByOwner(_ context.Context, ownerID string) ([]models.Playlist, error) {
	var out []models.Playlist
	for _, playlist := range s.playlists {
		if playlist.OwnerID == ownerID {
			out = append(out, playlist)
		}
	}
	return out, nil
}

func (s *fakePlaylistStore) Update(_ context.Context, id, name, description string) (models.Playlist, error) {
	playlist, ok := s.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	if name != "" {
		playlist.Name = name
	}
	if description != "" {
		playlist.Description = description
	}
	s.playlists[id] = playlist
	return playlist, nil
}

func (s *fakePlaylistStore) Delete(_ context.Context, id string) error {
	if _, ok := s.playlists[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.playlists, id)
	return nil
}

func (s *fakePlaylistStore) AddVideo(_ context.Context, playlistID, videoID string) error {
	if s.addErr != nil {
		return s.addErr
	}
	for _, member := range s.members[playlistID] {
		if member == videoID {
			return repositories.ErrConflict
		}
	}
	s.members[playlistID] = append(s.members[playlistID], videoID)
	return nil
}

func (s *fakePlaylistStore) RemoveVideo(_ context.Context, playlistID, videoID string) error {
	members := s.members[playlistID]
	for i, member := range members {
		if member == videoID {
			s.members[playlistID] = append(members[:i], members[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

type fakeCommentStore struct {
	comments map[string]models.Comment
}

func newFakeCommentStore() *fakeCommentStore {
	return &fakeCommentStore{comments: make(map[string]models.Comment)}
}

func (s *fakeCommentStore) Create(_ context.Context, comment models.Comment) error {
	s.comments[comment.ID] = comment
	return nil
}

func (s *fakeCommentStore) FindByID(_ context.Context, id string) (models.Comment, error) {
	comment, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return comment, nil
}

func (s *fakeCommentStore) UpdateContent(_ context.Context, id, content string) (models.Comment, error) {
	comment, ok := s.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	comment.Content = content
	s.comments[id] = comment
	return comment, nil
}

func (s *fakeCommentStore) Delete(_ context.Context, id string) error {
	if _, ok := s.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.comments, id)
	return nil
}

type fakeTweetStore struct {
	tweets []models.Tweet
}

func (s *fakeTweetStore) Create(_ context.Context, tweet models.Tweet) error {
	s.tweets = append(s.tweets, tweet)
	return nil
}

func (s *fakeTweetStore) ListByOwner(_ context.Context, ownerID string) ([]models.Tweet, error) {
	var out []models.Tweet
	for _, tweet := range s.tweets {
		if tweet.OwnerID == ownerID {
			out = append(out, tweet)
		}
	}
	return out, nil
}

// authedRequest builds a request with the given user attached the way the
// auth gate would.
func authedRequest(method, target string, body io.Reader, user models.PublicUser) *http.Request {
	req := httptest.NewRequest(method, target, body)
	return req.WithContext(middleware.WithUser(req.Context(), user))
}

// multipartBody assembles a multipart form with string fields and small
// in-memory file parts, returning the body and its content type.
func multipartBody(fields map[string]string, files map[string]string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	for field, value := range fields {
		if err := writer.WriteField(field, value); err != nil {
			return nil, "", err
		}
	}
	for field, filename := range files {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := fmt.Fprintf(part, "fake %s bytes", field); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return buf, writer.FormDataContentType(), nil
}
