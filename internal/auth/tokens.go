// Package auth implements the token lifecycle: issuing signed access and
// refresh tokens, stateless access verification, single-use refresh
// rotation, and logout invalidation.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clipstream/backend/internal/models"
)

// ErrUnauthorized covers every token verification failure. Callers are not
// told whether a token was expired, forged, superseded, or orphaned.
var ErrUnauthorized = errors.New("unauthorized")

// CredentialStore is the persistence surface the token service needs: the
// user a refresh token belongs to, and the single refresh-token slot on it.
// ReplaceRefreshToken writes the slot only while it still holds presented,
// so two rotations of the same token produce exactly one winner.
type CredentialStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	UpdateRefreshToken(ctx context.Context, userID, refreshToken string) error
	ReplaceRefreshToken(ctx context.Context, userID, presented, next string) error
}

// Identity is the resolved subject of a verified access token.
type Identity struct {
	UserID   string
	Username string
}

type claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and rotates token pairs. Access and refresh tokens
// are signed with distinct secrets and lifetimes; the refresh token is
// additionally persisted on the user so that at most one is live per user.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	users CredentialStore
	now   func() time.Time
}

// NewTokenService constructs a TokenService backed by the given store.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, users CredentialStore) *TokenService {
	if users == nil {
		panic("auth: credential store must not be nil")
	}
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		users:         users,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a token pair for the user and persists the refresh token,
// superseding any previously issued one.
func (s *TokenService) Issue(ctx context.Context, userID, username string) (models.TokenPair, error) {
	if userID == "" {
		return models.TokenPair{}, errors.New("user id must be provided")
	}

	pair, err := s.mint(userID, username)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := s.users.UpdateRefreshToken(ctx, userID, pair.RefreshToken); err != nil {
		return models.TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return pair, nil
}

// mint signs a fresh pair without persisting anything. Each token carries a
// random jti so no two tokens ever serialize identically, even within the
// same signing second.
func (s *TokenService) mint(userID, username string) (models.TokenPair, error) {
	now := s.now()
	accessExpiry := now.Add(s.accessTTL)
	refreshExpiry := now.Add(s.refreshTTL)

	access, err := s.sign(s.accessSecret, claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
		},
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := s.sign(s.refreshSecret, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpiry),
		},
	})
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return models.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExpiry,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExpiry,
	}, nil
}

// VerifyAccess checks the access token's signature and expiry without
// touching the store.
func (s *TokenService) VerifyAccess(token string) (Identity, error) {
	parsed, err := s.parse(s.accessSecret, token)
	if err != nil {
		return Identity{}, ErrUnauthorized
	}
	return Identity{UserID: parsed.Subject, Username: parsed.Username}, nil
}

// Rotate exchanges a refresh token for a new pair. The presented token must
// byte-equal the one persisted on the user: a superseded token, even one
// that is still within its expiry, is rejected. The persist is a
// compare-and-swap keyed on the presented token, so a token superseded
// between the read and the write still loses.
func (s *TokenService) Rotate(ctx context.Context, presented string) (models.TokenPair, error) {
	parsed, err := s.parse(s.refreshSecret, presented)
	if err != nil {
		return models.TokenPair{}, ErrUnauthorized
	}

	user, err := s.users.FindByID(ctx, parsed.Subject)
	if err != nil {
		return models.TokenPair{}, ErrUnauthorized
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(user.RefreshToken)) != 1 {
		return models.TokenPair{}, ErrUnauthorized
	}

	pair, err := s.mint(user.ID, user.Username)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err := s.users.ReplaceRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		return models.TokenPair{}, ErrUnauthorized
	}

	return pair, nil
}

// Invalidate clears the persisted refresh token. Subsequent Rotate calls
// for the user fail until a fresh login.
func (s *TokenService) Invalidate(ctx context.Context, userID string) error {
	if err := s.users.UpdateRefreshToken(ctx, userID, ""); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	return nil
}

func (s *TokenService) sign(secret []byte, c claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

func (s *TokenService) parse(secret []byte, token string) (claims, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return claims{}, err
	}
	if !parsed.Valid || c.Subject == "" {
		return claims{}, ErrUnauthorized
	}
	return c, nil
}
