package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
)

// AccessTokenCookie is the cookie the login handler sets and the gate reads.
const AccessTokenCookie = "accessToken"

type userKey struct{}

// AccessVerifier validates an access token and returns the identity it carries.
type AccessVerifier interface {
	VerifyAccess(token string) (auth.Identity, error)
}

// PublicUserFinder loads the public projection of a user by id.
type PublicUserFinder interface {
	FindPublicByID(ctx context.Context, id string) (models.PublicUser, error)
}

// Authenticator gates handlers behind access-token verification. Routes opt
// in explicitly by wrapping their handler; nothing is attached ambiently.
type Authenticator struct {
	tokens AccessVerifier
	users  PublicUserFinder
	reject func(w http.ResponseWriter, r *http.Request, err error)
}

// NewAuthenticator wires the gate. reject writes the error response so the
// response envelope stays owned by the handler layer.
func NewAuthenticator(tokens AccessVerifier, users PublicUserFinder, reject func(http.ResponseWriter, *http.Request, error)) *Authenticator {
	if tokens == nil || users == nil || reject == nil {
		panic("middleware: authenticator requires tokens, users, and reject")
	}
	return &Authenticator{tokens: tokens, users: users, reject: reject}
}

// Require verifies the caller's access token, resolves their public profile,
// and attaches it to the request context before invoking next.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			a.reject(w, r, auth.ErrUnauthorized)
			return
		}

		identity, err := a.tokens.VerifyAccess(token)
		if err != nil {
			a.reject(w, r, auth.ErrUnauthorized)
			return
		}

		user, err := a.users.FindPublicByID(r.Context(), identity.UserID)
		if err != nil {
			a.reject(w, r, auth.ErrUnauthorized)
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// bearerToken extracts the access token, preferring the cookie over the
// Authorization header.
func bearerToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// WithUser stores the authenticated user's public profile on the context.
func WithUser(ctx context.Context, user models.PublicUser) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated user set by Require. The second
// return is false for ungated requests.
func UserFromContext(ctx context.Context) (models.PublicUser, bool) {
	user, ok := ctx.Value(userKey{}).(models.PublicUser)
	return user, ok
}
