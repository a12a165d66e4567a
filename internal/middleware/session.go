package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hongminglow/todo-api/internal/apierr"
	"github.com/hongminglow/todo-api/internal/auth"
	"github.com/hongminglow/todo-api/internal/http/respond"
	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/storage"
	"github.com/hongminglow/todo-api/internal/telemetry"
)

// AccessTokenCookie is the cookie the access token travels in.
const AccessTokenCookie = "accessToken"

type contextKey struct{}

var userKey contextKey

// UserLookup loads the user an access token names.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// WithUser returns ctx carrying user.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user attached by Authenticate.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

// Authenticate rejects requests without a valid access token and attaches the
// token's user to the request context. Access tokens are verified statelessly;
// logging out does not revoke one before it expires.
func Authenticate(tokens *auth.TokenManager, users UserLookup, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := accessToken(r)
			if token == "" {
				metrics.AuthEvent("session", "missing")
				respond.Error(w, r, apierr.Unauthorized("unauthorized request"))
				return
			}

			claims, err := tokens.Verify(token, auth.AccessToken)
			if err != nil {
				metrics.AuthEvent("session", "invalid")
				respond.Error(w, r, apierr.Unauthorized("invalid access token"))
				return
			}

			user, err := users.FindByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidID) {
					metrics.AuthEvent("session", "unknown_user")
					respond.Error(w, r, apierr.NotFound("user not found"))
					return
				}
				respond.Error(w, r, apierr.Internal("failed to load user", err))
				return
			}

			metrics.AuthEvent("session", "success")
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func accessToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
