package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/todo-api/internal/auth"
	"github.com/hongminglow/todo-api/internal/config"
	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/storage"
)

type lookupFunc func(ctx context.Context, id string) (models.User, error)

func (f lookupFunc) FindByID(ctx context.Context, id string) (models.User, error) { return f(ctx, id) }

var alice = models.User{ID: "0b7f3c0e-6a44-4b0f-8f8e-1c2d3e4f5a6b", Username: "alice", Email: "alice@x.com"}

func newTokens() *auth.TokenManager {
	return auth.NewTokenManager(config.TokenConfig{
		Issuer:        "todo-api",
		AccessSecret:  "access-secret",
		AccessTTL:     time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    time.Hour,
	})
}

func findAlice(_ context.Context, id string) (models.User, error) {
	if id == alice.ID {
		return alice, nil
	}
	return models.User{}, storage.ErrNotFound
}

func protected(tokens *auth.TokenManager, users UserLookup) http.Handler {
	return Authenticate(tokens, users, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Write([]byte(user.Username))
	}))
}

func TestAuthenticate_Cookie(t *testing.T) {
	tokens := newTokens()
	token, err := tokens.IssueAccessToken(alice)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	protected(tokens, lookupFunc(findAlice)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", rec.Body.String())
}

func TestAuthenticate_BearerHeader(t *testing.T) {
	tokens := newTokens()
	token, err := tokens.IssueAccessToken(alice)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	protected(tokens, lookupFunc(findAlice)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_CookieWinsOverHeader(t *testing.T) {
	tokens := newTokens()
	token, err := tokens.IssueAccessToken(alice)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	protected(tokens, lookupFunc(findAlice)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticate_Rejections(t *testing.T) {
	tokens := newTokens()
	refresh, err := tokens.IssueRefreshToken(alice)
	require.NoError(t, err)
	ghost, err := tokens.IssueAccessToken(models.User{ID: "6a1f0c8e-0000-4000-8000-000000000000"})
	require.NoError(t, err)
	valid, err := tokens.IssueAccessToken(alice)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		users  UserLookup
		want   int
	}{
		{"missing", "", lookupFunc(findAlice), http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, lookupFunc(findAlice), http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", lookupFunc(findAlice), http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, lookupFunc(findAlice), http.StatusUnauthorized},
		{"tampered", "Bearer " + flipSignatureByte(valid), lookupFunc(findAlice), http.StatusUnauthorized},
		{"unknown user", "Bearer " + ghost, lookupFunc(findAlice), http.StatusNotFound},
		{"invalid id", "Bearer " + valid, lookupFunc(func(context.Context, string) (models.User, error) {
			return models.User{}, storage.ErrInvalidID
		}), http.StatusNotFound},
		{"store failure", "Bearer " + valid, lookupFunc(func(context.Context, string) (models.User, error) {
			return models.User{}, errors.New("connection reset")
		}), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected(tokens, tc.users).ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	issuer := auth.NewTokenManager(config.TokenConfig{
		Issuer: "todo-api", AccessSecret: "access-secret", AccessTTL: time.Minute,
		RefreshSecret: "refresh-secret", RefreshTTL: time.Hour,
	}, auth.WithClock(func() time.Time { return past }))
	token, err := issuer.IssueAccessToken(alice)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	rec := httptest.NewRecorder()
	protected(newTokens(), lookupFunc(findAlice)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserFromContext_Empty(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	user, ok := UserFromContext(WithUser(context.Background(), alice))
	require.True(t, ok)
	assert.Equal(t, alice.ID, user.ID)
}

func flipSignatureByte(token string) string {
	b := []byte(token)
	i := strings.LastIndexByte(token, '.') + 1
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
