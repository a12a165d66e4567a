package handlers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/storage/postgres"
)

// TestAuthIntegration exercises the session lifecycle against a live Postgres.
func TestAuthIntegration(t *testing.T) {
	if os.Getenv("RUN_AUTH_INTEGRATION") != "true" {
		t.Skip("set RUN_AUTH_INTEGRATION=true to run this integration test")
	}

	loadDotEnv()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	store, err := postgres.NewStore(ctx, dbURL)
	require.NoError(t, err, "init store")
	defer store.Close(ctx)
	require.NoError(t, store.Migrate(ctx))

	uploader := &stubUploader{}
	h, creds, tokens := newRouter(store, uploader, testConfig(t))
	api := &testAPI{handler: h, store: store, creds: creds, tokens: tokens, uploader: uploader}

	username := fmt.Sprintf("apitest_%d", time.Now().UnixNano())
	user := api.register(t, username)
	assert.Equal(t, username, user.Username)

	s := api.login(t, username)
	assert.Equal(t, user.ID, s.body.User.ID)

	rec := api.do(t, http.MethodGet, "/api/v1/user/me", nil, s.access)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	decode(t, rec, &me)
	assert.Equal(t, user.ID, me.ID)

	todo := api.createTodo(t, s, "integration "+username)
	assert.Equal(t, []string{todo.Title}, api.listTitles(t, s))

	rec = api.do(t, http.MethodPost, "/api/v1/user/refresh-access-token", nil, s.refresh)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPost, "/api/v1/user/refresh-access-token", nil, s.refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "rotated refresh token must be rejected")

	rec = api.do(t, http.MethodGet, "/api/v1/user/logout", nil, s.access)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Logf("created user %s (id=%s) and ran the session lifecycle", username, user.ID)
}

func loadDotEnv() {
	paths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
		"../../../../.env",
	}
	for _, path := range paths {
		_ = godotenv.Overload(path)
	}
}
