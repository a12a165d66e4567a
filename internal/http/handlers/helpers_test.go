package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/todo-api/internal/auth"
	"github.com/hongminglow/todo-api/internal/config"
	"github.com/hongminglow/todo-api/internal/credentials"
	"github.com/hongminglow/todo-api/internal/middleware"
	"github.com/hongminglow/todo-api/internal/models"
	"github.com/hongminglow/todo-api/internal/storage"
	"github.com/hongminglow/todo-api/internal/storage/memory"
	"github.com/hongminglow/todo-api/internal/upload"
)

type stubUploader struct {
	mu    sync.Mutex
	paths []string
	fail  bool
}

func (u *stubUploader) Upload(_ context.Context, localPath string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, localPath)
	if u.fail {
		return "", errors.New("bucket unavailable")
	}
	return "https://cdn.example/" + filepath.Base(localPath), nil
}

func (u *stubUploader) uploaded() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

type testAPI struct {
	handler  http.Handler
	store    storage.Store
	creds    *credentials.Service
	tokens   *auth.TokenManager
	uploader *stubUploader
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		BcryptCost: bcrypt.MinCost,
		Tokens: config.TokenConfig{
			Issuer:        "todo-api",
			AccessSecret:  "access-secret",
			AccessTTL:     15 * time.Minute,
			RefreshSecret: "refresh-secret",
			RefreshTTL:    240 * time.Hour,
		},
		Upload: config.UploadConfig{Dir: t.TempDir(), MaxBytes: 1 << 20},
	}
}

// newRouter mounts the user routes the way the server does.
func newRouter(store storage.Store, uploader upload.Uploader, cfg config.Config) (http.Handler, *credentials.Service, *auth.TokenManager) {
	creds := credentials.NewService(store, cfg.BcryptCost)
	tokens := auth.NewTokenManager(cfg.Tokens)
	requireUser := middleware.Authenticate(tokens, creds, nil)

	r := chi.NewRouter()
	r.Route("/api/v1/user", func(r chi.Router) {
		NewAuthHandler(creds, tokens, uploader, cfg, nil).Register(r, requireUser)
		NewTodoHandler(store, store, uploader, cfg.Upload).Register(r, requireUser)
	})
	return r, creds, tokens
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.New()
	uploader := &stubUploader{}
	h, creds, tokens := newRouter(store, uploader, testConfig(t))
	return &testAPI{handler: h, store: store, creds: creds, tokens: tokens, uploader: uploader}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *testAPI) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

type filePart struct {
	field, name string
	content     []byte
}

func (a *testAPI) doMultipart(t *testing.T, method, path string, fields map[string]string, file *filePart, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile(file.field, file.name)
		require.NoError(t, err)
		_, err = fw.Write(file.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data), string(env.Data))
	}
	return env
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func registration(username string) map[string]string {
	return map[string]string{
		"firstName": "Test",
		"lastName":  "User",
		"username":  username,
		"email":     username + "@example.com",
		"phone":     "+1555" + username,
		"password":  "pw123",
	}
}

func (a *testAPI) register(t *testing.T, username string) models.User {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/user/register", registration(username))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user models.User
	decode(t, rec, &user)
	return user
}

type tokenBody struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

type session struct {
	access, refresh *http.Cookie
	body            tokenBody
}

func (a *testAPI) login(t *testing.T, identifier string) session {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/user/login", map[string]string{"identifier": identifier, "password": "pw123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var s session
	decode(t, rec, &s.body)
	s.access = cookie(rec, middleware.AccessTokenCookie)
	s.refresh = cookie(rec, RefreshTokenCookie)
	require.NotNil(t, s.access)
	require.NotNil(t, s.refresh)
	return s
}
