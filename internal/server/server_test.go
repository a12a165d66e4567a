package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/todo-api/internal/config"
	"github.com/hongminglow/todo-api/internal/storage/memory"
	"github.com/hongminglow/todo-api/internal/upload"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		Port:        "0",
		CORSOrigins: []string{"https://app.example"},
		BcryptCost:  bcrypt.MinCost,
		Tokens: config.TokenConfig{
			Issuer:        "todo-api",
			AccessSecret:  "access-secret",
			AccessTTL:     time.Minute,
			RefreshSecret: "refresh-secret",
			RefreshTTL:    time.Hour,
		},
		Upload: config.UploadConfig{Dir: t.TempDir(), MaxBytes: 1 << 20},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(cfg, memory.New(), upload.Disabled{}, logger)
	assert.Equal(t, ":0", srv.Addr())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func send(t *testing.T, method, url string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp := send(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, readEnvelope(t, resp)["success"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	ts := newTestServer(t)

	resp := send(t, http.MethodGet, ts.URL+"/api/v1/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, readEnvelope(t, resp)["success"])

	resp = send(t, http.MethodGet, ts.URL+"/api/v1/user/login", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, false, readEnvelope(t, resp)["success"])
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/user/login", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSessionLifecycleAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	api := ts.URL + "/api/v1/user"

	resp := send(t, http.MethodPost, api+"/register", map[string]string{
		"firstName": "Alice", "lastName": "Liddell", "username": "alice",
		"email": "a@x.com", "phone": "555", "password": "pw123",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = send(t, http.MethodPost, api+"/login", map[string]string{"identifier": "alice", "password": "pw123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var access *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "accessToken" {
			access = c
		}
	}
	require.NotNil(t, access)

	resp = send(t, http.MethodGet, api+"/me", nil, access)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = send(t, http.MethodGet, api+"/logout", nil, access)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = send(t, http.MethodGet, api+"/me", nil, access)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = send(t, http.MethodGet, ts.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `todo_api_auth_events_total{event="login",outcome="success"} 1`)
	assert.Contains(t, string(body), `route="/api/v1/user/me"`)
}
