package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/hongminglow/todo-api/internal/apierr"
	"github.com/hongminglow/todo-api/internal/http/respond"
	"github.com/hongminglow/todo-api/internal/upload"
)

// handlerFunc is an http.Handler that reports failure by returning an error.
// Every error ends up in respond.Error, the single place failure bodies are
// written.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (fn handlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := fn(w, r); err != nil {
		respond.Error(w, r, err)
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart reads a multipart body of at most maxBytes.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.New(http.StatusRequestEntityTooLarge, "request body too large")
		}
		return apierr.BadRequest("invalid multipart form")
	}
	return nil
}

// decodeJSON decodes the body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.New(http.StatusRequestEntityTooLarge, "request body too large")
		}
		return apierr.BadRequest("invalid JSON payload")
	}
	return nil
}

// formString returns the multipart value for key, or nil when the form does
// not carry it.
func formString(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	values, ok := r.MultipartForm.Value[key]
	if !ok || len(values) == 0 {
		return nil
	}
	return &values[0]
}

func formBool(r *http.Request, key string) (*bool, error) {
	raw := formString(r, key)
	if raw == nil {
		return nil, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(*raw))
	if err != nil {
		return nil, apierr.BadRequest(key + " must be true or false")
	}
	return &v, nil
}

// stageImage uploads the multipart file named field and returns its URL, or ""
// when the request carries none or the upload failed.
func stageImage(r *http.Request, field, dir string, u upload.Uploader) string {
	if !isMultipart(r) {
		return ""
	}
	staged, err := upload.SaveFormFile(r, field, dir)
	if err != nil {
		slog.WarnContext(r.Context(), "stage upload", "field", field, "err", err)
		return ""
	}
	return upload.Image(r.Context(), u, staged)
}
