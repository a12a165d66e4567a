// Package upload stages multipart files on local disk and pushes them to an
// object store. Staged files never outlive the request that created them.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrDisabled is returned by Disabled.Upload.
var ErrDisabled = errors.New("object storage not configured")

// Uploader stores the file at localPath and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Disabled is the Uploader used when no bucket is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string) (string, error) { return "", ErrDisabled }

// Image uploads localPath and returns its URL, or "" when there is nothing to
// upload or the upload failed. localPath is removed in every case.
func Image(ctx context.Context, u Uploader, localPath string) string {
	if localPath == "" {
		return ""
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "remove staged upload", "path", localPath, "err", err)
		}
	}()

	url, err := u.Upload(ctx, localPath)
	if err != nil {
		slog.WarnContext(ctx, "image upload failed", "path", localPath, "err", err)
		return ""
	}
	return url
}

// SaveFormFile copies the multipart file named field into dir and returns the
// staged path. It returns "" and no error when the request carries no such
// file. The caller owns the file; pass it to Image to have it removed.
func SaveFormFile(r *http.Request, field, dir string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", fmt.Errorf("read form file %q: %w", field, err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	dst, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("stage upload: %w", err)
	}
	return dst.Name(), nil
}
