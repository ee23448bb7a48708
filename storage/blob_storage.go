package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidPath = errors.New("invalid blob path")

type BlobStorage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// LocalBlobStorage keeps uploaded photos on disk and serves them under BaseURL + "/photos/".
type LocalBlobStorage struct {
	Directory string
	BaseURL   string
}

func (s *LocalBlobStorage) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	filePath, err := s.Resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err = file.Write(data); err != nil {
		return "", err
	}

	return s.URL(path), nil
}

// Resolve maps a blob path to its file, rejecting paths that leave Directory.
func (s *LocalBlobStorage) Resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	if path == "" || clean == string(filepath.Separator) || strings.Contains(path, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return filepath.Join(s.Directory, clean), nil
}

func (s *LocalBlobStorage) URL(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + "/photos/" + strings.TrimLeft(path, "/")
}
