// Package storage is the blob side of persistence: source PDFs live here,
// document rows carry only the locator and display name.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// BlobStore is the narrow contract the core consumes: an opaque byte source
// plus a public URL for client-side viewing.
type BlobStore interface {
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path string, data []byte) error
	GetPublicURL(path string) string
}

// LocalStore keeps blobs under a root directory on local disk.
type LocalStore struct {
	root    string
	baseURL string
	logger  *zap.Logger
}

func NewLocalStore(root, baseURL string, logger *zap.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With(zap.String("component", "blob_store")),
	}, nil
}

// resolve joins path under the root, refusing traversal outside it.
func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.root, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("blob path %q escapes store root", path)
	}
	return full, nil
}

func (s *LocalStore) Download(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("download blob %q: %w", path, err)
	}
	return data, nil
}

func (s *LocalStore) Upload(ctx context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("upload blob %q: %w", path, err)
	}
	s.logger.Debug("blob stored", zap.String("path", path), zap.Int("size", len(data)))
	return nil
}

func (s *LocalStore) GetPublicURL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}
