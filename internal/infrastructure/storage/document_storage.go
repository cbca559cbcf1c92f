// internal/infrastructure/storage/document_storage.go
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"go.uber.org/zap"

	"github.com/esunday5/staff-portal/internal/application/port"
)

// DocumentStorage implements port.DocumentStorage on any afs backend
// (file://, mem:// and the other registered schemes).
type DocumentStorage struct {
	fs      afs.Service
	baseURL string
	logger  *zap.Logger
}

// NewDocumentStorage creates storage rooted at baseURL. A plain directory is
// converted to a file:// URL.
func NewDocumentStorage(baseURL string, logger *zap.Logger) (port.DocumentStorage, error) {
	root, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &DocumentStorage{
		fs:      afs.New(),
		baseURL: root,
		logger:  logger,
	}, nil
}

func normalizeBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", fmt.Errorf("storage base url is required")
	}
	if strings.Contains(baseURL, "://") {
		return strings.TrimRight(baseURL, "/"), nil
	}
	abs, err := filepath.Abs(baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to resolve storage directory: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// URL returns the backend location of a relative document path
func (s *DocumentStorage) URL(relativePath string) (string, error) {
	clean, err := validatePath(relativePath)
	if err != nil {
		return "", err
	}
	return s.baseURL + "/" + clean, nil
}

// validatePath rejects absolute paths and anything escaping the base
func validatePath(relativePath string) (string, error) {
	if relativePath == "" {
		return "", fmt.Errorf("document path is empty")
	}
	p := filepath.ToSlash(relativePath)
	if strings.HasPrefix(p, "/") || strings.Contains(p, "://") {
		return "", fmt.Errorf("document path must be relative: %s", relativePath)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("path escapes base directory: %s", relativePath)
	}
	return clean, nil
}

// Save writes content, creating parent folders as needed
func (s *DocumentStorage) Save(ctx context.Context, relativePath string, content []byte) error {
	u, err := s.URL(relativePath)
	if err != nil {
		return err
	}
	if err := s.fs.Upload(ctx, u, file.DefaultFileOsMode, bytes.NewReader(content)); err != nil {
		s.logger.Error("Failed to store document", zap.String("url", u), zap.Error(err))
		return fmt.Errorf("failed to store document: %w", err)
	}
	s.logger.Debug("Document stored", zap.String("url", u), zap.Int("size", len(content)))
	return nil
}

// Read returns the stored bytes
func (s *DocumentStorage) Read(ctx context.Context, relativePath string) ([]byte, error) {
	u, err := s.URL(relativePath)
	if err != nil {
		return nil, err
	}
	data, err := s.fs.DownloadWithURL(ctx, u)
	if err != nil {
		s.logger.Error("Failed to read document", zap.String("url", u), zap.Error(err))
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// Exists reports whether a document is stored at relativePath
func (s *DocumentStorage) Exists(ctx context.Context, relativePath string) (bool, error) {
	u, err := s.URL(relativePath)
	if err != nil {
		return false, err
	}
	ok, err := s.fs.Exists(ctx, u)
	if err != nil {
		return false, fmt.Errorf("failed to check document: %w", err)
	}
	return ok, nil
}

// Delete is idempotent: a missing document is not an error
func (s *DocumentStorage) Delete(ctx context.Context, relativePath string) error {
	u, err := s.URL(relativePath)
	if err != nil {
		return err
	}
	ok, err := s.fs.Exists(ctx, u)
	if err != nil {
		return fmt.Errorf("failed to check document: %w", err)
	}
	if !ok {
		return nil
	}
	if err := s.fs.Delete(ctx, u); err != nil {
		s.logger.Error("Failed to delete document", zap.String("url", u), zap.Error(err))
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
