// internal/media/media.go
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/unclebandit/omnipost-backend/internal/model"
)

const MaxFileSize = 100 * 1024 * 1024 // 100MB

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file too large - maximum 100MB allowed")
	ErrInvalidFileType = errors.New("invalid file type - only images, videos and documents allowed")
)

// Store persists uploaded bytes and returns a reference usable in drafts.
type Store interface {
	Upload(ctx context.Context, data []byte, mimeType string) (model.MediaAsset, error)
}

var extensions = map[string]string{
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"image/gif":          ".gif",
	"image/webp":         ".webp",
	"video/mp4":          ".mp4",
	"video/quicktime":    ".mov",
	"video/webm":         ".webm",
	"application/pdf":    ".pdf",
	"text/plain":         ".txt",
	"text/csv":           ".csv",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
}

// KindForMIME maps a content type onto a media kind.
func KindForMIME(mimeType string) (model.MediaKind, error) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return model.MediaImage, nil
	case strings.HasPrefix(mt, "video/"):
		return model.MediaVideo, nil
	}
	if _, ok := extensions[mt]; ok {
		return model.MediaDocument, nil
	}
	return "", ErrInvalidFileType
}

func extensionFor(mimeType string) string {
	mt := strings.ToLower(mimeType)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if ext, ok := extensions[mt]; ok {
		return ext
	}
	return ""
}

// LocalStore writes files under Dir and serves them below BaseURL.
type LocalStore struct {
	Dir     string
	BaseURL string // e.g. "http://localhost:8080/media/files"
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media dir: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Upload(ctx context.Context, data []byte, mimeType string) (model.MediaAsset, error) {
	if len(data) == 0 {
		return model.MediaAsset{}, ErrEmptyFile
	}
	if len(data) > MaxFileSize {
		return model.MediaAsset{}, ErrFileTooLarge
	}
	kind, err := KindForMIME(mimeType)
	if err != nil {
		return model.MediaAsset{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.MediaAsset{}, err
	}

	// uuid names keep client filenames out of the filesystem
	name := uuid.New().String() + extensionFor(mimeType)
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return model.MediaAsset{}, fmt.Errorf("failed to write file: %w", err)
	}

	return model.MediaAsset{URL: s.BaseURL + "/" + name, Kind: kind}, nil
}
