// Package images stores uploaded sheet page images with their thumbnails and
// blur placeholders.
package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/contiapp/conti-server/internal/domain"
)

// ErrInvalidFileID is returned for ids that are not a stored file name.
var ErrInvalidFileID = errors.New("invalid file id")

// ErrUnsupportedFormat is returned when the upload is not a supported image.
var ErrUnsupportedFormat = errors.New("unsupported image format: use JPEG, PNG, WebP or GIF")

// ErrFileNotFound is returned when a stored file does not exist.
var ErrFileNotFound = errors.New("file not found")

var fileIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}(_thumb)?\.(jpg|png|gif|webp)$`)

const thumbSuffix = "_thumb"

// Upload describes one stored page image.
type Upload struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	FilePath     string `json:"file_path"`
	FileID       string `json:"file_id"`
	BlurHash     string `json:"blur_hash,omitempty"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
}

// Page converts the upload into a sheet page.
func (u *Upload) Page() domain.Page {
	return domain.Page{
		URL:          u.URL,
		ThumbnailURL: u.ThumbnailURL,
		FilePath:     u.FilePath,
		FileID:       u.FileID,
		BlurHash:     u.BlurHash,
	}
}

// Storage keeps uploads as {uuid}.{ext} in one directory, next to a
// {uuid}_thumb.jpg thumbnail. Safe for concurrent use.
type Storage struct {
	dir            string
	publicPrefix   string
	thumbnailWidth int
	logger         *slog.Logger
	mu             sync.RWMutex
}

// NewStorage creates the upload directory if needed. Files are addressed
// publicly as {publicPrefix}/{fileID}.
func NewStorage(dir, publicPrefix string, thumbnailWidth int, logger *slog.Logger) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory cannot be empty")
	}
	if thumbnailWidth <= 0 {
		return nil, fmt.Errorf("thumbnail width must be positive")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{
		dir:            dir,
		publicPrefix:   strings.TrimRight(publicPrefix, "/"),
		thumbnailWidth: thumbnailWidth,
		logger:         logger,
	}, nil
}

// Save stores data under a fresh id. The thumbnail and blurhash are derived
// from the decoded image; a page that cannot be decoded is rejected.
func (s *Storage) Save(ctx context.Context, data []byte) (*Upload, error) {
	format, ok := DetectFormat(data)
	if !ok {
		return nil, ErrUnsupportedFormat
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := uuid.NewString()
	fileID := base + "." + format.Ext
	thumbID := base + thumbSuffix + ".jpg"

	thumb, err := Thumbnail(img, s.thumbnailWidth)
	if err != nil {
		return nil, err
	}
	hash, err := ComputeBlurHash(img)
	if err != nil {
		// The placeholder is cosmetic.
		s.logger.Warn("failed to compute blurhash", "file_id", fileID, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path(fileID), data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if err := os.WriteFile(s.path(thumbID), thumb, 0o644); err != nil {
		_ = os.Remove(s.path(fileID))
		return nil, fmt.Errorf("write thumbnail: %w", err)
	}

	return &Upload{
		URL:          s.URL(fileID),
		ThumbnailURL: s.URL(thumbID),
		FilePath:     path.Join(filepath.Base(s.dir), fileID),
		FileID:       fileID,
		BlurHash:     hash,
		ContentType:  format.ContentType,
		Size:         int64(len(data)),
	}, nil
}

// URL returns the public URL of a stored file.
func (s *Storage) URL(fileID string) string {
	return s.publicPrefix + "/" + fileID
}

// Open opens a stored file for serving.
func (s *Storage) Open(fileID string) (*os.File, error) {
	if !fileIDPattern.MatchString(fileID) {
		return nil, ErrInvalidFileID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(s.path(fileID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("open upload: %w", err)
	}
	return f, nil
}

// Exists reports whether fileID is stored.
func (s *Storage) Exists(fileID string) bool {
	if !fileIDPattern.MatchString(fileID) {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := os.Stat(s.path(fileID))
	return err == nil
}

// Delete removes a file and its thumbnail. Missing files are not an error.
func (s *Storage) Delete(fileID string) error {
	if !fileIDPattern.MatchString(fileID) || strings.Contains(fileID, thumbSuffix) {
		return fmt.Errorf("%w: %q", ErrInvalidFileID, fileID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := strings.TrimSuffix(fileID, filepath.Ext(fileID))
	for _, name := range []string{fileID, base + thumbSuffix + ".jpg"} {
		if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", name, err)
		}
	}
	return nil
}

// DeleteFiles removes every id, continuing past failures. The returned error
// joins every individual failure.
func (s *Storage) DeleteFiles(ctx context.Context, fileIDs []string) error {
	var errs []error
	for _, fileID := range fileIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.Delete(fileID); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		s.logger.Warn("some uploads could not be deleted",
			"requested", len(fileIDs),
			"failed", len(errs),
		)
	}
	return errors.Join(errs...)
}

func (s *Storage) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Ping reports whether the upload directory is still a reachable directory.
func (s *Storage) Ping() error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}
