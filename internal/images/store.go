// Package images stores uploaded question attachments on a filesystem.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/petodopoderoso/cc-liveboard/internal/domain"
	"github.com/petodopoderoso/cc-liveboard/internal/metrics"
)

// MaxImageSize caps uploads at 5 MiB.
const MaxImageSize = 5 << 20

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store keeps attachments as flat files named by a random key. The afero
// abstraction lets tests run against an in-memory filesystem.
type Store struct {
	fs afero.Fs
}

func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewDiskStore creates a store rooted at dir on the OS filesystem.
func NewDiskStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return NewStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

var _ domain.ImageStore = (*Store)(nil)

// Save writes an upload and returns its key. The declared size is validated
// up front and enforced again while copying, so a lying Content-Length cannot
// sneak an oversized body through.
func (s *Store) Save(ctx context.Context, contentType string, size int64, r io.Reader) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", domain.ErrImageType
	}
	if size > MaxImageSize {
		return "", domain.ErrImageTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := uuid.NewString() + ext
	f, err := s.fs.Create(key)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, MaxImageSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && written > MaxImageSize {
		err = domain.ErrImageTooLarge
	}
	if err != nil {
		_ = s.fs.Remove(key)
		if errors.Is(err, domain.ErrImageTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	metrics.ImagesStoredTotal.Inc()
	return key, nil
}

// Open returns the stored image and its content type.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	contentType, err := contentTypeForKey(key)
	if err != nil {
		return nil, "", err
	}

	f, err := s.fs.Open(key)
	if os.IsNotExist(err) {
		return nil, "", domain.ErrImageNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image file: %w", err)
	}
	return f, contentType, nil
}

// contentTypeForKey also acts as key validation: anything that is not a bare
// "uuid.ext" name is rejected before touching the filesystem.
func contentTypeForKey(key string) (string, error) {
	if key != filepath.Base(key) || strings.ContainsAny(key, "/\\") {
		return "", domain.ErrImageNotFound
	}

	ext := filepath.Ext(key)
	if _, err := uuid.Parse(strings.TrimSuffix(key, ext)); err != nil {
		return "", domain.ErrImageNotFound
	}

	for contentType, e := range extensions {
		if e == ext {
			return contentType, nil
		}
	}
	return "", domain.ErrImageNotFound
}
