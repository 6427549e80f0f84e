package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"spacebook/internal/models"

	"github.com/google/uuid"
)

const fallbackName = "image"

// LocalImageStore keeps uploaded space images in a directory that the
// HTTP server exposes under /uploads/.
type LocalImageStore struct {
	dir string
}

func NewLocalImageStore(dir string) (*LocalImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir: %w", err)
	}
	return &LocalImageStore{dir: dir}, nil
}

func (s *LocalImageStore) Dir() string { return s.dir }

// Save writes r under a sanitized, uuid-prefixed name and returns the
// public path stored on the space.
func (s *LocalImageStore) Save(filename string, r io.Reader) (string, error) {
	name := uuid.NewString()[:8] + "_" + SanitizeFilename(filename)
	full := filepath.Join(s.dir, name)

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("failed to close upload: %w", err)
	}

	return models.UploadsURLPrefix + name, nil
}

// Remove deletes the file behind a public path. Paths outside the
// uploads prefix and already-missing files are ignored.
func (s *LocalImageStore) Remove(publicPath string) error {
	if !strings.HasPrefix(publicPath, models.UploadsURLPrefix) {
		return nil
	}
	name := filepath.Base(strings.TrimPrefix(publicPath, models.UploadsURLPrefix))
	if name == "." || name == string(filepath.Separator) {
		return nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

// SanitizeFilename drops any directory part and keeps only ASCII letters,
// digits, dot, dash and underscore.
func SanitizeFilename(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}

	name := strings.TrimLeft(b.String(), "._")
	if name == "" {
		return fallbackName
	}
	return name
}
