package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

// ContentTypePNG is the media type of every artifact
const ContentTypePNG = "image/png"

// ErrImageNotFound is returned by Open when no image is stored under the key
var ErrImageNotFound = errors.New("image not found")

// ArtifactKey returns the deterministic name of an image: "<username>/<index>-<kind>.png"
func ArtifactKey(username string, kind entity.ImageKind) (string, error) {
	if err := entity.ValidateUsername(username); err != nil {
		return "", err
	}
	if kind.String() == "unknown" {
		return "", fmt.Errorf("%d: %w", int(kind), entity.ErrUnknownKind)
	}
	return fmt.Sprintf("%s/%d-%s.png", username, kind.Index(), kind), nil
}

// LocalSink writes images below a directory on disk
type LocalSink struct {
	dir string
}

// NewLocalSink creates a sink rooted at dir, creating dir if needed
func NewLocalSink(dir string) (*LocalSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating image dir: %w", err)
	}
	return &LocalSink{dir: dir}, nil
}

// Save writes one PNG and returns its path. The write goes through a
// temporary file so a crashed run never leaves a truncated image behind.
func (s *LocalSink) Save(_ context.Context, username string, kind entity.ImageKind, data []byte) (string, error) {
	key, err := ArtifactKey(username, kind)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating user image dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.png")
	if err != nil {
		return "", fmt.Errorf("creating temp image: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("setting image mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing image: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("renaming image: %w", err)
	}
	return path, nil
}

// Delete removes every image of a user
func (s *LocalSink) Delete(_ context.Context, username string) error {
	if err := entity.ValidateUsername(username); err != nil {
		return err
	}
	err := os.RemoveAll(filepath.Join(s.dir, username))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing images: %w", err)
	}
	return nil
}

// Open returns one stored image of a user
func (s *LocalSink) Open(_ context.Context, username string, kind entity.ImageKind) (io.ReadCloser, error) {
	key, err := ArtifactKey(username, kind)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}
	return f, nil
}
