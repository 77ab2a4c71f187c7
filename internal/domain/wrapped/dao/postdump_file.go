package dao

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vadim/barkwrapped/internal/domain/wrapped/entity"
)

// PostDumpFile stores one text file per user in a directory.
// The file's existence marks the user as already processed.
type PostDumpFile struct {
	dir string

	// sink wraps the opened file before lines are written
	sink func(f *os.File) io.Writer
}

// NewPostDumpFile creates a dump repository rooted at dir, creating dir if needed
func NewPostDumpFile(dir string) (*PostDumpFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating post dump dir: %w", err)
	}
	return &PostDumpFile{dir: dir}, nil
}

// Path returns the dump path of a user
func (d *PostDumpFile) Path(username string) string {
	return filepath.Join(d.dir, username+".txt")
}

// Exists reports whether the user already has a dump
func (d *PostDumpFile) Exists(username string) (bool, error) {
	if err := entity.ValidateUsername(username); err != nil {
		return false, err
	}

	_, err := os.Stat(d.Path(username))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("checking post dump: %w", err)
}

// Create writes one line per post. The file is opened with O_EXCL so two
// concurrent runs for the same user cannot both succeed.
func (d *PostDumpFile) Create(username string, lines []string) error {
	if err := entity.ValidateUsername(username); err != nil {
		return err
	}

	f, err := os.OpenFile(d.Path(username), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return entity.ErrAlreadyProcessed
		}
		return fmt.Errorf("creating post dump: %w", err)
	}

	var target io.Writer = f
	if d.sink != nil {
		target = d.sink(f)
	}
	if err := writeLines(target, lines); err != nil {
		f.Close()
		return d.discard(username, fmt.Errorf("writing post dump: %w", err))
	}
	if err := f.Close(); err != nil {
		return d.discard(username, fmt.Errorf("closing post dump: %w", err))
	}
	return nil
}

// discard removes a partially written dump so the user is not left marked
// as processed
func (d *PostDumpFile) discard(username string, cause error) error {
	if err := os.Remove(d.Path(username)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(cause, fmt.Errorf("removing partial post dump: %w", err))
	}
	return cause
}

func writeLines(target io.Writer, lines []string) error {
	w := bufio.NewWriter(target)
	for _, line := range lines {
		// a post is exactly one line
		line = strings.ReplaceAll(line, "\n", " ")
		if _, err := w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Remove deletes the dump of a user so it can be processed again.
// Removing a missing dump is not an error.
func (d *PostDumpFile) Remove(username string) error {
	if err := entity.ValidateUsername(username); err != nil {
		return err
	}
	if err := os.Remove(d.Path(username)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing post dump: %w", err)
	}
	return nil
}
