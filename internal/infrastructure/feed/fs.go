package feed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FeedExt is the file extension of every published feed.
const FeedExt = ".ics"

// FSPublisher writes feeds as files in a directory.
type FSPublisher struct {
	baseDir string
	mu      sync.RWMutex
}

var _ Publisher = (*FSPublisher)(nil)

// NewFSPublisher creates the directory if needed.
func NewFSPublisher(baseDir string) (*FSPublisher, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create feed directory: %w", err)
	}
	return &FSPublisher{baseDir: baseDir}, nil
}

// Publish writes to a temporary file and renames it into place so readers
// never see a partially written feed.
func (p *FSPublisher) Publish(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tmp, err := os.CreateTemp(p.baseDir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write feed: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set feed permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close feed: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(p.baseDir, name)); err != nil {
		return fmt.Errorf("failed to move feed into place: %w", err)
	}
	return nil
}

// List returns the names of the .ics files in the directory.
func (p *FSPublisher) List(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries, err := os.ReadDir(p.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), FeedExt) && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Delete removes a feed file.
func (p *FSPublisher) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(filepath.Join(p.baseDir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}
