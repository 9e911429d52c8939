package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// ErrInvalidName is returned when a feed name is empty or contains a path separator.
var ErrInvalidName = errors.New("invalid feed name")

// Publisher stores encoded feeds under a flat namespace of names.
type Publisher interface {
	// Publish writes data under name, replacing any previous feed.
	Publish(ctx context.Context, name string, data []byte) error
	// List returns the names of every published feed.
	List(ctx context.Context) ([]string, error)
	// Delete removes a feed. Deleting a missing feed is not an error.
	Delete(ctx context.Context, name string) error
}

// Prune deletes every published feed whose name is not in keep and returns
// the number removed. Deletion continues past individual failures; the
// errors are joined.
func Prune(ctx context.Context, p Publisher, keep []string) (int, error) {
	names, err := p.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list feeds: %w", err)
	}

	var (
		removed int
		errs    []error
	)
	for _, name := range names {
		if slices.Contains(keep, name) {
			continue
		}
		if err := p.Delete(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete feed %s: %w", name, err))
			continue
		}
		slog.DebugContext(ctx, "pruned feed", "name", name)
		removed++
	}
	return removed, errors.Join(errs...)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		if r == '/' || r == '\\' {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}
