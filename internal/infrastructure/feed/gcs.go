package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSPublisher writes feeds as objects under a prefix of a GCS bucket.
type GCSPublisher struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ Publisher = (*GCSPublisher)(nil)

// NewGCSPublisher creates a GCS publisher.
// It assumes the client is authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS).
func NewGCSPublisher(ctx context.Context, bucket, prefix string) (*GCSPublisher, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSPublisher{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Close releases the storage client.
func (p *GCSPublisher) Close() error {
	return p.client.Close()
}

func (p *GCSPublisher) object(name string) *storage.ObjectHandle {
	return p.client.Bucket(p.bucket).Object(p.prefix + name)
}

// Publish uploads the feed, replacing the previous object.
func (p *GCSPublisher) Publish(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}

	w := p.object(name).NewWriter(ctx)
	w.ContentType = ContentType
	w.CacheControl = "no-cache, max-age=0"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

// List returns the feed names under the prefix, with the prefix stripped.
func (p *GCSPublisher) List(ctx context.Context) ([]string, error) {
	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{Prefix: p.prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		name := strings.TrimPrefix(attrs.Name, p.prefix)
		// Objects in nested "directories" belong to someone else.
		if strings.Contains(name, "/") || !strings.HasSuffix(name, FeedExt) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Delete removes a feed object. A missing object is ignored.
func (p *GCSPublisher) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	err := p.object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		slog.DebugContext(ctx, "feed object already gone", "name", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
