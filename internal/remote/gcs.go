package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCS stores the backup object in a Google Cloud Storage bucket. The logical
// name doubles as the object key, so Find and Download share the same id.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS prefers ADC (service account / GOOGLE_APPLICATION_CREDENTIALS); an
// explicit JSON key can be passed for local use.
func NewGCS(ctx context.Context, bucket string, credentialsJSON string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var client *storage.Client
	var err error
	if strings.TrimSpace(credentialsJSON) != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credentialsJSON)))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &GCS{client: client, bucket: bucket}, nil
}

func (g *GCS) Name() string { return "gcs" }

func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) Find(ctx context.Context, name string) (*ObjectInfo, error) {
	attrs, err := g.client.Bucket(g.bucket).Object(name).Attrs(ctx)
	if err != nil {
		return nil, g.wrap(err)
	}
	return &ObjectInfo{ID: attrs.Name, ModifiedAt: attrs.Updated}, nil
}

func (g *GCS) Upload(ctx context.Context, id string, name string, payload []byte) (*ObjectInfo, error) {
	key := id
	if key == "" {
		key = name
	}

	wc := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = "application/json"
	if _, err := wc.Write(payload); err != nil {
		_ = wc.Close()
		return nil, g.wrap(err)
	}
	if err := wc.Close(); err != nil {
		return nil, g.wrap(err)
	}

	attrs := wc.Attrs()
	return &ObjectInfo{ID: attrs.Name, ModifiedAt: attrs.Updated}, nil
}

func (g *GCS) Download(ctx context.Context, id string) ([]byte, error) {
	rc, err := g.client.Bucket(g.bucket).Object(id).NewReader(ctx)
	if err != nil {
		return nil, g.wrap(err)
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, g.wrap(err)
	}
	return payload, nil
}

func (g *GCS) wrap(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return ErrNotFound
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuth, err)
		case http.StatusNotFound:
			return ErrNotFound
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
