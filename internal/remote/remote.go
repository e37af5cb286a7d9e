package remote

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("remote: object not found")
	// ErrAuth covers rejected credentials and insufficient permissions.
	ErrAuth = errors.New("remote: authorization failed")
	// ErrUnavailable covers network and backend failures. Local state is
	// never touched when an operation fails with it.
	ErrUnavailable = errors.New("remote: backend unavailable")
)

type ObjectInfo struct {
	ID         string
	ModifiedAt time.Time
}

// Store is one remote backup target holding a single named JSON document,
// replaced wholesale on upload and read wholesale on download.
type Store interface {
	// Name identifies the backend kind ("gcs", "redis", "postgres") for
	// status reporting.
	Name() string
	// Find locates the object by its well-known logical name and returns its
	// physical id and last-modified time. ErrNotFound when absent.
	Find(ctx context.Context, name string) (*ObjectInfo, error)
	// Upload replaces the object identified by id, or creates it under name
	// when id is empty. Returns the (possibly new) object info.
	Upload(ctx context.Context, id string, name string, payload []byte) (*ObjectInfo, error)
	Download(ctx context.Context, id string) ([]byte, error)
}
