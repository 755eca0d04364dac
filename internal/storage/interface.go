package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Head for keys that do not exist.
var ErrNotFound = errors.New("object not found")

// Store is implemented by the R2 client and the local filesystem store.
type Store interface {
	ObjectExists(ctx context.Context, key string) (bool, error)
	Upload(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (*UploadResult, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	GetPublicURL(key string) string
	Delete(ctx context.Context, key string) error
}

type UploadResult struct {
	Key         string
	URL         string
	ETag        string
	Size        int64
	ContentType string
}

// ObjectInfo is what Head reports about a stored object. Metadata keys are
// lower case.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}
