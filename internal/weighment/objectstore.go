package weighment

import (
	"context"
	"io"
)

// ObjectStore is durable storage for snapshot images.
type ObjectStore interface {
	// Put stores size bytes from r under key. Putting an existing key replaces it.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// PublicURL returns the locator a client can dereference for key.
	PublicURL(key string) string

	// ValidateSetup verifies that the store is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
