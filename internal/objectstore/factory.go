package objectstore

import (
	"context"
	"fmt"

	"weighbridge/internal/config"
	"weighbridge/internal/weighment"
)

// NewStoreFromConfig creates an ObjectStore based on the media config type.
func NewStoreFromConfig(ctx context.Context, cfg config.MediaConfig) (weighment.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.PublicBaseURL), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem media store requires fs_root to be set")
		}
		return NewFileSystemStore(cfg.FSRoot, cfg.PublicBaseURL)
	case "s3":
		return NewS3Store(ctx, S3Config{
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PathStyle:     cfg.S3PathStyle,
			PublicBaseURL: cfg.PublicBaseURL,
		})
	default:
		return nil, fmt.Errorf("unknown media type: %s", cfg.Type)
	}
}
