package snapshot

import (
	"fmt"

	"weighbridge/internal/config"
)

// NewCameraFromConfig builds the configured camera. It returns nil for
// type "none" (or empty), meaning snapshots are disabled.
func NewCameraFromConfig(cfg config.CameraConfig, snap config.SnapshotConfig) (*Camera, error) {
	var source FrameSource
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file camera requires path to be set")
		}
		source = NewFileSource(cfg.Path)
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http camera requires url to be set")
		}
		source = NewHTTPSource(cfg.URL, cfg.Timeout.Duration)
	default:
		return nil, fmt.Errorf("unknown camera type: %s", cfg.Type)
	}

	composer, err := NewComposer(snap.Quality)
	if err != nil {
		return nil, err
	}
	return NewCamera(source, composer), nil
}
