package snapshot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"weighbridge/internal/weighment"
)

// ErrCameraAccess is returned by Start when the frame source refuses access.
// It is not fatal: the terminal keeps weighing without snapshots.
var ErrCameraAccess = errors.New("camera access denied")

// FrameSource supplies raw frames from a camera.
type FrameSource interface {
	// Open acquires the source. It fails when the camera is unreachable.
	Open(ctx context.Context) error
	// Frame returns the current frame.
	Frame(ctx context.Context) (image.Image, error)
	// Close releases the source.
	Close() error
}

// Camera owns a frame source and exposes capture directly to its caller.
type Camera struct {
	source   FrameSource
	composer *Composer

	mu      sync.Mutex
	started bool
}

// NewCamera creates a stopped camera.
func NewCamera(source FrameSource, composer *Composer) *Camera {
	return &Camera{source: source, composer: composer}
}

// Start acquires the frame source. Calling Start on a started camera is a no-op.
func (c *Camera) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}
	if err := c.source.Open(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrCameraAccess, err)
	}
	c.started = true
	return nil
}

// Started reports whether Start succeeded and Stop has not been called since.
func (c *Camera) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Capture takes one frame and returns it as a captioned JPEG. It fails with
// ErrCaptureUnavailable when the camera is not started or the frame cannot
// be read, rather than producing a blank image.
func (c *Camera) Capture(ctx context.Context, farmerName, vehiclePlate string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil, fmt.Errorf("%w: camera not started", weighment.ErrCaptureUnavailable)
	}
	frame, err := c.source.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", weighment.ErrCaptureUnavailable, err)
	}
	data, err := c.composer.Compose(frame, farmerName, vehiclePlate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", weighment.ErrCaptureUnavailable, err)
	}
	return data, nil
}

// Stop releases the frame source. Safe to call more than once.
func (c *Camera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}
	c.started = false
	if err := c.source.Close(); err != nil {
		return fmt.Errorf("releasing camera: %w", err)
	}
	return nil
}

var _ weighment.Capturer = (*Camera)(nil)
