package weighment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
)

// DefaultSnapshotCategory is the key prefix for weighment snapshots.
const DefaultSnapshotCategory = "snapshots"

// MediaUploader stores encoded snapshots under collision-resistant keys.
type MediaUploader struct {
	store ObjectStore
	clock Clock
	idgen IDGenerator
}

// NewMediaUploader creates an uploader writing to store.
func NewMediaUploader(store ObjectStore, clock Clock, idgen IDGenerator) *MediaUploader {
	return &MediaUploader{store: store, clock: clock, idgen: idgen}
}

// Key builds a storage key: category/<unix-millis>-<random>.jpg.
// Terminals do not coordinate, so the suffix is random rather than a counter.
func (u *MediaUploader) Key(category string) string {
	if category == "" {
		category = DefaultSnapshotCategory
	}
	return fmt.Sprintf("%s/%d-%s.jpg", category, u.clock.Now().UnixMilli(), u.idgen.New())
}

// Upload stores a JPEG image and returns its public locator.
func (u *MediaUploader) Upload(ctx context.Context, data []byte, category string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty image", ErrUpload)
	}
	key := u.Key(category)
	if err := u.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "image/jpeg"); err != nil {
		return "", fmt.Errorf("%w: storing %s: %w", ErrUpload, key, err)
	}
	return u.store.PublicURL(key), nil
}

// SnapshotPipeline captures a captioned frame and uploads it. Both steps
// are best-effort: a failure yields an empty URL and the error, and the
// caller proceeds without a snapshot.
type SnapshotPipeline struct {
	capturer Capturer
	uploader *MediaUploader
	category string
}

// NewSnapshotPipeline creates a pipeline. category may be empty.
func NewSnapshotPipeline(capturer Capturer, uploader *MediaUploader, category string) *SnapshotPipeline {
	return &SnapshotPipeline{capturer: capturer, uploader: uploader, category: category}
}

// Record captures and uploads one snapshot, returning its URL.
func (p *SnapshotPipeline) Record(ctx context.Context, farmerName, vehiclePlate string) (string, error) {
	if p == nil || p.capturer == nil {
		return "", fmt.Errorf("%w: no camera configured", ErrCaptureUnavailable)
	}
	data, err := p.capturer.Capture(ctx, farmerName, vehiclePlate)
	if err != nil {
		if !errors.Is(err, ErrCaptureUnavailable) {
			err = fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
		}
		return "", err
	}
	if p.uploader == nil {
		return "", fmt.Errorf("%w: no object store configured", ErrUpload)
	}
	return p.uploader.Upload(ctx, data, p.category)
}
