package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"weighbridge/internal/objectstore"
	"weighbridge/internal/weighment"
)

// NewTestStore creates an in-memory object store with a recognisable base URL.
func NewTestStore() *objectstore.MemoryStore {
	return objectstore.NewMemoryStore("https://media.test")
}

// ErrStoreDown is returned by FailingStore.
var ErrStoreDown = errors.New("object store unavailable")

// FailingStore rejects every upload.
type FailingStore struct{}

func (FailingStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return ErrStoreDown
}

func (FailingStore) PublicURL(key string) string { return "" }

func (FailingStore) ValidateSetup(ctx context.Context) error { return ErrStoreDown }

// FakeCapturer returns fixed bytes, or Err when set, and records its calls.
type FakeCapturer struct {
	Data []byte
	Err  error

	mu    sync.Mutex
	calls [][2]string
}

// NewFakeCapturer returns a capturer producing a minimal JPEG header.
func NewFakeCapturer() *FakeCapturer {
	return &FakeCapturer{Data: []byte{0xff, 0xd8, 0xff, 0xd9}}
}

func (f *FakeCapturer) Capture(ctx context.Context, farmerName, vehiclePlate string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [2]string{farmerName, vehiclePlate})
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Data, nil
}

// Calls returns the farmer/plate pairs captured so far.
func (f *FakeCapturer) Calls() [][2]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]string(nil), f.calls...)
}

var (
	_ weighment.ObjectStore = FailingStore{}
	_ weighment.Capturer    = (*FakeCapturer)(nil)
)
