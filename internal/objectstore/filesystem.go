package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"weighbridge/internal/weighment"
)

// FileSystemStore keeps objects as files under a root directory, one file
// per key. A web server pointed at root turns it into a public bucket.
// Nothing is stored besides the bytes: the key's extension is what tells
// that server the content type, so Put refuses a key whose extension does
// not map to the content type it is given.
type FileSystemStore struct {
	root    string
	baseURL string
}

// NewFileSystemStore creates the root directory if needed. When baseURL is
// empty, public URLs are file:// URLs of the stored files.
func NewFileSystemStore(root, baseURL string) (*FileSystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving media root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media root: %w", err)
	}
	return &FileSystemStore{root: abs, baseURL: baseURL}, nil
}

// Put writes the object atomically. Existing objects are replaced.
func (s *FileSystemStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := matchExtension(key, contentType); err != nil {
		return err
	}
	destPath := s.path(key)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	return writeFile(destPath, r, size)
}

// Open returns a reader for a stored object.
func (s *FileSystemStore) Open(key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object not found: %s", key)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

func (s *FileSystemStore) PublicURL(key string) string {
	if s.baseURL != "" {
		return joinURL(s.baseURL, key)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(s.path(key))}
	return u.String()
}

// ValidateSetup verifies that the root is a directory it can write a file
// into and read that file back from.
func (s *FileSystemStore) ValidateSetup(ctx context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("media root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("media root is not a directory: %s", s.root)
	}

	f, err := os.CreateTemp(s.root, ".setup-check-*")
	if err != nil {
		return fmt.Errorf("media root not writable: %w", err)
	}
	name := f.Name()
	defer os.Remove(name)

	marker := []byte("weighbridge media check")
	_, werr := f.Write(marker)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("media root not writable: %w", werr)
	}

	rc, err := s.Open(filepath.Base(name))
	if err != nil {
		return fmt.Errorf("media root not readable: %w", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("media root not readable: %w", err)
	}
	if !bytes.Equal(got, marker) {
		return fmt.Errorf("media root returned %d bytes, wrote %d", len(got), len(marker))
	}
	return nil
}

// matchExtension checks that key's extension serves as contentType. An
// empty content type leaves the choice to the extension.
func matchExtension(key, contentType string) error {
	if contentType == "" {
		return nil
	}
	want, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("invalid content type %q: %w", contentType, err)
	}
	ext := path.Ext(key)
	got, _, _ := mime.ParseMediaType(mime.TypeByExtension(ext))
	if got != want {
		return fmt.Errorf("object key %q: extension %q does not carry content type %s", key, ext, want)
	}
	return nil
}

func (s *FileSystemStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// writeFile writes data from r to destPath using a temp file and rename.
func writeFile(destPath string, r io.Reader, expectedSize int64) error {
	// Temp file in the same directory so the rename is atomic.
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	// Readable by the web server that publishes the root.
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

var _ weighment.ObjectStore = (*FileSystemStore)(nil)
