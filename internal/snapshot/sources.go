package snapshot

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// FileSource reads frames from an image file that the camera software
// keeps overwriting with its latest frame.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Open(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("opening frame file: %w", err)
	}
	return f.Close()
}

func (s *FileSource) Frame(ctx context.Context) (image.Image, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening frame file: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", s.path, err)
	}
	return img, nil
}

func (s *FileSource) Close() error { return nil }

// DefaultHTTPTimeout bounds a single snapshot request to an IP camera.
const DefaultHTTPTimeout = 5 * time.Second

// HTTPSource fetches frames from an IP camera's still-image endpoint.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for url. A zero timeout uses DefaultHTTPTimeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &HTTPSource{url: url, client: &http.Client{Timeout: timeout}}
}

// Open fetches one frame to confirm the camera answers and accepts us.
func (s *HTTPSource) Open(ctx context.Context) error {
	_, err := s.Frame(ctx)
	return err
}

func (s *HTTPSource) Frame(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building camera request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("camera returned %s", resp.Status)
	}
	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return img, nil
}

func (s *HTTPSource) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
