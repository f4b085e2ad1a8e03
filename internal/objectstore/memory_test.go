package objectstore

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestMemoryStore_Put(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		data    string
		size    int64
		wantErr bool
	}{
		{name: "store object", key: "snapshots/1-a.jpg", data: "jpeg", size: 4},
		{name: "size mismatch", key: "snapshots/2-b.jpg", data: "jpeg", size: 10, wantErr: true},
		{name: "empty key", key: "", data: "x", size: 1, wantErr: true},
		{name: "parent traversal", key: "../etc/passwd", data: "x", size: 1, wantErr: true},
		{name: "absolute key", key: "/snapshots/a.jpg", data: "x", size: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMemoryStore("")
			err := m.Put(ctx, tt.key, strings.NewReader(tt.data), tt.size, "image/jpeg")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Put() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if len(m.Keys()) != 0 {
					t.Errorf("Keys() = %v after failed Put", m.Keys())
				}
				return
			}
			data, ct, ok := m.Get(tt.key)
			if !ok {
				t.Fatalf("Get(%q) not found", tt.key)
			}
			if !bytes.Equal(data, []byte(tt.data)) || ct != "image/jpeg" {
				t.Errorf("Get() = %q, %q", data, ct)
			}
		})
	}
}

func TestMemoryStore_PublicURL(t *testing.T) {
	if got := NewMemoryStore("").PublicURL("snapshots/a.jpg"); got != "memory://snapshots/a.jpg" {
		t.Errorf("PublicURL() = %q", got)
	}
	if got := NewMemoryStore("https://cdn.example.com/media/").PublicURL("snapshots/a.jpg"); got != "https://cdn.example.com/media/snapshots/a.jpg" {
		t.Errorf("PublicURL() = %q", got)
	}
	if err := NewMemoryStore("").ValidateSetup(context.Background()); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}
