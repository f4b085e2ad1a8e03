package testutil

import (
	"sync"

	"weighbridge/internal/realtime"
	"weighbridge/internal/weighment"
)

// NewTestFeed returns an in-process bus. Tests publish to it directly to
// simulate notifications from other terminals.
func NewTestFeed() *realtime.Bus {
	return realtime.NewBus(realtime.DefaultBuffer)
}

// RecordingLogger keeps warning messages for assertions.
type RecordingLogger struct {
	weighment.NopLogger

	mu       sync.Mutex
	warnings []string
}

func (l *RecordingLogger) Warn(msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

// Warnings returns the warning messages logged so far.
func (l *RecordingLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warnings...)
}
