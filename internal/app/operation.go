package app

import "time"

// Session is one CLI invocation on a terminal. Every log line of the
// invocation carries its ID, so interleaved logs from several terminals
// sharing a log directory can be told apart.
type Session struct {
	ID         string
	TerminalID string
	Command    string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string // "success" or "error"
	Err        error
}

// NewSession creates a session for command, started at now.
func NewSession(terminalID, command string, now time.Time) *Session {
	return &Session{
		ID:         now.UTC().Format("20060102T150405.000Z"),
		TerminalID: terminalID,
		Command:    command,
		StartedAt:  now,
		Status:     "success",
	}
}

// Fail marks the session as failed. The first error is kept.
func (s *Session) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	if s.Err == nil {
		s.Err = err
	}
	s.Status = "error"
}

// Finish records the end time.
func (s *Session) Finish(now time.Time) {
	if s.FinishedAt.IsZero() {
		s.FinishedAt = now
	}
}

// Duration returns how long the session ran, or 0 while it is running.
func (s *Session) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
