package weighment

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies gross and tare timestamps. Tests pin it.
type Clock interface {
	Now() time.Time
}

// RealClock returns the current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator produces identifiers for new rows and upload key suffixes.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random v4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.NewString() }
