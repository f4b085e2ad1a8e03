package weighment

import "time"

// ChangeEvent signals that a row in Table changed. Consumers treat it as a
// trigger to re-read, not as a payload: delivery is at-least-once and may
// be coalesced.
type ChangeEvent struct {
	Table string
	Op    string
	RowID string
	At    time.Time
}

// Change operations. OpResync means events may have been lost and every
// table should be re-read.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
	OpResync = "RESYNC"
)

// ChangeFeed delivers change notifications filtered by table.
type ChangeFeed interface {
	// Subscribe registers for changes to table. An empty table matches all.
	Subscribe(table string) (Subscription, error)
}

// Subscription is one consumer's view of a ChangeFeed.
type Subscription interface {
	// Events returns the channel of change events. It is closed by Close.
	Events() <-chan ChangeEvent

	// Close releases the subscription. Safe to call more than once.
	Close() error
}
