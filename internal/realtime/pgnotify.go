package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"weighbridge/internal/weighment"
)

const (
	// DefaultChannel is the channel the schema triggers notify on.
	DefaultChannel = "weighment_changes"

	defaultRetryDelay = 2 * time.Second
)

// listenConn is the subset of *pgx.Conn the listener uses.
type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// PGListener holds a dedicated Postgres connection in LISTEN mode and
// publishes each notification to a Bus. It reconnects on failure. Every
// successful LISTEN, the first included, is followed by a resync event:
// changes committed before the channel was subscribed are never notified.
type PGListener struct {
	dsn        string
	channel    string
	bus        *Bus
	logger     weighment.Logger
	clock      weighment.Clock
	retryDelay time.Duration

	connect func(ctx context.Context, dsn string) (listenConn, error)
}

// NewPGListener creates a listener for channel (DefaultChannel when empty).
func NewPGListener(dsn, channel string, bus *Bus, logger weighment.Logger, clock weighment.Clock) *PGListener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PGListener{
		dsn:        dsn,
		channel:    channel,
		bus:        bus,
		logger:     logger,
		clock:      clock,
		retryDelay: defaultRetryDelay,
		connect: func(ctx context.Context, dsn string) (listenConn, error) {
			return pgx.Connect(ctx, dsn)
		},
	}
}

// Run listens until ctx is cancelled.
func (l *PGListener) Run(ctx context.Context) {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("change listener disconnected", "channel", l.channel, "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *PGListener) listen(ctx context.Context) error {
	conn, err := l.connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.Debug("listening for changes", "channel", l.channel)

	l.bus.Publish(weighment.ChangeEvent{Op: weighment.OpResync, At: l.clock.Now()})

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("waiting for notification: %w", err)
		}
		ev, err := ParseNotification(n.Payload, l.clock.Now())
		if err != nil {
			// A malformed payload still means something changed.
			l.logger.Warn("unreadable change notification", "payload", n.Payload, "error", err)
			ev = weighment.ChangeEvent{Op: weighment.OpResync, At: l.clock.Now()}
		}
		l.bus.Publish(ev)
	}
}

type notificationPayload struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id"`
}

// ParseNotification decodes the JSON payload written by the change trigger.
func ParseNotification(payload string, at time.Time) (weighment.ChangeEvent, error) {
	var p notificationPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return weighment.ChangeEvent{}, fmt.Errorf("decoding change payload: %w", err)
	}
	if p.Table == "" || p.Op == "" {
		return weighment.ChangeEvent{}, fmt.Errorf("change payload missing table or op: %q", payload)
	}
	return weighment.ChangeEvent{Table: p.Table, Op: p.Op, RowID: p.ID, At: at}, nil
}
