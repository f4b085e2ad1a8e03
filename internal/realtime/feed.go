package realtime

import (
	"context"
	"fmt"
	"sync"

	"weighbridge/internal/config"
	"weighbridge/internal/database"
	"weighbridge/internal/weighment"
)

// Feed is a running change feed: a Bus plus the goroutine filling it.
type Feed struct {
	*Bus
	kind   string
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Kind reports the source feeding the bus ("poll" or "postgres").
func (f *Feed) Kind() string { return f.kind }

// Close stops the source and closes the bus.
func (f *Feed) Close() error {
	f.once.Do(func() {
		f.cancel()
		<-f.done
		f.Bus.Close()
	})
	return nil
}

func startFeed(ctx context.Context, kind string, bus *Bus, run func(context.Context)) *Feed {
	ctx, cancel := context.WithCancel(ctx)
	f := &Feed{Bus: bus, kind: kind, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(f.done)
		run(ctx)
	}()
	return f
}

// NewFeedFromConfig starts the change feed selected by cfg. The postgres
// feed needs a postgres database, and a postgres database needs it.
func NewFeedFromConfig(ctx context.Context, cfg config.RealtimeConfig, dbCfg config.DatabaseConfig, db *database.SQLDatabase, logger weighment.Logger, clock weighment.Clock) (*Feed, error) {
	bus := NewBus(DefaultBuffer)

	switch kind := cfg.Source(dbCfg.Type); kind {
	case "poll":
		if dbCfg.Type == "postgres" {
			return nil, fmt.Errorf("realtime type poll is not supported on a postgres database")
		}
		p := NewPoller(db, bus, cfg.PollInterval.Duration, logger, clock)
		if err := p.Start(ctx); err != nil {
			return nil, err
		}
		return startFeed(ctx, "poll", bus, p.Run), nil
	case "postgres":
		if dbCfg.Type != "postgres" || dbCfg.DSN == "" {
			return nil, fmt.Errorf("realtime type postgres requires a postgres database")
		}
		l := NewPGListener(dbCfg.DSN, cfg.Channel, bus, logger, clock)
		return startFeed(ctx, "postgres", bus, l.Run), nil
	default:
		return nil, fmt.Errorf("unknown realtime type: %s", cfg.Type)
	}
}
