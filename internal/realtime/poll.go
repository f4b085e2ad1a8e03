package realtime

import (
	"context"
	"fmt"
	"time"

	"weighbridge/internal/database"
	"weighbridge/internal/weighment"
)

const (
	// DefaultPollInterval is used when no interval is configured.
	DefaultPollInterval = 500 * time.Millisecond

	pollBatch = 500
)

// ChangeLog is the part of the database the poller reads.
type ChangeLog interface {
	LatestChangeSeq(ctx context.Context) (int64, error)
	ChangesSince(ctx context.Context, after int64, limit int) ([]database.ChangeRecord, error)
}

// Poller tails the change_log table and publishes each new row to a Bus.
// It serves databases without a native notification channel.
type Poller struct {
	log      ChangeLog
	bus      *Bus
	interval time.Duration
	logger   weighment.Logger
	clock    weighment.Clock

	last int64
}

// NewPoller creates a poller that publishes to bus every interval.
func NewPoller(log ChangeLog, bus *Bus, interval time.Duration, logger weighment.Logger, clock weighment.Clock) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{log: log, bus: bus, interval: interval, logger: logger, clock: clock}
}

// Start records the current end of the change log. Only changes after
// Start are published.
func (p *Poller) Start(ctx context.Context) error {
	seq, err := p.log.LatestChangeSeq(ctx)
	if err != nil {
		return fmt.Errorf("starting change poller: %w", err)
	}
	p.last = seq
	return nil
}

// Run polls until ctx is cancelled. A failed poll is logged and, once
// polling recovers, a resync event is published in case rows were missed.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := p.Poll(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			if !failing {
				p.logger.Warn("change poll failed", "error", err)
			}
			failing = true
		case failing:
			failing = false
			p.logger.Info("change poll recovered")
			p.bus.Publish(weighment.ChangeEvent{Op: weighment.OpResync, At: p.clock.Now()})
		}
	}
}

// Poll publishes every change recorded since the previous poll.
func (p *Poller) Poll(ctx context.Context) error {
	for {
		records, err := p.log.ChangesSince(ctx, p.last, pollBatch)
		if err != nil {
			return err
		}
		for _, r := range records {
			p.bus.Publish(r.ChangeEvent)
			p.last = r.Seq
		}
		if len(records) < pollBatch {
			return nil
		}
	}
}
