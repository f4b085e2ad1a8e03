package weighment

import (
	"context"
	"fmt"
	"sync"
)

// Worklist is a terminal's local cache of pending-tare transactions. It is
// never patched: every change notification on the transaction table
// triggers a full re-read from storage.
type Worklist struct {
	database Database
	logger   Logger
	metrics  Metrics
	onChange func([]*PendingItem)

	sub    Subscription
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.RWMutex
	items []*PendingItem

	closeOnce sync.Once
}

// StartWorklist subscribes to transaction changes, fetches the worklist
// once, and keeps it fresh until Close. onChange, if non-nil, is called
// from the worklist goroutine after every successful refresh, including the
// first one.
func StartWorklist(ctx context.Context, database Database, feed ChangeFeed, logger Logger, metrics Metrics, onChange func([]*PendingItem)) (*Worklist, error) {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	sub, err := feed.Subscribe(TableTransactions)
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", TableTransactions, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Worklist{
		database: database,
		logger:   logger,
		metrics:  metrics,
		onChange: onChange,
		sub:      sub,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	if err := w.Refresh(ctx); err != nil {
		cancel()
		sub.Close()
		return nil, err
	}

	go w.run(ctx)
	return w, nil
}

func (w *Worklist) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.sub.Events():
			if !ok {
				return
			}
			w.logger.Debug("transaction change received", "op", ev.Op, "row_id", ev.RowID)
			if err := w.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				// Keep the previous list; the next event retries.
				w.logger.Warn("worklist refresh failed", "error", err)
			}
		}
	}
}

// Refresh re-reads the pending list from storage and replaces the cache.
func (w *Worklist) Refresh(ctx context.Context) error {
	items, err := w.database.ListPendingTare(ctx)
	if err != nil {
		return fmt.Errorf("fetching pending worklist: %w", err)
	}

	w.mu.Lock()
	w.items = items
	w.mu.Unlock()

	w.metrics.WorklistRefreshed(len(items))
	if w.onChange != nil {
		w.onChange(copyItems(items))
	}
	return nil
}

// Items returns a copy of the cached worklist, newest gross weighment first.
func (w *Worklist) Items() []*PendingItem {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return copyItems(w.items)
}

// Close releases the subscription and waits for the refresh loop to stop.
func (w *Worklist) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.cancel()
		err = w.sub.Close()
		<-w.done
	})
	return err
}

func copyItems(items []*PendingItem) []*PendingItem {
	out := make([]*PendingItem, len(items))
	for i, it := range items {
		c := *it
		out[i] = &c
	}
	return out
}
