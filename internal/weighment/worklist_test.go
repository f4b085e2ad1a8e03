package weighment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"weighbridge/internal/testutil"
	"weighbridge/internal/weighment"
)

// flakyListDB fails ListPendingTare while failing is set and reports every call.
type flakyListDB struct {
	weighment.Database

	mu      sync.Mutex
	failing bool
	calls   chan struct{}
}

func newFlakyListDB(db weighment.Database) *flakyListDB {
	return &flakyListDB{Database: db, calls: make(chan struct{}, 16)}
}

func (d *flakyListDB) setFailing(v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failing = v
}

func (d *flakyListDB) ListPendingTare(ctx context.Context) ([]*weighment.PendingItem, error) {
	d.mu.Lock()
	failing := d.failing
	d.mu.Unlock()

	defer func() { d.calls <- struct{}{} }()
	if failing {
		return nil, errors.New("connection refused")
	}
	return d.Database.ListPendingTare(ctx)
}

func waitItems(t *testing.T, ch <-chan []*weighment.PendingItem) []*weighment.PendingItem {
	t.Helper()
	select {
	case items := <-ch:
		return items
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for worklist refresh")
		return nil
	}
}

func assertNoRefresh(t *testing.T, ch <-chan []*weighment.PendingItem) {
	t.Helper()
	select {
	case items := <-ch:
		t.Fatalf("unexpected refresh with %d items", len(items))
	case <-time.After(50 * time.Millisecond):
	}
}

func grossOnce(t *testing.T, svc *weighment.WeighmentService, plate string) *weighment.Transaction {
	t.Helper()
	res, err := svc.GrossWeigh(context.Background(), weighment.GrossInput{
		FarmerName: "Ram Singh", VehiclePlate: plate, GrossWeight: "1500",
	})
	if err != nil {
		t.Fatalf("GrossWeigh(%s) error = %v", plate, err)
	}
	return res.Transaction
}

func TestWorklist_RefreshesOnTransactionChange(t *testing.T) {
	env := newServiceEnv(t)
	feed := testutil.NewTestFeed()
	defer feed.Close()
	ctx := context.Background()

	first := grossOnce(t, env.service, "GJ01AB0001")

	updates := make(chan []*weighment.PendingItem, 8)
	w, err := weighment.StartWorklist(ctx, env.db, feed, weighment.NewNopLogger(), env.metrics, func(items []*weighment.PendingItem) {
		updates <- items
	})
	if err != nil {
		t.Fatalf("StartWorklist() error = %v", err)
	}
	defer w.Close()

	if items := waitItems(t, updates); len(items) != 1 || items[0].TransactionID != first.ID {
		t.Fatalf("initial items = %+v", items)
	}

	// Another terminal records a gross weighment and its change arrives.
	second := grossOnce(t, env.service, "GJ01AB0002")
	feed.Publish(weighment.ChangeEvent{Table: weighment.TableTransactions, Op: weighment.OpInsert, RowID: second.ID})

	items := waitItems(t, updates)
	if len(items) != 2 {
		t.Fatalf("items after insert = %d, want 2", len(items))
	}
	if got := w.Items(); len(got) != 2 {
		t.Errorf("Items() = %d, want 2", len(got))
	}

	// Completion removes it from the list.
	if _, err := env.service.TareWeigh(ctx, first.ID, "700"); err != nil {
		t.Fatal(err)
	}
	feed.Publish(weighment.ChangeEvent{Table: weighment.TableTransactions, Op: weighment.OpUpdate, RowID: first.ID})
	items = waitItems(t, updates)
	if len(items) != 1 || items[0].TransactionID != second.ID {
		t.Errorf("items after tare = %+v", items)
	}

	if n := env.metrics.refreshCount(); n != 3 {
		t.Errorf("refreshes = %d, want 3", n)
	}
}

func TestWorklist_IgnoresOtherTablesButHonoursResync(t *testing.T) {
	env := newServiceEnv(t)
	feed := testutil.NewTestFeed()
	defer feed.Close()

	updates := make(chan []*weighment.PendingItem, 8)
	w, err := weighment.StartWorklist(context.Background(), env.db, feed, weighment.NewNopLogger(), nil, func(items []*weighment.PendingItem) {
		updates <- items
	})
	if err != nil {
		t.Fatalf("StartWorklist() error = %v", err)
	}
	defer w.Close()
	waitItems(t, updates)

	feed.Publish(weighment.ChangeEvent{Table: weighment.TableFarmers, Op: weighment.OpInsert, RowID: "f-1"})
	assertNoRefresh(t, updates)

	grossOnce(t, env.service, "GJ01AB0001")
	feed.Publish(weighment.ChangeEvent{Op: weighment.OpResync})
	if items := waitItems(t, updates); len(items) != 1 {
		t.Errorf("items after resync = %d, want 1", len(items))
	}
}

func TestWorklist_FailedRefreshKeepsPreviousList(t *testing.T) {
	env := newServiceEnv(t)
	flaky := newFlakyListDB(env.db)
	feed := testutil.NewTestFeed()
	defer feed.Close()
	logger := &testutil.RecordingLogger{}

	first := grossOnce(t, env.service, "GJ01AB0001")

	updates := make(chan []*weighment.PendingItem, 8)
	w, err := weighment.StartWorklist(context.Background(), flaky, feed, logger, nil, func(items []*weighment.PendingItem) {
		updates <- items
	})
	if err != nil {
		t.Fatalf("StartWorklist() error = %v", err)
	}
	defer w.Close()
	waitItems(t, updates)
	<-flaky.calls

	flaky.setFailing(true)
	grossOnce(t, env.service, "GJ01AB0002")
	feed.Publish(weighment.ChangeEvent{Table: weighment.TableTransactions, Op: weighment.OpInsert})

	select {
	case <-flaky.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh not attempted")
	}
	assertNoRefresh(t, updates)
	if items := w.Items(); len(items) != 1 || items[0].TransactionID != first.ID {
		t.Errorf("Items() after failed refresh = %+v", items)
	}
	if warnings := logger.Warnings(); len(warnings) != 1 {
		t.Errorf("warnings = %v, want 1", warnings)
	}

	// The next notification retries.
	flaky.setFailing(false)
	feed.Publish(weighment.ChangeEvent{Table: weighment.TableTransactions, Op: weighment.OpInsert})
	if items := waitItems(t, updates); len(items) != 2 {
		t.Errorf("items after recovery = %d, want 2", len(items))
	}
}

func TestStartWorklist_InitialFetchFails(t *testing.T) {
	db := testutil.NewTestDatabase(t)
	flaky := newFlakyListDB(db)
	flaky.setFailing(true)
	feed := testutil.NewTestFeed()
	defer feed.Close()

	if _, err := weighment.StartWorklist(context.Background(), flaky, feed, weighment.NewNopLogger(), nil, nil); err == nil {
		t.Fatal("StartWorklist() error = nil, want error")
	}
	if n := feed.Stats().Subscribers; n != 0 {
		t.Errorf("subscribers after failed start = %d, want 0", n)
	}
}

func TestWorklist_Close(t *testing.T) {
	env := newServiceEnv(t)
	feed := testutil.NewTestFeed()
	defer feed.Close()

	updates := make(chan []*weighment.PendingItem, 8)
	w, err := weighment.StartWorklist(context.Background(), env.db, feed, weighment.NewNopLogger(), nil, func(items []*weighment.PendingItem) {
		updates <- items
	})
	if err != nil {
		t.Fatalf("StartWorklist() error = %v", err)
	}
	waitItems(t, updates)

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if n := feed.Stats().Subscribers; n != 0 {
		t.Errorf("subscribers after Close = %d, want 0", n)
	}

	feed.Publish(weighment.ChangeEvent{Table: weighment.TableTransactions, Op: weighment.OpInsert})
	assertNoRefresh(t, updates)
}

func TestWorklist_ItemsAreCopies(t *testing.T) {
	env := newServiceEnv(t)
	feed := testutil.NewTestFeed()
	defer feed.Close()
	grossOnce(t, env.service, "GJ01AB0001")

	w, err := weighment.StartWorklist(context.Background(), env.db, feed, weighment.NewNopLogger(), nil, nil)
	if err != nil {
		t.Fatalf("StartWorklist() error = %v", err)
	}
	defer w.Close()

	items := w.Items()
	items[0].FarmerName = "changed"
	if got := w.Items()[0].FarmerName; got != "Ram Singh" {
		t.Errorf("cached FarmerName = %q, want Ram Singh", got)
	}
}
