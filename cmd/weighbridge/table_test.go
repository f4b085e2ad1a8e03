package main

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"weighbridge/internal/weighment"
)

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []columnAlignment{alignLeft, alignRight})
	for _, want := range []string{"A", "B", "1", "2", "3"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if renderTable(nil, nil, nil) != "" {
		t.Error("renderTable with no headers should be empty")
	}
}

func TestDetailTable(t *testing.T) {
	d := &weighment.TransactionDetail{
		Transaction: weighment.Transaction{
			ID:            "t-1",
			GrossWeight:   150000,
			GrossDatetime: time.Date(2026, 2, 2, 8, 15, 0, 0, time.UTC),
			Status:        weighment.StatusPendingTare,
			SnapshotURL:   sql.NullString{String: "https://media.test/snapshots/1-a.jpg", Valid: true},
		},
		FarmerName:   "Ram Singh",
		VehiclePlate: "GJ01AB1234",
	}

	out := detailTable(d)
	for _, want := range []string{"pending_tare", "Ram Singh", "GJ01AB1234", "1500.00", "https://media.test/snapshots/1-a.jpg"} {
		if !strings.Contains(out, want) {
			t.Errorf("detail missing %q:\n%s", want, out)
		}
	}
}

func TestPendingTable(t *testing.T) {
	out := pendingTable([]*weighment.PendingItem{{
		TransactionID: "t-9",
		GrossWeight:   210050,
		FarmerName:    "Anita Devi",
		VehiclePlate:  "MH12XY0001",
	}})
	for _, want := range []string{"t-9", "Anita Devi", "MH12XY0001", "2100.50"} {
		if !strings.Contains(out, want) {
			t.Errorf("pending table missing %q:\n%s", want, out)
		}
	}
}
