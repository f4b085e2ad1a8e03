package weighment

import (
	"database/sql"
	"fmt"
	"time"
)

// Table names as seen by the change-notification stream.
const (
	TableFarmers      = "farmers_traders"
	TableVehicles     = "vehicles"
	TableTransactions = "weighment_transactions"
)

// Status is the lifecycle state of a weighment transaction.
type Status string

const (
	StatusPendingTare Status = "pending_tare"
	StatusCompleted   Status = "completed"
)

// Farmer is a farmer or trader delivering loads.
type Farmer struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Vehicle is identified by its number plate. FarmerID records the farmer
// the vehicle was linked to (see VehicleLinkPolicy).
type Vehicle struct {
	ID          string
	NumberPlate string
	FarmerID    string
	CreatedAt   time.Time
}

// Transaction is one two-stage weighment.
type Transaction struct {
	ID            string
	FarmerID      string
	VehicleID     string
	GrossWeight   Weight
	GrossDatetime time.Time
	TareWeight    NullWeight
	TareDatetime  sql.NullTime
	NetWeight     NullWeight
	Status        Status
	SnapshotURL   sql.NullString
}

// CheckInvariant reports whether the tare-related fields agree with Status.
func (t *Transaction) CheckInvariant() error {
	switch t.Status {
	case StatusPendingTare:
		if t.TareWeight.Valid || t.TareDatetime.Valid || t.NetWeight.Valid {
			return fmt.Errorf("pending transaction %s has tare fields set", t.ID)
		}
	case StatusCompleted:
		if !t.TareWeight.Valid || !t.TareDatetime.Valid || !t.NetWeight.Valid {
			return fmt.Errorf("completed transaction %s is missing tare fields", t.ID)
		}
		if t.NetWeight.Weight != t.GrossWeight-t.TareWeight.Weight {
			return fmt.Errorf("transaction %s net %s != gross %s - tare %s",
				t.ID, t.NetWeight.Weight, t.GrossWeight, t.TareWeight.Weight)
		}
	default:
		return fmt.Errorf("transaction %s has unknown status %q", t.ID, t.Status)
	}
	return nil
}

// Completion carries the fields written by the tare step.
type Completion struct {
	TransactionID string
	TareWeight    Weight
	TareDatetime  time.Time
	NetWeight     Weight
}

// PendingItem is one row of the pending-tare worklist.
type PendingItem struct {
	TransactionID string
	GrossWeight   Weight
	GrossDatetime time.Time
	FarmerName    string
	VehiclePlate  string
}

// TransactionDetail is a transaction joined with its farmer and vehicle.
type TransactionDetail struct {
	Transaction
	FarmerName   string
	VehiclePlate string
}
