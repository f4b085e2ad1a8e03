package weighment

import "context"

// Database provides storage for farmers, vehicles and transactions.
// Finders return nil, nil when nothing matches.
type Database interface {
	// Farmer operations

	// FindFarmerByName returns the farmer whose name matches exactly.
	FindFarmerByName(ctx context.Context, name string) (*Farmer, error)

	// InsertFarmerIfAbsent inserts the farmer unless one with the same name
	// exists, and returns whichever row is stored.
	InsertFarmerIfAbsent(ctx context.Context, farmer *Farmer) (*Farmer, error)

	// Vehicle operations

	// FindVehicleByPlate returns the vehicle whose plate matches exactly.
	FindVehicleByPlate(ctx context.Context, plate string) (*Vehicle, error)

	// InsertVehicleIfAbsent inserts the vehicle unless one with the same plate
	// exists, and returns whichever row is stored.
	InsertVehicleIfAbsent(ctx context.Context, vehicle *Vehicle) (*Vehicle, error)

	// UpdateVehicleFarmer re-links a vehicle to another farmer.
	UpdateVehicleFarmer(ctx context.Context, vehicleID, farmerID string) error

	// Transaction operations

	// InsertTransaction inserts a new pending transaction.
	InsertTransaction(ctx context.Context, txn *Transaction) error

	// GetTransaction returns a transaction by id.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// GetTransactionDetail returns a transaction joined with farmer name and plate.
	GetTransactionDetail(ctx context.Context, id string) (*TransactionDetail, error)

	// CompleteTransaction writes the tare fields and marks the transaction
	// completed in one update guarded by status = pending_tare. It returns
	// false when no pending row with that id existed.
	CompleteTransaction(ctx context.Context, c Completion) (bool, error)

	// ListPendingTare returns pending transactions, newest gross weighment first.
	ListPendingTare(ctx context.Context) ([]*PendingItem, error)

	// ListCompleted returns up to limit completed transactions, newest tare first.
	ListCompleted(ctx context.Context, limit int) ([]*TransactionDetail, error)

	// CheckMigrations verifies the schema is current.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}
