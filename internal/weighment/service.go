package weighment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// WeighmentService owns the transaction lifecycle: the gross step creates a
// transaction in pending_tare, the tare step moves it to completed. It is
// the only writer of weighment transactions.
type WeighmentService struct {
	database          Database
	resolver          *IdentityResolver
	snapshots         *SnapshotPipeline
	logger            Logger
	clock             Clock
	idgen             IDGenerator
	metrics           Metrics
	rejectNegativeNet bool
}

// NewWeighmentService creates a service. snapshots may be nil, in which case
// every transaction is recorded without a snapshot.
func NewWeighmentService(database Database, resolver *IdentityResolver, snapshots *SnapshotPipeline, logger Logger, clock Clock, idgen IDGenerator) *WeighmentService {
	return &WeighmentService{
		database:  database,
		resolver:  resolver,
		snapshots: snapshots,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		metrics:   NopMetrics{},
	}
}

// SetMetrics installs a metrics sink.
func (s *WeighmentService) SetMetrics(m Metrics) {
	if m == nil {
		m = NopMetrics{}
	}
	s.metrics = m
}

// SetRejectNegativeNet makes the tare step refuse a tare heavier than the gross.
// The default accepts it and records a negative net weight.
func (s *WeighmentService) SetRejectNegativeNet(reject bool) {
	s.rejectNegativeNet = reject
}

// GrossInput is the operator's entry for the gross step.
type GrossInput struct {
	FarmerName   string
	VehiclePlate string
	GrossWeight  string
}

// GrossResult is the outcome of a successful gross step. SnapshotErr is set
// when the transaction was recorded without a snapshot.
type GrossResult struct {
	Transaction *Transaction
	SnapshotErr error
}

// GrossWeigh validates the input, records a snapshot if possible, resolves
// the farmer and vehicle, and inserts a pending_tare transaction.
//
// Identity resolution and the insert are separate writes: a failure between
// them leaves a farmer or vehicle with no transaction, which the next
// attempt reuses.
func (s *WeighmentService) GrossWeigh(ctx context.Context, in GrossInput) (*GrossResult, error) {
	res, err := s.grossWeigh(ctx, in)
	if err != nil {
		s.metrics.GrossFailed(errorKind(err))
		return nil, err
	}
	s.metrics.GrossRecorded(res.Transaction.SnapshotURL.Valid)
	return res, nil
}

func (s *WeighmentService) grossWeigh(ctx context.Context, in GrossInput) (*GrossResult, error) {
	farmerName := strings.TrimSpace(in.FarmerName)
	plate := strings.TrimSpace(in.VehiclePlate)
	gross, err := validateGross(farmerName, plate, in.GrossWeight)
	if err != nil {
		return nil, err
	}

	result := &GrossResult{}
	snapshotURL, err := s.snapshots.Record(ctx, farmerName, plate)
	if err != nil {
		result.SnapshotErr = err
		s.metrics.SnapshotDegraded(snapshotReason(err))
		s.logger.Warn("recording weighment without snapshot", "farmer", farmerName, "plate", plate, "error", err)
	}

	farmerID, err := s.resolver.ResolveFarmer(ctx, farmerName)
	if err != nil {
		return nil, err
	}
	vehicleID, err := s.resolver.ResolveVehicle(ctx, plate, farmerID)
	if err != nil {
		return nil, err
	}

	txn := &Transaction{
		ID:            s.idgen.New(),
		FarmerID:      farmerID,
		VehicleID:     vehicleID,
		GrossWeight:   gross,
		GrossDatetime: s.clock.Now(),
		Status:        StatusPendingTare,
		SnapshotURL:   sql.NullString{String: snapshotURL, Valid: snapshotURL != ""},
	}
	if err := s.database.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("%w: inserting transaction: %w", ErrTransactionWrite, err)
	}

	s.logger.Info("gross weight recorded",
		"transaction_id", txn.ID, "farmer_id", farmerID, "vehicle_id", vehicleID,
		"gross", gross.String(), "snapshot", txn.SnapshotURL.Valid)

	result.Transaction = txn
	return result, nil
}

func validateGross(farmerName, plate, rawGross string) (Weight, error) {
	var missing []string
	if farmerName == "" {
		missing = append(missing, "farmer name")
	}
	if plate == "" {
		missing = append(missing, "vehicle plate")
	}
	if strings.TrimSpace(rawGross) == "" {
		missing = append(missing, "gross weight")
	}
	if len(missing) > 0 {
		return 0, fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, ", "))
	}

	gross, err := ParseWeight(rawGross)
	if err != nil {
		return 0, fmt.Errorf("%w: gross weight: %w", ErrValidation, err)
	}
	if gross <= 0 {
		return 0, fmt.Errorf("%w: gross weight must be positive, got %s", ErrValidation, gross)
	}
	return gross, nil
}

func snapshotReason(err error) string {
	if errors.Is(err, ErrUpload) {
		return "upload"
	}
	return "capture"
}

// TareWeigh completes a pending transaction: it computes net = gross - tare
// and writes the tare fields and status in one guarded update. Completing a
// missing or already completed transaction fails with ErrInvalidTransition
// and changes nothing.
func (s *WeighmentService) TareWeigh(ctx context.Context, transactionID string, rawTare string) (*Transaction, error) {
	txn, err := s.tareWeigh(ctx, transactionID, rawTare)
	if err != nil {
		s.metrics.TareFailed(errorKind(err))
		return nil, err
	}
	s.metrics.TareRecorded()
	return txn, nil
}

func (s *WeighmentService) tareWeigh(ctx context.Context, transactionID string, rawTare string) (*Transaction, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, fmt.Errorf("%w: transaction id required", ErrValidation)
	}
	if strings.TrimSpace(rawTare) == "" {
		return nil, fmt.Errorf("%w: tare weight required", ErrValidation)
	}
	tare, err := ParseWeight(rawTare)
	if err != nil {
		return nil, fmt.Errorf("%w: tare weight: %w", ErrValidation, err)
	}

	txn, err := s.database.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: loading transaction %s: %w", ErrTransactionWrite, transactionID, err)
	}
	if txn == nil {
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidTransition, ErrTransactionNotFound, transactionID)
	}
	if txn.Status != StatusPendingTare {
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidTransition, ErrAlreadyCompleted, transactionID)
	}

	net := txn.GrossWeight - tare
	if !net.InRange() {
		return nil, fmt.Errorf("%w: net weight %s out of range", ErrValidation, net)
	}
	if net < 0 && s.rejectNegativeNet {
		return nil, fmt.Errorf("%w: tare %s exceeds gross %s", ErrValidation, tare, txn.GrossWeight)
	}

	c := Completion{
		TransactionID: txn.ID,
		TareWeight:    tare,
		TareDatetime:  s.clock.Now(),
		NetWeight:     net,
	}
	updated, err := s.database.CompleteTransaction(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: completing transaction %s: %w", ErrTransactionWrite, txn.ID, err)
	}
	if !updated {
		// Another terminal completed it between our read and write.
		return nil, fmt.Errorf("%w: %w: %s", ErrInvalidTransition, ErrAlreadyCompleted, txn.ID)
	}

	txn.TareWeight = NullWeight{Weight: tare, Valid: true}
	txn.TareDatetime = sql.NullTime{Time: c.TareDatetime, Valid: true}
	txn.NetWeight = NullWeight{Weight: net, Valid: true}
	txn.Status = StatusCompleted

	if net < 0 {
		s.logger.Warn("negative net weight recorded", "transaction_id", txn.ID, "gross", txn.GrossWeight.String(), "tare", tare.String())
	}
	s.logger.Info("tare weight recorded", "transaction_id", txn.ID, "tare", tare.String(), "net", net.String())
	return txn, nil
}

// Get returns a transaction with its farmer name and plate.
func (s *WeighmentService) Get(ctx context.Context, transactionID string) (*TransactionDetail, error) {
	d, err := s.database.GetTransactionDetail(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("loading transaction %s: %w", transactionID, err)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
	}
	return d, nil
}

// PendingTare returns the current pending-tare worklist.
func (s *WeighmentService) PendingTare(ctx context.Context) ([]*PendingItem, error) {
	items, err := s.database.ListPendingTare(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing pending transactions: %w", err)
	}
	return items, nil
}

// History returns recently completed transactions, newest first.
func (s *WeighmentService) History(ctx context.Context, limit int) ([]*TransactionDetail, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrValidation)
	}
	items, err := s.database.ListCompleted(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing completed transactions: %w", err)
	}
	return items, nil
}
