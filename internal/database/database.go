package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"weighbridge/internal/database/migrations"
	"weighbridge/internal/weighment"
)

// SQLDatabase implements weighment.Database on database/sql for both the
// SQLite and Postgres dialects.
type SQLDatabase struct {
	db      *sql.DB
	dialect Dialect
	path    string
}

func newSQLDatabase(db *sql.DB, dialect Dialect, path string) *SQLDatabase {
	return &SQLDatabase{db: db, dialect: dialect, path: path}
}

func (s *SQLDatabase) q(query string) string { return s.dialect.Rebind(query) }

// Farmer operations

func (s *SQLDatabase) FindFarmerByName(ctx context.Context, name string) (*weighment.Farmer, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT id, name, created_at FROM farmers_traders WHERE name = ?`), name)
	f, err := scanFarmer(row)
	if err != nil {
		return nil, fmt.Errorf("finding farmer by name: %w", err)
	}
	return f, nil
}

func (s *SQLDatabase) InsertFarmerIfAbsent(ctx context.Context, farmer *weighment.Farmer) (*weighment.Farmer, error) {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO farmers_traders (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`),
		farmer.ID, farmer.Name, farmer.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting farmer: %w", err)
	}

	// Re-read: if another terminal inserted the same name first, its row wins.
	stored, err := s.FindFarmerByName(ctx, farmer.Name)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("farmer %q missing after insert", farmer.Name)
	}
	return stored, nil
}

func scanFarmer(row *sql.Row) (*weighment.Farmer, error) {
	var f weighment.Farmer
	if err := row.Scan(&f.ID, &f.Name, &f.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &f, nil
}

// Vehicle operations

func (s *SQLDatabase) FindVehicleByPlate(ctx context.Context, plate string) (*weighment.Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, number_plate, farmer_id, created_at FROM vehicles WHERE number_plate = ?`), plate)
	var v weighment.Vehicle
	if err := row.Scan(&v.ID, &v.NumberPlate, &v.FarmerID, &v.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding vehicle by plate: %w", err)
	}
	return &v, nil
}

func (s *SQLDatabase) InsertVehicleIfAbsent(ctx context.Context, vehicle *weighment.Vehicle) (*weighment.Vehicle, error) {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO vehicles (id, number_plate, farmer_id, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (number_plate) DO NOTHING`),
		vehicle.ID, vehicle.NumberPlate, vehicle.FarmerID, vehicle.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting vehicle: %w", err)
	}

	stored, err := s.FindVehicleByPlate(ctx, vehicle.NumberPlate)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("vehicle %q missing after insert", vehicle.NumberPlate)
	}
	return stored, nil
}

func (s *SQLDatabase) UpdateVehicleFarmer(ctx context.Context, vehicleID, farmerID string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE vehicles SET farmer_id = ? WHERE id = ?`), farmerID, vehicleID)
	if err != nil {
		return fmt.Errorf("updating vehicle farmer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating vehicle farmer: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("vehicle not found: %s", vehicleID)
	}
	return nil
}

// Transaction operations

const transactionColumns = `t.id, t.farmer_id, t.vehicle_id, t.gross_weight, t.gross_datetime,
	t.tare_weight, t.tare_datetime, t.net_weight, t.status, t.weighment_snapshot_url`

func (s *SQLDatabase) InsertTransaction(ctx context.Context, txn *weighment.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO weighment_transactions (
			id, farmer_id, vehicle_id, gross_weight, gross_datetime, status, weighment_snapshot_url
		) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		txn.ID, txn.FarmerID, txn.VehicleID, txn.GrossWeight, txn.GrossDatetime, string(txn.Status), txn.SnapshotURL,
	)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

func (s *SQLDatabase) GetTransaction(ctx context.Context, id string) (*weighment.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+transactionColumns+` FROM weighment_transactions t WHERE t.id = ?`), id)
	var t weighment.Transaction
	if err := scanTransaction(row, &t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return &t, nil
}

func (s *SQLDatabase) GetTransactionDetail(ctx context.Context, id string) (*weighment.TransactionDetail, error) {
	row := s.db.QueryRowContext(ctx, s.q(`SELECT `+transactionColumns+`, f.name, v.number_plate
		FROM weighment_transactions t
		JOIN farmers_traders f ON f.id = t.farmer_id
		JOIN vehicles v ON v.id = t.vehicle_id
		WHERE t.id = ?`), id)
	var d weighment.TransactionDetail
	if err := scanTransaction(row, &d.Transaction, &d.FarmerName, &d.VehiclePlate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("getting transaction detail: %w", err)
	}
	return &d, nil
}

func (s *SQLDatabase) CompleteTransaction(ctx context.Context, c weighment.Completion) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE weighment_transactions
			SET tare_weight = ?, tare_datetime = ?, net_weight = ?, status = ?
			WHERE id = ? AND status = ?`),
		c.TareWeight, c.TareDatetime, c.NetWeight, string(weighment.StatusCompleted),
		c.TransactionID, string(weighment.StatusPendingTare),
	)
	if err != nil {
		return false, fmt.Errorf("completing transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("completing transaction: %w", err)
	}
	return n == 1, nil
}

func (s *SQLDatabase) ListPendingTare(ctx context.Context) ([]*weighment.PendingItem, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT t.id, t.gross_weight, t.gross_datetime, f.name, v.number_plate
		FROM weighment_transactions t
		JOIN farmers_traders f ON f.id = t.farmer_id
		JOIN vehicles v ON v.id = t.vehicle_id
		WHERE t.status = ?
		ORDER BY t.gross_datetime DESC, t.id DESC`), string(weighment.StatusPendingTare))
	if err != nil {
		return nil, fmt.Errorf("listing pending transactions: %w", err)
	}
	defer rows.Close()

	var items []*weighment.PendingItem
	for rows.Next() {
		var it weighment.PendingItem
		if err := rows.Scan(&it.TransactionID, &it.GrossWeight, &it.GrossDatetime, &it.FarmerName, &it.VehiclePlate); err != nil {
			return nil, fmt.Errorf("scanning pending transaction: %w", err)
		}
		items = append(items, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing pending transactions: %w", err)
	}
	return items, nil
}

func (s *SQLDatabase) ListCompleted(ctx context.Context, limit int) ([]*weighment.TransactionDetail, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+transactionColumns+`, f.name, v.number_plate
		FROM weighment_transactions t
		JOIN farmers_traders f ON f.id = t.farmer_id
		JOIN vehicles v ON v.id = t.vehicle_id
		WHERE t.status = ?
		ORDER BY t.tare_datetime DESC, t.id DESC
		LIMIT ?`), string(weighment.StatusCompleted), limit)
	if err != nil {
		return nil, fmt.Errorf("listing completed transactions: %w", err)
	}
	defer rows.Close()

	var result []*weighment.TransactionDetail
	for rows.Next() {
		var d weighment.TransactionDetail
		if err := scanTransaction(rows, &d.Transaction, &d.FarmerName, &d.VehiclePlate); err != nil {
			return nil, fmt.Errorf("scanning completed transaction: %w", err)
		}
		result = append(result, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing completed transactions: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner, t *weighment.Transaction, extra ...any) error {
	var status string
	dest := []any{
		&t.ID, &t.FarmerID, &t.VehicleID, &t.GrossWeight, &t.GrossDatetime,
		&t.TareWeight, &t.TareDatetime, &t.NetWeight, &status, &t.SnapshotURL,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	t.Status = weighment.Status(status)
	return nil
}

// Dialect returns the SQL dialect of the connection.
func (s *SQLDatabase) Dialect() Dialect { return s.dialect }

// DB exposes the underlying sql.DB for tools and tests.
func (s *SQLDatabase) DB() *sql.DB { return s.db }

// Path returns the SQLite file path, ":memory:", or "" for Postgres.
func (s *SQLDatabase) Path() string { return s.path }

// Migrate applies pending migrations.
func (s *SQLDatabase) Migrate() error {
	return migrations.MigrateUp(s.db, migrations.Dialect(s.dialect))
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db, migrations.Dialect(s.dialect))
}

// BackupTo writes a consistent copy of a SQLite database to destPath using VACUUM INTO.
func (s *SQLDatabase) BackupTo(ctx context.Context, destPath string) error {
	if s.dialect != DialectSQLite {
		return fmt.Errorf("backup is only supported for sqlite databases")
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLDatabase implements weighment.Database
var _ weighment.Database = (*SQLDatabase)(nil)
