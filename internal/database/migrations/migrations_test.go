package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"farmers_traders", "vehicles", "weighment_transactions", "change_log", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}

	var triggers int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='trigger'").Scan(&triggers); err != nil {
		t.Fatalf("counting triggers: %v", err)
	}
	if triggers != 9 {
		t.Errorf("trigger count = %d, want 9", triggers)
	}
}

func TestMigrateUp_UnknownDialect(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, Dialect("oracle")); err == nil {
		t.Fatal("MigrateUp() expected error for unknown dialect")
	}
}

func TestLatestVersion(t *testing.T) {
	for _, d := range []Dialect{SQLite, Postgres} {
		v, err := LatestVersion(d)
		if err != nil {
			t.Fatalf("LatestVersion(%s) error = %v", d, err)
		}
		if v != 1 {
			t.Errorf("LatestVersion(%s) = %d, want 1", d, v)
		}
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	err := CheckDBMigrationStatus(db, SQLite)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}

	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestCheckDBMigrationStatus_AfterMigration(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if err := CheckDBMigrationStatus(db, SQLite); err != nil {
		t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}

	if err := MigrateUp(db, SQLite); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}

	if err := CheckDBMigrationStatus(db, SQLite); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`
		INSERT INTO vehicles (id, number_plate, farmer_id, created_at)
		VALUES ('v-1', 'KA01AB1234', 'no-such-farmer', datetime('now'))
	`)
	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_UniqueIdentities(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	if _, err := db.Exec("INSERT INTO farmers_traders (id, name, created_at) VALUES ('f-1', 'Ravi', datetime('now'))"); err != nil {
		t.Fatalf("Failed to insert first farmer: %v", err)
	}
	if _, err := db.Exec("INSERT INTO farmers_traders (id, name, created_at) VALUES ('f-2', 'Ravi', datetime('now'))"); err == nil {
		t.Error("Expected unique constraint violation for duplicate farmer name, but insert succeeded")
	}

	if _, err := db.Exec("INSERT INTO vehicles (id, number_plate, farmer_id, created_at) VALUES ('v-1', 'KA01', 'f-1', datetime('now'))"); err != nil {
		t.Fatalf("Failed to insert first vehicle: %v", err)
	}
	if _, err := db.Exec("INSERT INTO vehicles (id, number_plate, farmer_id, created_at) VALUES ('v-2', 'KA01', 'f-1', datetime('now'))"); err == nil {
		t.Error("Expected unique constraint violation for duplicate plate, but insert succeeded")
	}
}

func TestSchema_TransactionStatusInvariant(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	mustExec(t, db, "INSERT INTO farmers_traders (id, name, created_at) VALUES ('f-1', 'Ravi', datetime('now'))")
	mustExec(t, db, "INSERT INTO vehicles (id, number_plate, farmer_id, created_at) VALUES ('v-1', 'KA01', 'f-1', datetime('now'))")

	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{
			name:  "pending without tare",
			query: `INSERT INTO weighment_transactions (id, farmer_id, vehicle_id, gross_weight, gross_datetime, status) VALUES ('t-1', 'f-1', 'v-1', 100, datetime('now'), 'pending_tare')`,
		},
		{
			name:    "pending with tare",
			query:   `INSERT INTO weighment_transactions (id, farmer_id, vehicle_id, gross_weight, gross_datetime, tare_weight, status) VALUES ('t-2', 'f-1', 'v-1', 100, datetime('now'), 50, 'pending_tare')`,
			wantErr: true,
		},
		{
			name:    "completed without net",
			query:   `INSERT INTO weighment_transactions (id, farmer_id, vehicle_id, gross_weight, gross_datetime, tare_weight, tare_datetime, status) VALUES ('t-3', 'f-1', 'v-1', 100, datetime('now'), 50, datetime('now'), 'completed')`,
			wantErr: true,
		},
		{
			name:    "zero gross",
			query:   `INSERT INTO weighment_transactions (id, farmer_id, vehicle_id, gross_weight, gross_datetime, status) VALUES ('t-4', 'f-1', 'v-1', 0, datetime('now'), 'pending_tare')`,
			wantErr: true,
		},
		{
			name:    "unknown status",
			query:   `INSERT INTO weighment_transactions (id, farmer_id, vehicle_id, gross_weight, gross_datetime, status) VALUES ('t-5', 'f-1', 'v-1', 100, datetime('now'), 'weighed')`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Exec(tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("Exec() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchema_ChangeLogTriggers(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	if err := MigrateUp(db, SQLite); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	mustExec(t, db, "INSERT INTO farmers_traders (id, name, created_at) VALUES ('f-1', 'Ravi', datetime('now'))")
	mustExec(t, db, "UPDATE farmers_traders SET name = 'Ravi K' WHERE id = 'f-1'")
	mustExec(t, db, "DELETE FROM farmers_traders WHERE id = 'f-1'")

	rows, err := db.Query("SELECT table_name, op, row_id FROM change_log ORDER BY seq")
	if err != nil {
		t.Fatalf("querying change_log: %v", err)
	}
	defer rows.Close()

	var got []string
	for rows.Next() {
		var table, op, id string
		if err := rows.Scan(&table, &op, &id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, table+" "+op+" "+id)
	}
	want := []string{
		"farmers_traders INSERT f-1",
		"farmers_traders UPDATE f-1",
		"farmers_traders DELETE f-1",
	}
	if len(got) != len(want) {
		t.Fatalf("change_log = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("change_log[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Exec(%q) error = %v", query, err)
	}
}

// openTestDB opens an in-memory SQLite database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	return db
}
