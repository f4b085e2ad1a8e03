package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// OpenPostgres opens a Postgres connection pool through pgx.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	openMu.Lock()
	db, err := sqlOpen("pgx", dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresDatabase opens a Postgres-backed database.
func NewPostgresDatabase(ctx context.Context, dsn string) (*SQLDatabase, error) {
	db, err := OpenPostgres(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return newSQLDatabase(db, DialectPostgres, ""), nil
}

// OverrideSQLOpen swaps the sql.Open function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
