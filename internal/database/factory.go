package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"weighbridge/internal/config"
)

// DatabaseFileName is the SQLite file shared by every terminal pointed at the same data_dir.
const DatabaseFileName = "weighbridge.db"

// NewDatabaseFromConfig creates a SQLDatabase based on the database config type.
// In-memory databases are always migrated; the others only when auto_migrate is set.
func NewDatabaseFromConfig(ctx context.Context, cfg config.DatabaseConfig) (*SQLDatabase, error) {
	var (
		db  *SQLDatabase
		err error
	)
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		db, err = NewSQLiteDatabase(filepath.Join(cfg.DataDir, DatabaseFileName))
	case "memory":
		db, err = NewSQLiteDatabase(":memory:")
	case "postgres":
		db, err = NewPostgresDatabase(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Type == "memory" || cfg.AutoMigrate {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}
	return db, nil
}
