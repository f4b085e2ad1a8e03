package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"weighbridge/internal/config"
	"weighbridge/internal/database"
	"weighbridge/internal/database/migrations"
	"weighbridge/internal/snapshot"
)

// MigrateDatabase applies pending migrations to the configured database and
// returns the schema version it is now at.
func MigrateDatabase(ctx context.Context, cfg *config.Config) (uint, error) {
	dbCfg := cfg.Database
	dbCfg.AutoMigrate = false

	db, err := database.NewDatabaseFromConfig(ctx, dbCfg)
	if err != nil {
		return 0, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return 0, fmt.Errorf("migrating database: %w", err)
	}
	return migrations.LatestVersion(migrations.Dialect(db.Dialect()))
}

// BackupDatabase writes a consistent copy of the SQLite database into
// destDir and returns the file path. Postgres deployments use pg_dump.
func BackupDatabase(ctx context.Context, cfg *config.Config, destDir string, now time.Time) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	dest := filepath.Join(destDir, fmt.Sprintf("weighbridge-%s.db", now.UTC().Format("20060102T150405Z")))
	if err := db.BackupTo(ctx, dest); err != nil {
		return "", err
	}
	return dest, nil
}

// CheckCamera opens the configured camera, composes one captioned test
// snapshot and writes it to outPath.
func CheckCamera(ctx context.Context, cfg *config.Config, outPath string) error {
	camera, err := snapshot.NewCameraFromConfig(cfg.Camera, cfg.Snapshot)
	if err != nil {
		return fmt.Errorf("creating camera: %w", err)
	}
	if camera == nil {
		return fmt.Errorf("no camera configured (camera type is %q)", cfg.Camera.Type)
	}

	if err := camera.Start(ctx); err != nil {
		return err
	}
	defer camera.Stop()

	img, err := camera.Capture(ctx, "Test Farmer", "TEST-0000")
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, img, 0644); err != nil {
		return fmt.Errorf("writing test snapshot: %w", err)
	}
	return nil
}
