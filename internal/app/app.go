package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"weighbridge/internal/config"
	"weighbridge/internal/database"
	"weighbridge/internal/metrics"
	"weighbridge/internal/objectstore"
	"weighbridge/internal/realtime"
	"weighbridge/internal/snapshot"
	"weighbridge/internal/weighment"
)

// WeighbridgeApp is the application layer between the CLI and the
// weighment service. It constructs all dependencies from config, exposes
// operations that accept raw operator input, and releases the camera,
// change feed and database on Close.
type WeighbridgeApp struct {
	cfg      *config.Config
	db       *database.SQLDatabase
	store    weighment.ObjectStore
	camera   *snapshot.Camera
	resolver *weighment.IdentityResolver
	service  *weighment.WeighmentService
	metrics  *metrics.Collector
	logger   weighment.Logger
	clock    weighment.Clock
	session  *Session
	logFile  *os.File

	feed     *realtime.Feed
	worklist *weighment.Worklist
}

// NewWeighbridgeApp creates a fully wired WeighbridgeApp from the given config.
// command identifies the CLI command being run (e.g. "gross", "watch").
// The caller must call Close when done.
func NewWeighbridgeApp(ctx context.Context, cfg *config.Config, command string) (*WeighbridgeApp, error) {
	clock := weighment.RealClock{}
	session := NewSession(cfg.TerminalID, command, clock.Now())

	slogger, logFile, err := newLogger(cfg.LogDir, session.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger.With("terminal", cfg.TerminalID)}

	a, err := wire(ctx, cfg, logger, clock, weighment.UUIDGenerator{})
	if err != nil {
		logger.Error("startup failed", "command", command, "error", err)
		logFile.Close()
		return nil, err
	}
	a.session = session
	a.logFile = logFile
	return a, nil
}

// wire builds the storage, media, camera and service layers.
func wire(ctx context.Context, cfg *config.Config, logger weighment.Logger, clock weighment.Clock, idgen weighment.IDGenerator) (*WeighbridgeApp, error) {
	linkPolicy, err := weighment.ParseVehicleLinkPolicy(cfg.Identity.VehicleLink)
	if err != nil {
		return nil, err
	}

	db, err := database.NewDatabaseFromConfig(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date (run 'weighbridge db migrate'): %w", err)
	}

	store, err := objectstore.NewStoreFromConfig(ctx, cfg.Media)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating object store: %w", err)
	}

	camera, err := snapshot.NewCameraFromConfig(cfg.Camera, cfg.Snapshot)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating camera: %w", err)
	}

	// A nil *Camera must not become a non-nil Capturer.
	var capturer weighment.Capturer
	if camera != nil {
		capturer = camera
	}

	collector := metrics.New(cfg.TerminalID)

	resolver := weighment.NewIdentityResolver(db, clock, idgen, logger)
	resolver.SetLinkPolicy(linkPolicy)
	resolver.SetNormalizePlates(cfg.Identity.NormalizePlates)

	uploader := weighment.NewMediaUploader(store, clock, idgen)
	pipeline := weighment.NewSnapshotPipeline(capturer, uploader, cfg.Snapshot.Category)

	svc := weighment.NewWeighmentService(db, resolver, pipeline, logger, clock, idgen)
	svc.SetMetrics(collector)
	svc.SetRejectNegativeNet(cfg.Policy.RejectNegativeNet)

	return &WeighbridgeApp{
		cfg:      cfg,
		db:       db,
		store:    store,
		camera:   camera,
		resolver: resolver,
		service:  svc,
		metrics:  collector,
		logger:   logger,
		clock:    clock,
	}, nil
}

// GrossWeigh records the first weighing. The camera is started on first
// use; if it cannot be opened the weighment is recorded without a snapshot.
func (a *WeighbridgeApp) GrossWeigh(ctx context.Context, farmerName, vehiclePlate, grossWeight string) (*weighment.GrossResult, error) {
	if a.camera != nil && !a.camera.Started() {
		if err := a.camera.Start(ctx); err != nil {
			a.logger.Warn("camera unavailable", "error", err)
		}
	}

	res, err := a.service.GrossWeigh(ctx, weighment.GrossInput{
		FarmerName:   farmerName,
		VehiclePlate: vehiclePlate,
		GrossWeight:  grossWeight,
	})
	if err != nil {
		a.session.Fail(err)
		return nil, err
	}
	return res, nil
}

// TareWeigh records the second weighing of a pending transaction.
func (a *WeighbridgeApp) TareWeigh(ctx context.Context, transactionID, tareWeight string) (*weighment.Transaction, error) {
	txn, err := a.service.TareWeigh(ctx, transactionID, tareWeight)
	if err != nil {
		a.session.Fail(err)
		return nil, err
	}
	return txn, nil
}

// Show returns one transaction with its farmer name and plate.
func (a *WeighbridgeApp) Show(ctx context.Context, transactionID string) (*weighment.TransactionDetail, error) {
	return a.service.Get(ctx, transactionID)
}

// Pending returns the pending-tare worklist.
func (a *WeighbridgeApp) Pending(ctx context.Context) ([]*weighment.PendingItem, error) {
	return a.service.PendingTare(ctx)
}

// History returns up to limit completed transactions, newest first.
func (a *WeighbridgeApp) History(ctx context.Context, limit int) ([]*weighment.TransactionDetail, error) {
	return a.service.History(ctx, limit)
}

// Watch starts the configured change feed and a worklist that re-reads on
// every transaction change. onChange receives each refreshed list. Both are
// stopped by Close.
func (a *WeighbridgeApp) Watch(ctx context.Context, onChange func([]*weighment.PendingItem)) (*weighment.Worklist, error) {
	if a.worklist != nil {
		return nil, fmt.Errorf("worklist already running")
	}

	feed, err := realtime.NewFeedFromConfig(ctx, a.cfg.Realtime, a.cfg.Database, a.db, a.logger, a.clock)
	if err != nil {
		return nil, fmt.Errorf("starting change feed: %w", err)
	}

	w, err := weighment.StartWorklist(ctx, a.db, feed, a.logger, a.metrics, onChange)
	if err != nil {
		feed.Close()
		return nil, err
	}

	a.logger.Info("watching pending worklist", "feed", feed.Kind())
	a.feed = feed
	a.worklist = w
	return w, nil
}

// CheckMedia verifies that the configured object store is writable.
func (a *WeighbridgeApp) CheckMedia(ctx context.Context) error {
	if err := a.store.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("object store %s: %w", a.cfg.Media.Type, err)
	}
	return nil
}

// Metrics returns the terminal's metrics collector.
func (a *WeighbridgeApp) Metrics() *metrics.Collector {
	return a.metrics
}

// Session returns the session this app was started for.
func (a *WeighbridgeApp) Session() *Session {
	return a.session
}

// Close stops the worklist and change feed, releases the camera and closes
// the database. It logs the session outcome.
func (a *WeighbridgeApp) Close() error {
	var errs []error

	if a.worklist != nil {
		if err := a.worklist.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing worklist: %w", err))
		}
	}
	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing change feed: %w", err))
		}
	}
	if a.camera != nil {
		if err := a.camera.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("releasing camera: %w", err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}

	if a.session != nil {
		a.session.Finish(a.clock.Now())
		a.logger.Info("session finished",
			"command", a.session.Command, "status", a.session.Status,
			"duration", a.session.Duration().String())
	}
	if a.logFile != nil {
		a.logFile.Close()
	}

	return errors.Join(errs...)
}
