package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weighbridge/internal/app"
	"weighbridge/internal/config"
	"weighbridge/internal/weighment"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// readConfig loads the config from the default location.
func readConfig() (*config.Config, map[string]string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults, nil
}

// newApp reads the config and creates a WeighbridgeApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "gross", "watch").
func newApp(ctx context.Context, command string) (*app.WeighbridgeApp, error) {
	cfg, _, err := readConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewWeighbridgeApp(ctx, cfg, command)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "weighbridge",
	Short:        "Two-stage weighbridge terminal",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		terminalID, _ := cmd.Flags().GetString("terminal-id")
		if terminalID == "" {
			terminalID = uuid.New().String()
		}

		cfg := config.NewConfig(terminalID, defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Terminal ID: %s\n", terminalID)
		fmt.Printf("Base Dir:    %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := readConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Terminal ID: %s\n", cfg.TerminalID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Media:       %s\n", cfg.Media.Type)
		fmt.Printf("Realtime:    %s\n", cfg.Realtime.Source(cfg.Database.Type))
		fmt.Printf("Camera:      %s\n", cfg.Camera.Type)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the transaction database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := readConfig()
		if err != nil {
			return err
		}

		version, err := app.MigrateDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Database schema at version %d\n", version)
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a copy of the SQLite database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, defaults, err := readConfig()
		if err != nil {
			return err
		}

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = defaults["backup_dir"]
		}

		path, err := app.BackupDatabase(cmd.Context(), cfg, dir, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Database backed up to %s\n", path)
		return nil
	},
}

// gross command
var grossCmd = &cobra.Command{
	Use:   "gross",
	Short: "Record the gross (loaded) weight of a vehicle",
	RunE: func(cmd *cobra.Command, args []string) error {
		farmer, _ := cmd.Flags().GetString("farmer")
		plate, _ := cmd.Flags().GetString("plate")
		weight, _ := cmd.Flags().GetString("weight")

		a, err := newApp(cmd.Context(), "gross")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.GrossWeigh(cmd.Context(), farmer, plate, weight)
		if err != nil {
			return err
		}

		txn := res.Transaction
		fmt.Printf("Transaction %s pending tare\n", txn.ID)
		fmt.Printf("Gross: %s at %s\n", txn.GrossWeight, localTime(txn.GrossDatetime))
		if txn.SnapshotURL.Valid {
			fmt.Printf("Snapshot: %s\n", txn.SnapshotURL.String)
		} else {
			fmt.Printf("Snapshot: none (%v)\n", res.SnapshotErr)
		}
		return nil
	},
}

// tare command
var tareCmd = &cobra.Command{
	Use:   "tare TRANSACTION_ID",
	Short: "Record the tare (empty) weight and complete a transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		weight, _ := cmd.Flags().GetString("weight")

		a, err := newApp(cmd.Context(), "tare")
		if err != nil {
			return err
		}
		defer a.Close()

		txn, err := a.TareWeigh(cmd.Context(), args[0], weight)
		if err != nil {
			if errors.Is(err, weighment.ErrAlreadyCompleted) {
				return fmt.Errorf("transaction %s is already completed", args[0])
			}
			return err
		}

		fmt.Printf("Transaction %s completed\n", txn.ID)
		fmt.Printf("Gross: %s  Tare: %s  Net: %s\n", txn.GrossWeight, txn.TareWeight.Weight, txn.NetWeight.Weight)
		return nil
	},
}

// pending command
var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List transactions awaiting tare",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "pending")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.Pending(cmd.Context())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No transactions pending tare.")
			return nil
		}
		fmt.Println(pendingTable(items))
		return nil
	},
}

// show command
var showCmd = &cobra.Command{
	Use:   "show TRANSACTION_ID",
	Short: "Show one transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "show")
		if err != nil {
			return err
		}
		defer a.Close()

		d, err := a.Show(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(detailTable(d))
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View completed transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "history")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No completed transactions.")
			return nil
		}
		fmt.Println(historyTable(items))
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the pending worklist and keep it current",
	RunE: func(cmd *cobra.Command, args []string) error {
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "watch")
		if err != nil {
			return err
		}
		defer a.Close()

		if metricsAddr != "" {
			srv := &http.Server{Addr: metricsAddr, Handler: metricsMux(a), ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
		}

		clearScreen := term.IsTerminal(int(os.Stdout.Fd()))
		if _, err := a.Watch(ctx, func(items []*weighment.PendingItem) {
			printWorklist(items, clearScreen)
		}); err != nil {
			return err
		}

		<-ctx.Done()
		return nil
	},
}

func metricsMux(a *app.WeighbridgeApp) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.Metrics().Handler())
	return mux
}

func printWorklist(items []*weighment.PendingItem, clearScreen bool) {
	if clearScreen {
		fmt.Print("\033[H\033[2J")
	}
	fmt.Printf("Pending tare: %d  (updated %s)\n", len(items), time.Now().Format(timeLayout))
	if len(items) > 0 {
		fmt.Println(pendingTable(items))
	}
}

// camera command
var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Manage the snapshot camera",
}

var cameraCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Capture one captioned test snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		cfg, _, err := readConfig()
		if err != nil {
			return err
		}
		if err := app.CheckCamera(cmd.Context(), cfg, out); err != nil {
			return err
		}
		fmt.Printf("Test snapshot written to %s\n", out)
		return nil
	},
}

// media command
var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage snapshot storage",
}

var mediaCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the object store is writable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "media-check")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.CheckMedia(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Object store OK")
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("terminal-id", "", "Terminal ID (default: random UUID)")
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbBackupCmd)
	dbBackupCmd.Flags().String("dir", "", "Backup directory (default: <base_dir>/backup)")

	// camera and media subcommands
	cameraCmd.AddCommand(cameraCheckCmd)
	cameraCheckCmd.Flags().StringP("out", "o", "camera-check.jpg", "Where to write the test snapshot")
	mediaCmd.AddCommand(mediaCheckCmd)

	// weighment commands
	grossCmd.Flags().StringP("farmer", "f", "", "Farmer or trader name")
	grossCmd.Flags().StringP("plate", "p", "", "Vehicle number plate")
	grossCmd.Flags().StringP("weight", "w", "", "Gross weight")
	tareCmd.Flags().StringP("weight", "w", "", "Tare weight")
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of transactions to show")
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9101)")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(grossCmd)
	rootCmd.AddCommand(tareCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cameraCmd)
	rootCmd.AddCommand(mediaCmd)
}
