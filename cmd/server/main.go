/*
main.go - Application entry point

PURPOSE:
  Starts the party ledger HTTP server, or runs a one-shot balance audit.
  Handles configuration, dependency injection, and graceful shutdown.

COMMANDS:
  serve    Run the HTTP API (default when no command is given)
  audit    Replay every party once and exit non-zero on drift

STARTUP SEQUENCE (serve):
  1. Load .env, then config (defaults -> TOML -> environment -> flags)
  2. Build logger
  3. Open store (memory, sqlite or postgres)
  4. Create ledger service with metrics observer
  5. Configure HTTP router, start audit scheduler
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the audit scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (shutdown_timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server serve --config ledger.toml

  # Run with in-memory store on another port
  DB_DRIVER=memory ./server serve --port 3000

  # Audit one merchant against PostgreSQL
  DB_DRIVER=postgres DATABASE_URL=postgres://... ./server audit --merchant m-1

SEE ALSO:
  - config/config.go: Configuration keys
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/warp/party-ledger/api"
	"github.com/warp/party-ledger/config"
	"github.com/warp/party-ledger/ledger"
	memstore "github.com/warp/party-ledger/ledger/store"
	"github.com/warp/party-ledger/logger"
	"github.com/warp/party-ledger/metrics"
	"github.com/warp/party-ledger/store/postgres"
	"github.com/warp/party-ledger/store/sqlite"
)

var errDrift = errors.New("balance drift detected")

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "party-ledger",
		Short:        "Party balance ledger for merchants",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to a TOML config file")
	root.PersistentFlags().String("db-driver", "", "Store driver: memory, sqlite or postgres")

	serve := serveCmd()
	root.AddCommand(serve, auditCmd())
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

// =============================================================================
// SERVE
// =============================================================================

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port, _ = cmd.Flags().GetInt("port")
			}
			return serve(cfg)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP server port (overrides config)")
	return cmd
}

func serve(cfg config.Config) error {
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to open store", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		return err
	}
	defer closeStore.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := ledger.NewService(store,
		ledger.WithLogger(log.Named("ledger")),
		ledger.WithObserver(m),
		ledger.WithMaxAttempts(cfg.Ledger.MaxAttempts),
		ledger.WithLockTimeout(cfg.Ledger.LockTimeout),
	)

	handler := api.NewHandler(svc, log.Named("api"))
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     m.Handler(),
		Scenarios:   cfg.Server.LoadScenarios,
	})

	scheduler := api.NewAuditScheduler(svc, log)
	scheduler.CheckInterval = cfg.Audit.Interval
	scheduler.Recorder = m
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("driver", cfg.Database.Driver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		scheduler.Stop()
		log.Error("server failed", zap.Error(err))
		return err
	}

	log.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
		return err
	}

	log.Info("server stopped")
	return nil
}

// =============================================================================
// AUDIT
// =============================================================================

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Replay every party once and report drift",
		Long: `Replays each party's entries from its opening balance and compares the
result with the stored balance. Exits non-zero when any party drifted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			merchant, _ := cmd.Flags().GetString("merchant")
			return audit(cmd.Context(), cfg, ledger.MerchantID(merchant), cmd.OutOrStdout())
		},
	}
	cmd.Flags().String("merchant", "", "Only audit parties of this merchant")
	return cmd
}

func audit(ctx context.Context, cfg config.Config, merchant ledger.MerchantID, out io.Writer) error {
	log, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		return err
	}
	defer log.Sync()

	store, closer, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closer.Close()

	svc := ledger.NewService(store,
		ledger.WithLogger(log.Named("ledger")),
		ledger.WithLockTimeout(cfg.Ledger.LockTimeout),
	)
	reports, err := svc.AuditAll(ctx, merchant)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	drifted := 0
	for _, r := range reports {
		status := "ok"
		if !r.Consistent() {
			status = "DRIFT"
			drifted++
		}
		fmt.Fprintf(out, "%-36s  %-5s  stored=%s  replayed=%s  entries=%d  broken=%d\n",
			r.PartyID, status, r.Stored, r.Replayed, r.Entries, len(r.BrokenChain))
	}
	fmt.Fprintf(out, "%d parties audited, %d drifted\n", len(reports), drifted)
	if drifted > 0 {
		return errDrift
	}
	return nil
}

// =============================================================================
// WIRING
// =============================================================================

// loadConfig reads .env, the --config file and the environment, then applies
// the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("db-driver") {
		cfg.Database.Driver, _ = cmd.Flags().GetString("db-driver")
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(ctx context.Context, cfg config.DatabaseConfig) (ledger.TxStore, io.Closer, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memstore.NewTxMemory(), nopCloser{}, nil
	case config.DriverSQLite:
		if cfg.SQLitePath != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
				return nil, nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.DriverPostgres:
		s, err := postgres.Open(ctx, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
