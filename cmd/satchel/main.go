package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/voltmesh/satchel/internal/payments/application"
	"github.com/voltmesh/satchel/internal/payments/domain"
	"github.com/voltmesh/satchel/internal/payments/infrastructure/persistence"
	"github.com/voltmesh/satchel/internal/shared/infrastructure/database"
	"github.com/voltmesh/satchel/internal/shared/infrastructure/eventbus"
	"github.com/voltmesh/satchel/pkg/config"
	"github.com/voltmesh/satchel/pkg/observability"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "satchel",
		Short: "Satchel - payment request reconciliation engine",
		Long: `Satchel validates recurring payment requests, serializes settlement
per subscription, and reconciles pending settlements against the activity
ledger.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd(), migrateCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the satchel version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "satchel", version)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the storage schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg)

			ctx := cmd.Context()
			switch database.DetectDriver(cfg.DatabaseURL) {
			case database.DriverPostgres:
				pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("connect to database: %w", err)
				}
				defer pool.Close()
				if err := persistence.MigratePostgres(ctx, pool); err != nil {
					return err
				}
				logger.Info("postgres schema applied")
			default:
				db, err := openSQLite(ctx, cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := persistence.MigrateSQLite(ctx, db); err != nil {
					return err
				}
				logger.Info("sqlite schema applied")
			}
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the settlement reconciler daemon",
		Long: `Runs the background reconciler that fails pending settlements whose
window lapsed while no client was watching them, and publishes ledger
events to the notification exchange.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := newLogger(cfg)
			logger.Info("starting satchel", "version", version)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigCh
				logger.Info("received shutdown signal", "signal", sig)
				cancel()
			}()

			var (
				activities domain.ActivityRepository
				statuses   domain.PaymentStatusRepository
				ping       func(context.Context) error
			)
			switch database.DetectDriver(cfg.DatabaseURL) {
			case database.DriverPostgres:
				pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("connect to database: %w", err)
				}
				defer pool.Close()
				if err := pool.Ping(ctx); err != nil {
					return fmt.Errorf("ping database: %w", err)
				}
				if err := persistence.MigratePostgres(ctx, pool); err != nil {
					return err
				}
				activities = persistence.NewPostgresActivityRepository(pool)
				statuses = persistence.NewPostgresPaymentStatusRepository(pool)
				ping = pool.Ping
			default:
				db, err := openSQLite(ctx, cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := persistence.MigrateSQLite(ctx, db); err != nil {
					return err
				}
				activities = persistence.NewSQLiteActivityRepository(db)
				statuses = persistence.NewSQLitePaymentStatusRepository(db)
				ping = db.PingContext
			}
			logger.Info("connected to database")

			var publisher eventbus.Publisher
			if cfg.RabbitMQURL != "" {
				rabbit, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
				if err != nil {
					if cfg.IsDevelopment() {
						logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
						publisher = eventbus.NewNoopPublisher(logger)
					} else {
						return fmt.Errorf("connect to RabbitMQ: %w", err)
					}
				} else {
					publisher = rabbit
					defer rabbit.Close()
				}
			} else {
				publisher = eventbus.NewNoopPublisher(logger)
			}

			events := application.NewNotifications(publisher, logger)
			reconciler := application.NewReconciler(activities, statuses, events, application.ReconcilerConfig{
				SweepInterval: cfg.MonitorPollInterval,
				Timeout:       cfg.MonitorTimeout,
			}, logger)

			if err := reconciler.Start(ctx); err != nil {
				return fmt.Errorf("start reconciler: %w", err)
			}
			defer reconciler.Stop()

			if cfg.HealthAddr != "" {
				startHealthServer(ctx, cfg.HealthAddr, reconciler, ping, logger)
			}

			<-ctx.Done()
			logger.Info("shutting down")
			return nil
		},
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	logCfg := observability.DefaultLogConfig()
	logCfg.Level = observability.LogLevel(cfg.LogLevel)
	logCfg.ServiceVersion = version
	if !cfg.IsDevelopment() {
		logCfg.Format = observability.LogFormatJSON
	}
	return observability.NewLogger(logCfg)
}

func openSQLite(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = cfg.DatabaseURL
	}
	if path == "" {
		path = database.DefaultSQLitePath()
	}
	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

func startHealthServer(ctx context.Context, addr string, reconciler *application.Reconciler, ping func(context.Context) error, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := reconciler.GetStats()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":        "ok",
			"running":       stats.IsRunning,
			"sweeps":        stats.SweepCount,
			"failed":        stats.FailedCount,
			"last_sweep_at": stats.LastSweepAt,
			"last_error":    stats.LastError,
		})
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := ping(checkCtx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()
}
