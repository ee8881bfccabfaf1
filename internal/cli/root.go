package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/vietddude/cqlguard/internal/core/config"
	"github.com/vietddude/cqlguard/internal/infra/cassandra"
	"github.com/vietddude/cqlguard/internal/observe/health"
	"github.com/vietddude/cqlguard/internal/observe/metrics"
	"github.com/vietddude/cqlguard/internal/resilience/breaker"
	"github.com/vietddude/cqlguard/internal/resilience/executor"
	"github.com/vietddude/cqlguard/internal/resilience/policy"
	"github.com/vietddude/cqlguard/internal/schema/manager"
	"github.com/vietddude/cqlguard/internal/schema/mapping"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "cqlguard",
	Short: "Resilient Cassandra query execution and schema management",
	Long:  `cqlguard wraps a Cassandra cluster with retry and circuit-breaker policies and manages schema migrations against it.`,
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// app bundles the wired components shared by the commands.
type app struct {
	cfg      *config.AppConfig
	session  cassandra.Session
	exec     *executor.Executor
	manager  *manager.Manager
	migrator *manager.Migrator
}

func setup() (*app, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		initLogging(config.LoggingConfig{})
		return nil, fmt.Errorf("load config: %w", err)
	}
	initLogging(cfg.Logging)

	defaults, err := cfg.Resilience.Options()
	if err != nil {
		return nil, err
	}

	session, err := cassandra.Connect(cfg.Cassandra)
	if err != nil {
		return nil, fmt.Errorf("connect cluster: %w", err)
	}

	composer := policy.NewComposer(breaker.NewRegistry(), cfg.Resilience.ComposerConfig())
	exec := executor.New(composer, metrics.NewObserver(), defaults)
	resolver := mapping.NewResolver(cfg.Cassandra.Keyspace)

	return &app{
		cfg:      cfg,
		session:  session,
		exec:     exec,
		manager:  manager.New(session, exec, resolver, slog.Default()),
		migrator: manager.NewMigrator(session, exec, os.DirFS(cfg.Migrations.Dir), cfg.Migrations.LedgerTable, slog.Default()),
	}, nil
}

func (a *app) close() {
	a.session.Close()
}

// ping probes the cluster through the executor so the health endpoint
// exercises the same policies as real calls.
func (a *app) ping(ctx context.Context) error {
	return a.exec.ExecuteDefault(ctx, "health.ping", func(ctx context.Context) error {
		var version string
		it := a.session.Query(ctx, "SELECT release_version FROM system.local")
		it.Scan(&version)
		return it.Close()
	})
}

func initLogging(cfg config.LoggingConfig) {
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slogLevel,
			TimeFormat: time.RFC3339,
		})
	}
	slog.SetDefault(slog.New(handler))
}

func runServe(cmd *cobra.Command, args []string) {
	a, err := setup()
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.close()

	srv := health.NewServer(a.cfg.Server.Port, a.ping, a.exec.Composer().Registry().Snapshot)

	go func() {
		slog.Info("Health server listening", "port", a.cfg.Server.Port)
		if err := srv.Start(); err != nil {
			slog.Error("Health server stopped", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
