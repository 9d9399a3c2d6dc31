package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/kerlexov/applog/pkg/collector"
	"github.com/kerlexov/applog/pkg/config"
	"github.com/kerlexov/applog/pkg/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	collectConfigFile string
	collectPort       int
	collectDB         string
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run the log collector",
	Long: `Collect runs an HTTP server that accepts remote log batches (POST /v1/logs),
per-file multipart uploads (POST /v1/uploads) and aggregated JSON uploads
(POST /v1/uploads/json), storing everything in SQLite.`,
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)
	collectCmd.Flags().StringVar(&collectConfigFile, "collector-config", "", "collector config file (YAML)")
	collectCmd.Flags().IntVarP(&collectPort, "port", "p", 0, "listen port (overrides config)")
	collectCmd.Flags().StringVar(&collectDB, "db", "", "SQLite database path (overrides config)")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(collectConfigFile)
	if err != nil {
		return err
	}
	if collectPort != 0 {
		cfg.Server.Port = collectPort
	}
	if collectDB != "" {
		cfg.Storage.ConnectionString = collectDB
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid collector configuration: %w", err)
	}

	log := newDiagnostics()
	defer log.Sync()

	store, err := storage.NewSQLiteStorage(cfg.Storage.ConnectionString, cfg.Storage.MaxConnections)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	if !verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	server := collector.NewServer(cfg, store, collector.WithLogger(log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting collector",
		zap.Int("port", cfg.Server.Port),
		zap.String("db", cfg.Storage.ConnectionString),
	)
	return server.Run(ctx)
}
