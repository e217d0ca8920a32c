package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jgoulah/assetwatch/internal/maintenance"
	"github.com/jgoulah/assetwatch/internal/metrics"
	"github.com/jgoulah/assetwatch/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status table over HTTP",
	Long: `Starts an HTTP API exposing the status table, leaderboard, legend, summary and
trend reports, plus Prometheus metrics at /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	m := metrics.New()
	engine, err := newEngine(cfg, log, m)
	if err != nil {
		return err
	}
	bucket, err := maintenance.ParseBucket(cfg.GetBucket())
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	source, closeCache, err := eventSource(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer closeCache() //nolint:errcheck

	addr := serveAddr
	if addr == "" {
		addr = cfg.GetServerAddr()
	}
	srv := server.New(engine, source, server.Options{
		PageSize: cfg.GetPageSize(),
		TopN:     cfg.GetTopN(),
		Bucket:   bucket,
		Metrics:  m,
		Log:      log,
	})
	return srv.Run(ctx, addr)
}
