package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/assetwatch/internal/importer"
)

var importConcurrency int

var importCmd = &cobra.Command{
	Use:   "import <file.csv>...",
	Short: "Import event log exports into the database",
	Long: `Parses CSV exports of the unified event log (usage and maintenance rows) and
stores them in the local database. Re-importing the same file is a no-op.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().IntVar(&importConcurrency, "concurrency", importer.DefaultConcurrency, "Number of files parsed in parallel")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	// Parse everything before writing so a bad file leaves the store untouched
	parsed, err := importer.ParseFiles(ctx, args, importConcurrency)
	if err != nil {
		return explain(err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	total := 0
	for i, path := range args {
		origin, err := filepath.Abs(path)
		if err != nil {
			origin = path
		}
		inserted, err := db.InsertEvents(ctx, origin, parsed[i])
		if err != nil {
			return fmt.Errorf("storing %s: %w", path, err)
		}
		log.Info("imported event log",
			zap.String("file", path),
			zap.Int("rows", len(parsed[i])),
			zap.Int("inserted", inserted))
		fmt.Printf("✓ %s: %d rows, %d new\n", path, len(parsed[i]), inserted)
		total += inserted
	}

	if total > 0 && cfg.Cache.RedisURL != "" {
		source, closeCache, err := eventSource(ctx, cfg, db, log)
		if err != nil {
			log.Warn("cache unavailable, skipping invalidation", zap.Error(err))
		} else {
			defer closeCache() //nolint:errcheck
			if err := source.Invalidate(ctx); err != nil {
				log.Warn("invalidating cached event log failed", zap.Error(err))
			}
		}
	}

	fmt.Printf("\nImported %d new events from %d files in %s\n", total, len(args), time.Since(start).Round(time.Millisecond))
	return nil
}
