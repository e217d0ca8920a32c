package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/assetwatch/internal/config"
	"github.com/jgoulah/assetwatch/internal/database"
	"github.com/jgoulah/assetwatch/internal/eventlog"
	"github.com/jgoulah/assetwatch/internal/logger"
	"github.com/jgoulah/assetwatch/internal/maintenance"
	"github.com/jgoulah/assetwatch/internal/metrics"
	"github.com/jgoulah/assetwatch/internal/server"
)

var (
	cfgFile string
	dbPath  string
)

var rootCmd = &cobra.Command{
	Use:   "assetwatch",
	Short: "Track maintenance status of heavy equipment from usage and maintenance logs",
	Long: `AssetWatch imports hour-meter readings and consumable purchases into a local
SQLite database and classifies every asset/product pairing by how urgently it
needs service, based on its historical average service interval.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./assetwatch.db)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path, preferring the flag over config
func getDBPath(cfg *config.Config) string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.GetDatabase()
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openDB opens the database connection
func openDB(cfg *config.Config) (*database.DB, error) {
	path := getDBPath(cfg)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		ServiceName: "assetwatch",
		Level:       cfg.GetLogLevel(),
		Format:      cfg.GetLogFormat(),
	})
}

// newEngine builds the evaluation engine from config. m may be nil.
func newEngine(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*maintenance.Engine, error) {
	variant, err := maintenance.ParseVariant(cfg.GetVariant())
	if err != nil {
		return nil, fmt.Errorf("parsing variant: %w", err)
	}
	opts := []maintenance.Option{maintenance.WithLogger(log)}
	if cfg.Threshold > 0 {
		opts = append(opts, maintenance.WithThreshold(cfg.Threshold))
	}
	if m != nil {
		opts = append(opts, maintenance.WithObserver(m))
	}
	return maintenance.NewEngine(variant, opts...), nil
}

// eventSource reads the stored event log through the configured cache. The
// returned closer releases the cache connection.
func eventSource(ctx context.Context, cfg *config.Config, db *database.DB, log *zap.Logger) (*eventlog.Cached, func() error, error) {
	store := eventlog.NewStoreSource(db, database.EventQuery{})

	if cfg.Cache.RedisURL == "" {
		cached := eventlog.NewCached(store, eventlog.NewMemoryCache(), "all", cfg.GetCacheTTL(), log)
		return cached, func() error { return nil }, nil
	}

	cache, err := eventlog.DialRedisCache(ctx, cfg.Cache.RedisURL, cfg.GetCacheKeyPrefix())
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to cache: %w", err)
	}
	return eventlog.NewCached(store, cache, "all", cfg.GetCacheTTL(), log), cache.Close, nil
}

// explain adds the retry message to evaluation errors caused by bad records
func explain(err error) error {
	var inputErr *maintenance.InvalidInputError
	if errors.As(err, &inputErr) {
		return fmt.Errorf("%w\n%s", err, server.RetryMessage)
	}
	return err
}

