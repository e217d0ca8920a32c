package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jgoulah/assetwatch/internal/config"
	"github.com/jgoulah/assetwatch/internal/database"
	"github.com/jgoulah/assetwatch/internal/maintenance"
	"github.com/jgoulah/assetwatch/internal/metrics"
	"github.com/jgoulah/assetwatch/internal/server"
	"github.com/jgoulah/assetwatch/pkg/models"
)

// session bundles what a reporting command needs to evaluate the stored log
type session struct {
	cfg    *config.Config
	log    *zap.Logger
	db     *database.DB
	engine *maintenance.Engine
	events []models.Event
}

func openSession(ctx context.Context, m *metrics.Metrics) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	engine, err := newEngine(cfg, log, m)
	if err != nil {
		return nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	source, closeCache, err := eventSource(ctx, cfg, db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	defer closeCache() //nolint:errcheck

	events, err := source.Events(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &session{cfg: cfg, log: log, db: db, engine: engine, events: events}, nil
}

func (s *session) Close() {
	_ = s.log.Sync()
	s.db.Close()
}

// filterFlags are shared by every reporting command
type filterFlags struct {
	categories []string
	assets     []string
	products   []string
	statuses   []string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVar(&f.categories, "category", nil, "Only include this asset category (repeatable)")
	flags.StringSliceVar(&f.assets, "asset", nil, "Only include these asset codes")
	flags.StringArrayVar(&f.products, "product", nil, "Only show rows for this product name (repeatable)")
	flags.StringSliceVar(&f.statuses, "status", nil, `Only show rows with these statuses ("unknown" for unclassified rows)`)
}

func (f *filterFlags) filter() (maintenance.Filter, error) {
	filter := maintenance.Filter{
		Categories:   f.categories,
		AssetCodes:   f.assets,
		ProductNames: f.products,
	}
	for _, label := range f.statuses {
		status, err := server.ParseStatusParam(label)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	return filter, nil
}
