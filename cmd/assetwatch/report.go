package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/assetwatch/internal/maintenance"
)

var (
	reportFilters filterFlags
	leaderboardN  int
	trendBucket   string
	trendBy       string
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Rank assets by how many products need service",
	RunE:  runLeaderboard,
}

var legendCmd = &cobra.Command{
	Use:   "legend",
	Short: "Explain every status label",
	RunE:  runLegend,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count categories and assets in the stored logs",
	RunE:  runSummary,
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Show maintenance cost and work hours per period",
	Long: `Aggregates maintenance cost, purchased quantity and hour-meter increase per
period (day, week, month, quarter, semester or year), grouped by asset or category.`,
	RunE: runTrend,
}

func init() {
	for _, cmd := range []*cobra.Command{leaderboardCmd, summaryCmd, trendCmd} {
		reportFilters.register(cmd)
	}
	leaderboardCmd.Flags().IntVar(&leaderboardN, "top", 0, "Number of assets to show (default from config)")
	trendCmd.Flags().StringVar(&trendBucket, "bucket", "", "Period size (default from config)")
	trendCmd.Flags().StringVar(&trendBy, "by", "asset", "Group by asset or category")
	rootCmd.AddCommand(leaderboardCmd, legendCmd, summaryCmd, trendCmd)
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	filter, err := reportFilters.filter()
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer s.Close()

	rows, err := s.engine.Evaluate(s.events, filter)
	if err != nil {
		return explain(err)
	}
	n := leaderboardN
	if n <= 0 {
		n = s.cfg.GetTopN()
	}
	entries := maintenance.Leaderboard(rows, n)
	if len(entries) == 0 {
		fmt.Println("No asset needs service")
		return nil
	}

	fmt.Printf("%4s  %-14s  %-10s  %-24s  %s\n", "#", "Category", "Asset", "Name", "Needed")
	for i, e := range entries {
		fmt.Printf("%4d  %-14s  %-10s  %-24s  %d\n", i+1, e.AssetCategory, e.AssetCode, e.AssetName, e.Count)
	}
	return nil
}

func runLegend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	engine, err := newEngine(cfg, log, nil)
	if err != nil {
		return err
	}

	for _, entry := range maintenance.Legend(engine.Policy()) {
		fmt.Printf("%s\n    %s\n", statusText(entry.Status, 0), entry.Description)
	}
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	filter, err := reportFilters.filter()
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := maintenance.Summarize(s.events, filter)
	if err != nil {
		return explain(err)
	}
	fmt.Printf("%-12s  %8s  %12s  %8s\n", "", "Total", "Maintenance", "Usage")
	fmt.Printf("%-12s  %8s  %12s  %8s\n", "Categories",
		humanize.Comma(int64(summary.Categories)), humanize.Comma(int64(summary.CategoriesMaintained)), humanize.Comma(int64(summary.CategoriesUsed)))
	fmt.Printf("%-12s  %8s  %12s  %8s\n", "Assets",
		humanize.Comma(int64(summary.Assets)), humanize.Comma(int64(summary.AssetsMaintained)), humanize.Comma(int64(summary.AssetsUsed)))
	return nil
}

func runTrend(cmd *cobra.Command, args []string) error {
	filter, err := reportFilters.filter()
	if err != nil {
		return err
	}
	by, err := maintenance.ParseGroupBy(trendBy)
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer s.Close()

	name := trendBucket
	if name == "" {
		name = s.cfg.GetBucket()
	}
	bucket, err := maintenance.ParseBucket(name)
	if err != nil {
		return err
	}

	points, err := maintenance.Trend(s.events, filter, bucket, by)
	if err != nil {
		return explain(err)
	}
	if len(points) == 0 {
		fmt.Println("No events match the given filters")
		return nil
	}

	fmt.Printf("%-20s  %-10s  %14s  %10s  %12s\n", by.String(), bucket.Name(), "Cost", "Quantity", "Work hours")
	for _, p := range points {
		fmt.Printf("%-20s  %-10s  %14s  %10s  %12s\n", p.Group, p.Period,
			humanize.CommafWithDigits(p.Cost, 2), humanize.CommafWithDigits(p.Quantity, 2), humanize.CommafWithDigits(p.WorkHours, 1))
	}
	return nil
}
