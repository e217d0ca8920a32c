package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jgoulah/assetwatch/pkg/models"
)

var listSource string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored events per asset",
	Long:  `Displays how many usage and maintenance events are stored for every asset.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listSource, "source", "", "Filter by log (usage or maintenance)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	var source models.Source
	switch strings.ToLower(listSource) {
	case "":
	case "usage":
		source = models.SourceUsage
	case "maintenance":
		source = models.SourceMaintenance
	default:
		return fmt.Errorf("invalid --source %q (use usage or maintenance)", listSource)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	counts, err := db.CountByAsset(cmd.Context(), source)
	if err != nil {
		return fmt.Errorf("counting events: %w", err)
	}
	if len(counts) == 0 {
		fmt.Println("No events found")
		return nil
	}

	fmt.Println("------------------------------------------------------------------------")
	fmt.Printf("%-20s  %-12s  %-12s  %10s  %s\n", "Category", "Asset", "Log", "Events", "Last event")
	fmt.Println("------------------------------------------------------------------------")

	total := 0
	for _, c := range counts {
		fmt.Printf("%-20s  %-12s  %-12s  %10s  %s\n",
			c.AssetCategory, c.AssetCode, strings.ToLower(string(c.Source)),
			humanize.Comma(int64(c.Count)), humanize.Time(c.LastEventAt))
		total += c.Count
	}

	fmt.Println("------------------------------------------------------------------------")
	fmt.Printf("Total: %s events (%d asset/log pairs)\n", humanize.Comma(int64(total)), len(counts))
	return nil
}
