package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jgoulah/assetwatch/internal/maintenance"
	"github.com/jgoulah/assetwatch/pkg/models"
)

var (
	statusFilters  filterFlags
	statusPage     int
	statusPageSize int
	statusNoColor  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the maintenance status table",
	Long: `Evaluates the stored event log and prints one row per asset/product pairing,
ordered by urgency. Rows are paginated; use --page to move through them.`,
	RunE: runStatus,
}

func init() {
	statusFilters.register(statusCmd)
	statusCmd.Flags().IntVar(&statusPage, "page", 0, "Zero-based page number")
	statusCmd.Flags().IntVar(&statusPageSize, "page-size", 0, "Rows per page (default from config)")
	statusCmd.Flags().BoolVar(&statusNoColor, "no-color", false, "Disable colored output")
	rootCmd.AddCommand(statusCmd)
}

var statusColors = map[models.Status]*color.Color{
	models.StatusNeededService:            color.New(color.FgRed, color.Bold),
	models.StatusIncomingService:          color.New(color.FgYellow),
	models.StatusGoodCondition:            color.New(color.FgGreen),
	models.StatusProductNotRegistered:     color.New(color.FgMagenta),
	models.StatusAssetNotInUsageLog:       color.New(color.FgCyan),
	models.StatusAssetNotInMaintenanceLog: color.New(color.FgCyan),
	models.StatusIntervalUnknown:          color.New(color.FgHiBlack),
}

// statusText renders a status label padded to width
func statusText(s models.Status, width int) string {
	label := string(s)
	if s == models.StatusUnknown {
		label = "(unclassified)"
	}
	padded := fmt.Sprintf("%-*s", width, label)
	if c, ok := statusColors[s]; ok {
		return c.Sprint(padded)
	}
	return padded
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return humanize.CommafWithDigits(*v, 1)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusNoColor {
		color.NoColor = true
	}
	filter, err := statusFilters.filter()
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer s.Close()

	size := statusPageSize
	if size <= 0 {
		size = s.cfg.GetPageSize()
	}
	rows, total, err := s.engine.ComputeStatus(s.events, filter, maintenance.Page{Number: statusPage, Size: size})
	if err != nil {
		return explain(err)
	}
	if total == 0 {
		fmt.Println("No assets match the given filters")
		return nil
	}

	policy := s.engine.Policy()
	unit := policy.Variant.Unit()
	fmt.Println("--------------------------------------------------------------------------------------------------------------")
	fmt.Printf("%-42s  %-14s  %-10s  %-20s  %10s  %10s  %8s\n",
		"Status", "Category", "Asset", "Product", "After ("+unit+")", "Avg", "Services")
	fmt.Println("--------------------------------------------------------------------------------------------------------------")
	for _, row := range rows {
		services := "-"
		if row.ServiceCount != nil {
			services = fmt.Sprint(*row.ServiceCount)
		}
		product := row.ProductName
		if product == "" {
			product = row.ProductID
		}
		fmt.Printf("%s  %-14s  %-10s  %-20s  %10s  %10s  %8s\n",
			statusText(row.Status, 42), row.AssetCategory, row.AssetCode, product,
			formatValue(row.HoursAfterMaintained), formatValue(row.AvgServiceInterval), services)
	}
	fmt.Println("--------------------------------------------------------------------------------------------------------------")
	fmt.Printf("Page %d of %d (%s rows)\n", statusPage+1, maintenance.TotalPages(total, size), humanize.Comma(int64(total)))
	return nil
}
