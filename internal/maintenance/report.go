package maintenance

import (
	"sort"
	"strconv"

	"github.com/jgoulah/assetwatch/pkg/models"
)

// DefaultTopN is the default leaderboard length
const DefaultTopN = 10

// LeaderboardEntry counts the products of one asset that need service
type LeaderboardEntry struct {
	AssetCategory string `json:"asset_category"`
	AssetCode     string `json:"asset_code"`
	AssetName     string `json:"asset_name"`
	Count         int    `json:"count"`
}

// Leaderboard ranks assets by how many of their rows are "Needed service".
// n <= 0 returns every asset.
func Leaderboard(rows []models.AssetStatusRow, n int) []LeaderboardEntry {
	type key struct{ category, code, name string }
	counts := make(map[key]int)
	for _, row := range rows {
		if row.Status != models.StatusNeededService {
			continue
		}
		counts[key{row.AssetCategory, row.AssetCode, row.AssetName}]++
	}

	out := make([]LeaderboardEntry, 0, len(counts))
	for k, c := range counts {
		out = append(out, LeaderboardEntry{AssetCategory: k.category, AssetCode: k.code, AssetName: k.name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.AssetCode != b.AssetCode {
			return a.AssetCode < b.AssetCode
		}
		if a.AssetCategory != b.AssetCategory {
			return a.AssetCategory < b.AssetCategory
		}
		return a.AssetName < b.AssetName
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// LegendEntry explains one status label
type LegendEntry struct {
	Status      models.Status `json:"status"`
	Description string        `json:"description"`
}

// Legend describes every status in display order for the given policy
func Legend(p Policy) []LegendEntry {
	unit := p.Variant.Unit()
	source := "the latest hour-meter reading"
	if p.Variant == Calendar {
		source = "the latest usage date"
	}
	descriptions := map[models.Status]string{
		models.StatusNeededService:            "Products that have surpassed their average service interval and require maintenance.",
		models.StatusIncomingService:          "Products approaching their average service interval within the next " + formatThreshold(p.Threshold) + " " + unit + ", measured from " + source + ".",
		models.StatusGoodCondition:            "Products within their average service interval that do not require immediate maintenance.",
		models.StatusProductNotRegistered:     "Usage is recorded for the asset but this row has no registered product in the maintenance log.",
		models.StatusAssetNotInUsageLog:       "The asset has maintenance records but no usage records, so elapsed usage cannot be computed.",
		models.StatusAssetNotInMaintenanceLog: "The asset has usage records but no maintenance records at all.",
		models.StatusIntervalUnknown:          "Both logs know the asset, but no service could be matched to a usage reading to derive an interval.",
		models.StatusUnknown:                  "No classification rule applied.",
	}

	out := make([]LegendEntry, 0, len(models.StatusOrder))
	for _, s := range models.StatusOrder {
		out = append(out, LegendEntry{Status: s, Description: descriptions[s]})
	}
	return out
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Summary counts categories and assets across both logs
type Summary struct {
	Categories           int `json:"categories"`
	CategoriesMaintained int `json:"categories_maintained"`
	CategoriesUsed       int `json:"categories_used"`
	Assets               int `json:"assets"`
	AssetsMaintained     int `json:"assets_maintained"`
	AssetsUsed           int `json:"assets_used"`
}

// Summarize counts distinct categories and assets, overall and per log
func Summarize(events []models.Event, f Filter) (Summary, error) {
	events = selectEvents(events, f)
	if err := Validate(events); err != nil {
		return Summary{}, err
	}

	categories := map[models.Source]map[string]bool{
		models.SourceUsage:       {},
		models.SourceMaintenance: {},
	}
	assets := map[models.Source]map[string]bool{
		models.SourceUsage:       {},
		models.SourceMaintenance: {},
	}
	allCategories := make(map[string]bool)
	allAssets := make(map[string]bool)
	for _, ev := range events {
		category := categoryOf(ev)
		categories[ev.Source][category] = true
		assets[ev.Source][ev.AssetCode] = true
		allCategories[category] = true
		allAssets[ev.AssetCode] = true
	}

	return Summary{
		Categories:           len(allCategories),
		CategoriesMaintained: len(categories[models.SourceMaintenance]),
		CategoriesUsed:       len(categories[models.SourceUsage]),
		Assets:               len(allAssets),
		AssetsMaintained:     len(assets[models.SourceMaintenance]),
		AssetsUsed:           len(assets[models.SourceUsage]),
	}, nil
}
