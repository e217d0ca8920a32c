package maintenance

import (
	"sort"
	"time"

	"github.com/jgoulah/assetwatch/pkg/models"
)

// Facts are the merged per-key values the decision table looks at
type Facts struct {
	HasProduct     bool     // the row names a registered product
	HasUsage       bool     // the asset appears in the usage log
	HasMaintenance bool     // the asset appears in the maintenance log
	After          *float64 // usage elapsed since the latest service
	Avg            *float64 // average service interval
}

type rule struct {
	status models.Status
	match  func(f Facts, threshold float64) bool
}

// rules is evaluated top to bottom; the first match wins
var rules = []rule{
	{models.StatusNeededService, func(f Facts, _ float64) bool {
		return f.After != nil && f.Avg != nil && *f.After > *f.Avg
	}},
	{models.StatusIncomingService, func(f Facts, threshold float64) bool {
		return f.After != nil && f.Avg != nil && *f.After >= *f.Avg-threshold && *f.After <= *f.Avg
	}},
	{models.StatusGoodCondition, func(f Facts, _ float64) bool {
		return f.After != nil && f.Avg != nil && *f.After < *f.Avg
	}},
	{models.StatusProductNotRegistered, func(f Facts, _ float64) bool {
		return !f.HasProduct && f.HasUsage && f.HasMaintenance
	}},
	{models.StatusAssetNotInUsageLog, func(f Facts, _ float64) bool {
		return !f.HasUsage && f.After == nil
	}},
	{models.StatusAssetNotInMaintenanceLog, func(f Facts, _ float64) bool {
		return !f.HasMaintenance && f.After == nil
	}},
	{models.StatusIntervalUnknown, func(f Facts, _ float64) bool {
		return f.HasUsage && f.HasMaintenance && (f.Avg == nil || f.After == nil)
	}},
}

// ClassifyRow assigns the status of one key. StatusUnknown is returned when
// no rule applies.
func ClassifyRow(f Facts, threshold float64) models.Status {
	for _, r := range rules {
		if r.match(f, threshold) {
			return r.status
		}
	}
	return models.StatusUnknown
}

type usageSnapshot struct {
	category     string
	latestAt     time.Time
	maxHourMeter float64
}

type maintenanceMeta struct {
	category    string
	assetName   string
	productName string
}

// Classify merges the latest usage and maintenance facts of every key and
// labels it. Every asset present in either stream yields at least one row.
func Classify(s Streams, stats map[Key]models.ServiceIntervalStat, p Policy) []models.AssetStatusRow {
	usage := make(map[string]*usageSnapshot)
	for _, u := range s.Usage {
		snap, ok := usage[u.AssetCode]
		if !ok {
			usage[u.AssetCode] = &usageSnapshot{category: u.AssetCategory, latestAt: u.UsedAt, maxHourMeter: u.HourMeter}
			continue
		}
		snap.latestAt = maxTime(snap.latestAt, u.UsedAt)
		if u.HourMeter > snap.maxHourMeter {
			snap.maxHourMeter = u.HourMeter
		}
	}

	// s.Maintenance is ordered by date within a key, so the last write is the latest
	meta := make(map[Key]maintenanceMeta)
	maintained := make(map[string]bool)
	for _, m := range s.Maintenance {
		key := Key{AssetCode: m.AssetCode, ProductID: m.ProductID}
		meta[key] = maintenanceMeta{category: m.AssetCategory, assetName: m.AssetName, productName: m.ProductName}
		maintained[m.AssetCode] = true
	}

	keys := make([]Key, 0, len(stats)+len(usage))
	for key := range stats {
		keys = append(keys, key)
		maintained[key.AssetCode] = true
	}
	for code := range usage {
		if !maintained[code] {
			keys = append(keys, Key{AssetCode: code})
		}
	}

	rows := make([]models.AssetStatusRow, 0, len(keys))
	for _, key := range keys {
		row := buildRow(key, s, stats, meta, usage, maintained, p)
		if row.Empty() {
			continue
		}
		rows = append(rows, row)
	}
	SortRows(rows)
	return rows
}

func buildRow(
	key Key,
	s Streams,
	stats map[Key]models.ServiceIntervalStat,
	meta map[Key]maintenanceMeta,
	usage map[string]*usageSnapshot,
	maintained map[string]bool,
	p Policy,
) models.AssetStatusRow {
	row := models.AssetStatusRow{AssetCode: key.AssetCode, ProductID: key.ProductID}
	facts := Facts{HasProduct: key.ProductID != "", HasMaintenance: maintained[key.AssetCode]}

	if m, ok := meta[key]; ok {
		row.AssetCategory = m.category
		row.AssetName = m.assetName
		row.ProductName = m.productName
	}

	snap, hasUsage := usage[key.AssetCode]
	if hasUsage {
		facts.HasUsage = true
		if row.AssetCategory == "" {
			row.AssetCategory = snap.category
		}
		usedAt := snap.latestAt
		row.LatestAssetUsedAt = &usedAt
		row.LatestUsedHourMeter = models.Float(snap.maxHourMeter)
	}
	if row.AssetName == "" {
		row.AssetName = s.AssetNames[key.AssetCode]
	}

	if stat, ok := stats[key]; ok {
		count := stat.ServiceCount
		row.ServiceCount = &count
		if !stat.LatestMaintainedAt.IsZero() {
			at := stat.LatestMaintainedAt
			row.LatestMaintainedAt = &at
		}
		row.LatestMaintainedHourMeter = stat.LatestMaintainedHourMeter
		row.AvgServiceInterval = stat.AvgInterval
		facts.Avg = stat.AvgInterval
	}

	row.HoursAfterMaintained = elapsedSinceService(row, p.Variant)
	facts.After = row.HoursAfterMaintained
	row.Status = ClassifyRow(facts, p.Threshold)
	return row
}

func elapsedSinceService(row models.AssetStatusRow, v Variant) *float64 {
	if v == Calendar {
		if row.LatestAssetUsedAt == nil || row.LatestMaintainedAt == nil {
			return nil
		}
		return models.Float(civilDays(*row.LatestAssetUsedAt) - civilDays(*row.LatestMaintainedAt))
	}
	if row.LatestUsedHourMeter == nil || row.LatestMaintainedHourMeter == nil {
		return nil
	}
	return models.Float(*row.LatestUsedHourMeter - *row.LatestMaintainedHourMeter)
}

// SortRows orders rows by status, then category, asset code, product name and id
func SortRows(rows []models.AssetStatusRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ra, rb := a.Status.Rank(), b.Status.Rank(); ra != rb {
			return ra < rb
		}
		if a.AssetCategory != b.AssetCategory {
			return a.AssetCategory < b.AssetCategory
		}
		if a.AssetCode != b.AssetCode {
			return a.AssetCode < b.AssetCode
		}
		if a.ProductName != b.ProductName {
			return a.ProductName < b.ProductName
		}
		return a.ProductID < b.ProductID
	})
}
