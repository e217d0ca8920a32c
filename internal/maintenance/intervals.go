package maintenance

import (
	"math"
	"sort"
	"time"

	"github.com/jgoulah/assetwatch/pkg/models"
)

// Key identifies an asset/product pairing. ProductID is empty for rows of
// assets without any registered product.
type Key struct {
	AssetCode string
	ProductID string
}

// usageIndex is the per-asset view of the usage stream the reconstructor joins against
type usageIndex struct {
	byDay    map[string]float64 // calendar date -> max reading that day
	minHM    float64
	earliest time.Time
}

func indexUsage(records []models.UsageRecord) map[string]*usageIndex {
	idx := make(map[string]*usageIndex)
	for _, u := range records {
		ui, ok := idx[u.AssetCode]
		if !ok {
			ui = &usageIndex{byDay: make(map[string]float64), minHM: u.HourMeter, earliest: u.UsedAt}
			idx[u.AssetCode] = ui
		}
		day := dayKey(u.UsedAt)
		if cur, seen := ui.byDay[day]; !seen || u.HourMeter > cur {
			ui.byDay[day] = u.HourMeter
		}
		if u.HourMeter < ui.minHM {
			ui.minHM = u.HourMeter
		}
		ui.earliest = minTime(ui.earliest, u.UsedAt)
	}
	return idx
}

// Reconstruct computes the service interval statistics of every asset/product
// pairing that has at least one maintenance event.
func Reconstruct(s Streams, v Variant) map[Key]models.ServiceIntervalStat {
	usage := indexUsage(s.Usage)

	groups := make(map[Key][]models.MaintenanceEvent)
	for _, m := range s.Maintenance {
		key := Key{AssetCode: m.AssetCode, ProductID: m.ProductID}
		groups[key] = append(groups[key], m)
	}

	stats := make(map[Key]models.ServiceIntervalStat, len(groups))
	for key, events := range groups {
		stats[key] = reconstructGroup(key, events, usage[key.AssetCode], v)
	}
	return stats
}

// reference returns the value on the interval axis at which ev happened, and
// whether ev could be joined to the usage log at all
func reference(ev models.MaintenanceEvent, usage *usageIndex, v Variant) (float64, bool) {
	if v == Calendar {
		return civilDays(ev.ServicedAt), true
	}
	if usage == nil {
		return 0, false
	}
	reading, ok := usage.byDay[dayKey(ev.ServicedAt)]
	if !ok {
		return 0, false
	}
	if ev.LinkedUsageHourMeter != nil {
		return *ev.LinkedUsageHourMeter, true
	}
	return reading, true
}

// serviceReading is the hour meter at which ev happened: the reading of the
// assignment that closed it, else the usage reading of that day
func serviceReading(ev models.MaintenanceEvent, usage *usageIndex) (float64, bool) {
	if ev.LinkedUsageHourMeter != nil {
		return *ev.LinkedUsageHourMeter, true
	}
	if usage == nil {
		return 0, false
	}
	reading, ok := usage.byDay[dayKey(ev.ServicedAt)]
	return reading, ok
}

func reconstructGroup(key Key, events []models.MaintenanceEvent, usage *usageIndex, v Variant) models.ServiceIntervalStat {
	stat := models.ServiceIntervalStat{AssetCode: key.AssetCode, ProductID: key.ProductID}

	serviced := make(map[string]struct{})
	refs := make(map[string]float64)
	var linkedMax *float64
	for _, ev := range events {
		day := dayKey(ev.ServicedAt)
		serviced[day] = struct{}{}
		stat.LatestMaintainedAt = maxTime(stat.LatestMaintainedAt, ev.ServicedAt)
		if ev.LinkedUsageHourMeter != nil {
			linkedMax = maxPtr(linkedMax, *ev.LinkedUsageHourMeter)
		}

		// purchases without a registered product have no interval of their own
		if key.ProductID == "" {
			continue
		}
		ref, ok := reference(ev, usage, v)
		if !ok {
			continue
		}
		if cur, seen := refs[day]; !seen || ref > cur {
			refs[day] = ref
		}
	}
	stat.ServiceCount = len(serviced)
	switch {
	case v == Calendar:
		stat.LatestMaintainedHourMeter = linkedMax
	case key.ProductID != "":
		// the latest service counts even when it is excluded from the interval
		for _, ev := range events {
			if !ev.ServicedAt.Equal(stat.LatestMaintainedAt) {
				continue
			}
			if reading, ok := serviceReading(ev, usage); ok {
				stat.LatestMaintainedHourMeter = maxPtr(stat.LatestMaintainedHourMeter, reading)
			}
		}
	}
	if len(refs) == 0 {
		return stat
	}

	days := make([]string, 0, len(refs))
	for day := range refs {
		days = append(days, day)
	}
	sort.Strings(days)

	// the earliest known reading of the whole group is the implicit first baseline
	baseline := refs[days[0]]
	for _, r := range refs {
		baseline = math.Min(baseline, r)
	}
	if usage != nil {
		if v == Calendar {
			baseline = math.Min(baseline, civilDays(usage.earliest))
		} else {
			baseline = math.Min(baseline, usage.minHM)
		}
	}

	var sum float64
	for i, day := range days {
		if i == 0 {
			sum += refs[day] - baseline
		} else {
			sum += refs[day] - refs[days[i-1]]
		}
	}
	avg := math.Round(sum / float64(len(days)))
	stat.AvgInterval = &avg
	return stat
}
