package maintenance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jgoulah/assetwatch/pkg/models"
)

// GroupBy selects the series a trend is split into
type GroupBy int

const (
	ByAsset GroupBy = iota
	ByCategory
)

// ParseGroupBy accepts "asset" (default) or "category"
func ParseGroupBy(name string) (GroupBy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "asset", "assets":
		return ByAsset, nil
	case "category", "categories":
		return ByCategory, nil
	default:
		return ByAsset, fmt.Errorf("unknown grouping: %s (available: asset, category)", name)
	}
}

func (g GroupBy) String() string {
	if g == ByCategory {
		return "category"
	}
	return "asset"
}

// TrendPoint is the maintenance spend and work hours of one series in one period
type TrendPoint struct {
	Period    string  `json:"period"`
	Group     string  `json:"group"`
	Cost      float64 `json:"cost"`
	Quantity  float64 `json:"quantity"`
	WorkHours float64 `json:"work_hours"`
}

// Trend buckets maintenance cost and hour-meter work per period. Work hours are
// the positive deltas between consecutive readings of an asset; a drop in the
// meter is treated as a reset and contributes nothing. The product selection of
// f only narrows the maintenance side.
func Trend(events []models.Event, f Filter, b Bucket, by GroupBy) ([]TrendPoint, error) {
	streams, err := Normalize(selectEvents(events, f))
	if err != nil {
		return nil, err
	}

	type key struct{ period, group string }
	points := make(map[key]*TrendPoint)
	point := func(period, group string) *TrendPoint {
		k := key{period, group}
		p, ok := points[k]
		if !ok {
			p = &TrendPoint{Period: period, Group: group}
			points[k] = p
		}
		return p
	}
	groupOf := func(category, code string) string {
		if by == ByCategory {
			return category
		}
		return code
	}

	products := toSet(f.ProductNames)
	for _, m := range streams.Maintenance {
		if products != nil && !products[m.ProductName] {
			continue
		}
		p := point(b.Label(m.ServicedAt), groupOf(m.AssetCategory, m.AssetCode))
		p.Cost += m.Cost
		p.Quantity += m.Quantity
	}

	byAsset := make(map[string][]models.UsageRecord)
	for _, u := range streams.Usage {
		byAsset[u.AssetCode] = append(byAsset[u.AssetCode], u)
	}
	for _, readings := range byAsset {
		sort.Slice(readings, func(i, j int) bool {
			return readings[i].UsedAt.Before(readings[j].UsedAt)
		})
		for i, u := range readings {
			p := point(b.Label(u.UsedAt), groupOf(u.AssetCategory, u.AssetCode))
			if i == 0 {
				continue
			}
			if delta := u.HourMeter - readings[i-1].HourMeter; delta > 0 {
				p.WorkHours += delta
			}
		}
	}

	out := make([]TrendPoint, 0, len(points))
	for _, p := range points {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Period < out[j].Period
	})
	return out, nil
}
