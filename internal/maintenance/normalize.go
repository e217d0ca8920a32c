package maintenance

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jgoulah/assetwatch/pkg/models"
)

// Streams holds the two typed event streams split out of the unified log
type Streams struct {
	Usage       []models.UsageRecord
	Maintenance []models.MaintenanceEvent

	// AssetNames maps asset code to the first non-empty name seen in the log
	AssetNames map[string]string
}

// Normalize validates the raw log and partitions it into usage records and
// maintenance events. The input slice is not modified.
func Normalize(events []models.Event) (Streams, error) {
	if err := Validate(events); err != nil {
		return Streams{}, err
	}

	streams := Streams{AssetNames: make(map[string]string)}
	for _, ev := range events {
		if _, ok := streams.AssetNames[ev.AssetCode]; !ok && strings.TrimSpace(ev.AssetName) != "" {
			streams.AssetNames[ev.AssetCode] = ev.AssetName
		}
	}

	streams.Usage = normalizeUsage(events)
	streams.Maintenance = normalizeMaintenance(events)
	return streams, nil
}

// Validate rejects events that cannot be binned reliably
func Validate(events []models.Event) error {
	for i, ev := range events {
		record := fmt.Sprintf("event %d", i)
		if ev.ID != 0 {
			record = fmt.Sprintf("event %d (id %d)", i, ev.ID)
		}

		if ev.Source != models.SourceUsage && ev.Source != models.SourceMaintenance {
			return &InvalidInputError{Record: record, Field: "source", Value: string(ev.Source), Reason: "unknown source"}
		}
		if strings.TrimSpace(ev.AssetCode) == "" {
			return &InvalidInputError{Record: record, Field: "asset_code", Reason: "missing asset code"}
		}
		if ev.EventDate.IsZero() {
			return &InvalidInputError{Record: record, Field: "event_date", Reason: "missing or unparsable date"}
		}
		numerics := []struct {
			field string
			value *float64
		}{
			{"quantity", ev.Quantity},
			{"price", ev.Price},
			{"hour_meter_reading", ev.HourMeterReading},
		}
		for _, n := range numerics {
			if n.value != nil && (math.IsNaN(*n.value) || math.IsInf(*n.value, 0)) {
				return &InvalidInputError{Record: record, Field: n.field, Value: fmt.Sprint(*n.value), Reason: "not a finite number"}
			}
		}
	}
	return nil
}

func categoryOf(ev models.Event) string {
	if c := strings.TrimSpace(ev.AssetCategory); c != "" {
		return c
	}
	return models.UnknownCategory
}

type usageKey struct {
	category string
	code     string
	at       int64
}

func normalizeUsage(events []models.Event) []models.UsageRecord {
	latest := make(map[usageKey]*models.UsageRecord)
	for _, ev := range events {
		if ev.Source != models.SourceUsage || ev.HourMeterReading == nil {
			continue
		}
		key := usageKey{category: categoryOf(ev), code: ev.AssetCode, at: ev.EventDate.UnixNano()}
		if rec, ok := latest[key]; ok {
			// several readings logged for the same instant collapse to the highest
			if *ev.HourMeterReading > rec.HourMeter {
				rec.HourMeter = *ev.HourMeterReading
			}
			continue
		}
		latest[key] = &models.UsageRecord{
			AssetCategory: key.category,
			AssetCode:     ev.AssetCode,
			UsedAt:        ev.EventDate,
			HourMeter:     *ev.HourMeterReading,
		}
	}

	out := make([]models.UsageRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AssetCategory != b.AssetCategory {
			return a.AssetCategory < b.AssetCategory
		}
		if a.AssetCode != b.AssetCode {
			return a.AssetCode < b.AssetCode
		}
		return a.UsedAt.Before(b.UsedAt)
	})
	return out
}

type maintenanceKey struct {
	category    string
	code        string
	assetName   string
	productID   string
	productName string
	day         string
}

type maintenanceAgg struct {
	event    models.MaintenanceEvent
	groupIDs map[string]struct{}
}

// isLinkOnly reports rows that only close a purchase (the service assignment) and
// carry no product of their own
func isLinkOnly(ev models.Event) bool {
	return ev.ProductID == "" && ev.ProductName == "" && ev.LinkedGroupID != ""
}

func normalizeMaintenance(events []models.Event) []models.MaintenanceEvent {
	// hour meter recorded on the assignment that closed each purchase group
	linked := make(map[string]float64)
	for _, ev := range events {
		if ev.Source != models.SourceMaintenance || ev.LinkedGroupID == "" || ev.HourMeterReading == nil {
			continue
		}
		if cur, ok := linked[ev.LinkedGroupID]; !ok || *ev.HourMeterReading > cur {
			linked[ev.LinkedGroupID] = *ev.HourMeterReading
		}
	}

	aggs := make(map[maintenanceKey]*maintenanceAgg)
	for _, ev := range events {
		if ev.Source != models.SourceMaintenance || isLinkOnly(ev) {
			continue
		}
		key := maintenanceKey{
			category:    categoryOf(ev),
			code:        ev.AssetCode,
			assetName:   ev.AssetName,
			productID:   ev.ProductID,
			productName: ev.ProductName,
			day:         dayKey(ev.EventDate),
		}
		agg, ok := aggs[key]
		if !ok {
			agg = &maintenanceAgg{
				event: models.MaintenanceEvent{
					AssetCategory: key.category,
					AssetCode:     ev.AssetCode,
					AssetName:     ev.AssetName,
					ProductID:     ev.ProductID,
					ProductName:   ev.ProductName,
					ServicedAt:    startOfDay(ev.EventDate),
				},
				groupIDs: make(map[string]struct{}),
			}
			aggs[key] = agg
		}
		if ev.Quantity != nil {
			agg.event.Quantity += *ev.Quantity
		}
		if ev.Price != nil {
			agg.event.Cost += *ev.Price
		}
		if ev.MaintenanceGroupID != "" {
			agg.groupIDs[ev.MaintenanceGroupID] = struct{}{}
		}
		if ev.HourMeterReading != nil {
			agg.event.LinkedUsageHourMeter = maxPtr(agg.event.LinkedUsageHourMeter, *ev.HourMeterReading)
		}
	}

	out := make([]models.MaintenanceEvent, 0, len(aggs))
	for _, agg := range aggs {
		for id := range agg.groupIDs {
			if hm, ok := linked[id]; ok {
				agg.event.LinkedUsageHourMeter = maxPtr(agg.event.LinkedUsageHourMeter, hm)
			}
		}
		out = append(out, agg.event)
	}
	sort.Slice(out, func(i, j int) bool {
		return lessMaintenance(out[i], out[j])
	})
	return out
}

func lessMaintenance(a, b models.MaintenanceEvent) bool {
	if a.AssetCategory != b.AssetCategory {
		return a.AssetCategory < b.AssetCategory
	}
	if a.AssetCode != b.AssetCode {
		return a.AssetCode < b.AssetCode
	}
	if a.ProductID != b.ProductID {
		return a.ProductID < b.ProductID
	}
	if !a.ServicedAt.Equal(b.ServicedAt) {
		return a.ServicedAt.Before(b.ServicedAt)
	}
	if a.AssetName != b.AssetName {
		return a.AssetName < b.AssetName
	}
	return a.ProductName < b.ProductName
}

func maxPtr(cur *float64, v float64) *float64 {
	if cur == nil || v > *cur {
		return models.Float(v)
	}
	return cur
}

func minTime(a, b time.Time) time.Time {
	if a.IsZero() || b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
