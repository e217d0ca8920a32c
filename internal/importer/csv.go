package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/assetwatch/internal/maintenance"
	"github.com/jgoulah/assetwatch/pkg/models"
)

// Column names of the warehouse export
const (
	colSource        = "source"
	colCategory      = "asset_category"
	colAssetCode     = "asset_code"
	colAssetName     = "asset_name"
	colProductID     = "product_id"
	colProductName   = "product_name"
	colQuantity      = "product_bought_qty"
	colPrice         = "total_price"
	colHourMeter     = "total_hour_meter"
	colHourMeterFix  = "fix_hm_record"
	colDate          = "date"
	colDueDate       = "due_date"
	colPurchaseGroup = "consume_id_good_consume"
	colAssignment    = "consume_id_assignment"
)

var required = []string{colSource, colAssetCode, colDate}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// ParseFile reads one CSV export from disk
func ParseFile(path string) ([]models.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return Parse(f, filepath.Base(path))
}

// Parse reads a CSV export with a header row. name prefixes the line locator
// of any InvalidInputError.
func Parse(r io.Reader, name string) ([]models.Event, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &maintenance.InvalidInputError{Record: locate(name, 1), Reason: "empty file"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", name, err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := columns[col]; !ok {
			return nil, &maintenance.InvalidInputError{Record: locate(name, 1), Field: col, Reason: "missing column"}
		}
	}
	var events []models.Event
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				return nil, &maintenance.InvalidInputError{Record: locate(name, parseErr.Line), Reason: parseErr.Err.Error()}
			}
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		line, _ := reader.FieldPos(0)

		row := row{columns: columns, record: record, locator: locate(name, line)}
		ev, err := row.event()
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func locate(name string, line int) string {
	if name == "" {
		return fmt.Sprintf("line %d", line)
	}
	return fmt.Sprintf("%s line %d", name, line)
}

type row struct {
	columns map[string]int
	record  []string
	locator string
}

func (r row) get(col string) string {
	i, ok := r.columns[col]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r row) number(col string) (*float64, error) {
	raw := r.get(col)
	if raw == "" || strings.EqualFold(raw, "null") || strings.EqualFold(raw, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &maintenance.InvalidInputError{Record: r.locator, Field: col, Value: raw, Reason: "not a number"}
	}
	return &v, nil
}

func (r row) event() (models.Event, error) {
	ev := models.Event{
		AssetCategory:      r.get(colCategory),
		AssetCode:          r.get(colAssetCode),
		AssetName:          r.get(colAssetName),
		ProductID:          r.get(colProductID),
		ProductName:        r.get(colProductName),
		MaintenanceGroupID: r.get(colPurchaseGroup),
		LinkedGroupID:      r.get(colAssignment),
	}

	source, err := parseSource(r.get(colSource))
	if err != nil {
		return ev, &maintenance.InvalidInputError{Record: r.locator, Field: colSource, Value: r.get(colSource), Reason: err.Error()}
	}
	ev.Source = source

	if ev.AssetCode == "" {
		return ev, &maintenance.InvalidInputError{Record: r.locator, Field: colAssetCode, Reason: "missing asset code"}
	}

	raw := r.get(colDate)
	at, err := parseDate(raw)
	if err != nil {
		return ev, &maintenance.InvalidInputError{Record: r.locator, Field: colDate, Value: raw, Reason: "unparsable date"}
	}
	ev.EventDate = at

	if ev.Quantity, err = r.number(colQuantity); err != nil {
		return ev, err
	}
	if ev.Price, err = r.number(colPrice); err != nil {
		return ev, err
	}

	// purchases record the service hour meter and service date on fix_hm_record
	// and due_date; readings use total_hour_meter
	hourMeterCols := []string{colHourMeter, colHourMeterFix}
	if ev.Source == models.SourceMaintenance {
		hourMeterCols = []string{colHourMeterFix, colHourMeter}

		if raw := r.get(colDueDate); raw != "" {
			due, err := parseDate(raw)
			if err != nil {
				return ev, &maintenance.InvalidInputError{Record: r.locator, Field: colDueDate, Value: raw, Reason: "unparsable date"}
			}
			ev.EventDate = due
		}
	}
	for _, col := range hourMeterCols {
		if ev.HourMeterReading, err = r.number(col); err != nil {
			return ev, err
		}
		if ev.HourMeterReading != nil {
			break
		}
	}
	return ev, nil
}

func parseSource(raw string) (models.Source, error) {
	switch strings.ToLower(raw) {
	case "hm_record", "usage":
		return models.SourceUsage, nil
	case "good_consume", "maintenance":
		return models.SourceMaintenance, nil
	default:
		return "", errors.New("unknown source (expected hm_record or good_consume)")
	}
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}
