package models

import (
	"encoding/json"
	"time"
)

// Status is the maintenance-urgency label of an asset/product pairing.
// The zero value means no rule matched and encodes as JSON null.
type Status string

const (
	StatusUnknown                  Status = ""
	StatusNeededService            Status = "Needed service"
	StatusIncomingService          Status = "Incoming Service"
	StatusGoodCondition            Status = "Good condition"
	StatusProductNotRegistered     Status = "Product not registered in maintenance log"
	StatusAssetNotInUsageLog       Status = "Asset not registered in usage log"
	StatusAssetNotInMaintenanceLog Status = "Asset not registered in maintenance log"
	StatusIntervalUnknown          Status = "Service interval unknown"
)

// StatusOrder is the display order of the status column
var StatusOrder = []Status{
	StatusNeededService,
	StatusIncomingService,
	StatusGoodCondition,
	StatusProductNotRegistered,
	StatusAssetNotInUsageLog,
	StatusAssetNotInMaintenanceLog,
	StatusIntervalUnknown,
	StatusUnknown,
}

// Rank returns the position of s in StatusOrder
func (s Status) Rank() int {
	for i, v := range StatusOrder {
		if v == s {
			return i
		}
	}
	return len(StatusOrder)
}

// ParseStatus matches a label case-sensitively against the known statuses
func ParseStatus(label string) (Status, bool) {
	for _, s := range StatusOrder {
		if string(s) == label {
			return s, true
		}
	}
	return StatusUnknown, false
}

func (s Status) MarshalJSON() ([]byte, error) {
	if s == StatusUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *Status) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = StatusUnknown
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	*s = Status(label)
	return nil
}

// ServiceIntervalStat summarises how often a product is serviced on an asset
type ServiceIntervalStat struct {
	AssetCode                 string    `json:"asset_code"`
	ProductID                 string    `json:"product_id"`
	ServiceCount              int       `json:"service_count"`
	AvgInterval               *float64  `json:"avg_interval"`
	LatestMaintainedAt        time.Time `json:"latest_maintained_at"`
	LatestMaintainedHourMeter *float64  `json:"latest_maintained_hour_meter"`
}

// AssetStatusRow is one classified row of the status table
type AssetStatusRow struct {
	AssetCategory             string     `json:"asset_category"`
	AssetCode                 string     `json:"asset_code"`
	AssetName                 string     `json:"asset_name"`
	ProductID                 string     `json:"product_id,omitempty"`
	ProductName               string     `json:"product_name,omitempty"`
	Status                    Status     `json:"status"`
	ServiceCount              *int       `json:"service_count"`
	LatestMaintainedAt        *time.Time `json:"latest_maintained_at"`
	LatestMaintainedHourMeter *float64   `json:"latest_maintained_hour_meter"`
	LatestAssetUsedAt         *time.Time `json:"latest_asset_used_at"`
	LatestUsedHourMeter       *float64   `json:"latest_used_hour_meter"`
	HoursAfterMaintained      *float64   `json:"hours_or_days_after_maintained"`
	AvgServiceInterval        *float64   `json:"avg_service_interval"`
}

// Empty reports whether the row carries no data at all
func (r AssetStatusRow) Empty() bool {
	return r.AssetCategory == "" && r.AssetCode == "" && r.AssetName == "" &&
		r.ProductID == "" && r.ProductName == "" && r.Status == StatusUnknown &&
		r.ServiceCount == nil && r.LatestMaintainedAt == nil && r.LatestMaintainedHourMeter == nil &&
		r.LatestAssetUsedAt == nil && r.LatestUsedHourMeter == nil &&
		r.HoursAfterMaintained == nil && r.AvgServiceInterval == nil
}
