package models

import "time"

// Source identifies which log an event row came from
type Source string

const (
	SourceUsage       Source = "USAGE"       // hour-meter reading
	SourceMaintenance Source = "MAINTENANCE" // consumable purchase linked to a service
)

// UnknownCategory replaces a missing asset category
const UnknownCategory = "Unknown Category"

// Event is one row of the unified event log
type Event struct {
	ID                 int64     `json:"id,omitempty"`
	Source             Source    `json:"source"`
	AssetCategory      string    `json:"asset_category"`
	AssetCode          string    `json:"asset_code"`
	AssetName          string    `json:"asset_name"`
	ProductID          string    `json:"product_id,omitempty"`
	ProductName        string    `json:"product_name,omitempty"`
	Quantity           *float64  `json:"quantity,omitempty"`
	Price              *float64  `json:"price,omitempty"`
	HourMeterReading   *float64  `json:"hour_meter_reading,omitempty"`
	EventDate          time.Time `json:"event_date"`
	MaintenanceGroupID string    `json:"maintenance_group_id,omitempty"`
	LinkedGroupID      string    `json:"linked_group_id,omitempty"`
}

// UsageRecord is the max hour-meter reading of an asset at one timestamp
type UsageRecord struct {
	AssetCategory string    `json:"asset_category"`
	AssetCode     string    `json:"asset_code"`
	UsedAt        time.Time `json:"used_at"`
	HourMeter     float64   `json:"hour_meter"`
}

// MaintenanceEvent is the per-day aggregate of consumable purchases for one asset/product
type MaintenanceEvent struct {
	AssetCategory        string    `json:"asset_category"`
	AssetCode            string    `json:"asset_code"`
	AssetName            string    `json:"asset_name"`
	ProductID            string    `json:"product_id"`
	ProductName          string    `json:"product_name"`
	ServicedAt           time.Time `json:"serviced_at"`
	Quantity             float64   `json:"quantity"`
	Cost                 float64   `json:"cost"`
	LinkedUsageHourMeter *float64  `json:"linked_usage_hour_meter,omitempty"`
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
