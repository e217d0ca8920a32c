package maintenance

import (
	"fmt"
	"strings"
	"time"
)

// Variant selects the reference axis used to measure service intervals.
// A deployment picks one; the two are never mixed in one evaluation.
type Variant int

const (
	// HourMeter measures intervals as hour-meter deltas
	HourMeter Variant = iota
	// Calendar measures intervals as elapsed calendar days
	Calendar
)

const (
	hourMeterThreshold = 24 // hours
	calendarThreshold  = 10 // days
)

// ParseVariant accepts "hour_meter" (default when empty) or "calendar"
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hour_meter", "hour-meter", "hourmeter", "hours":
		return HourMeter, nil
	case "calendar", "days":
		return Calendar, nil
	default:
		return HourMeter, fmt.Errorf("unknown variant: %s (available: hour_meter, calendar)", name)
	}
}

func (v Variant) String() string {
	if v == Calendar {
		return "calendar"
	}
	return "hour_meter"
}

// Unit names the interval unit
func (v Variant) Unit() string {
	if v == Calendar {
		return "days"
	}
	return "hours"
}

// DefaultThreshold is the width of the "approaching service" window
func (v Variant) DefaultThreshold() float64 {
	if v == Calendar {
		return calendarThreshold
	}
	return hourMeterThreshold
}

// Policy is the classification setup of one deployment
type Policy struct {
	Variant   Variant
	Threshold float64
}

// DefaultPolicy returns the policy for v with its standard threshold
func DefaultPolicy(v Variant) Policy {
	return Policy{Variant: v, Threshold: v.DefaultThreshold()}
}

// dayKey identifies the calendar date of t in its own location
func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// civilDays counts calendar days from the epoch to the date of t, ignoring the clock
func civilDays(t time.Time) float64 {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return float64(d.Unix() / 86400)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
