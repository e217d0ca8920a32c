package maintenance

import (
	"fmt"
	"strings"
	"time"
)

// Bucket maps a timestamp to the label of the period it falls in. Labels of
// one bucket sort chronologically as strings.
type Bucket struct {
	name  string
	label func(t time.Time) string
}

var (
	Day = Bucket{"day", func(t time.Time) string {
		return t.Format("2006-01-02")
	}}
	Week = Bucket{"week", func(t time.Time) string {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	}}
	Month = Bucket{"month", func(t time.Time) string {
		return t.Format("2006-01")
	}}
	Quarter = Bucket{"quarter", func(t time.Time) string {
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	}}
	Semester = Bucket{"semester", func(t time.Time) string {
		return fmt.Sprintf("%04d-S%d", t.Year(), (int(t.Month())-1)/6+1)
	}}
	Year = Bucket{"year", func(t time.Time) string {
		return t.Format("2006")
	}}
)

// Buckets lists the supported granularities from finest to coarsest
var Buckets = []Bucket{Day, Week, Month, Quarter, Semester, Year}

// ParseBucket resolves a granularity name; "date" and "daily" style aliases are accepted
func ParseBucket(name string) (Bucket, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "day", "date", "daily", "by date":
		return Day, nil
	case "week", "weekly":
		return Week, nil
	case "", "month", "monthly":
		return Month, nil
	case "quarter", "quarterly":
		return Quarter, nil
	case "semester", "half", "semiannual":
		return Semester, nil
	case "year", "yearly", "annual":
		return Year, nil
	default:
		return Bucket{}, fmt.Errorf("unknown bucket: %s (available: day, week, month, quarter, semester, year)", name)
	}
}

func (b Bucket) Name() string { return b.name }

// Label returns the period label of t
func (b Bucket) Label(t time.Time) string {
	if b.label == nil {
		return Month.label(t)
	}
	return b.label(t)
}
