package maintenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/assetwatch/pkg/models"
)

func TestLeaderboard(t *testing.T) {
	rows := []models.AssetStatusRow{
		{AssetCode: "EXC-02", AssetCategory: "Excavator", Status: models.StatusNeededService, ProductID: "P1"},
		{AssetCode: "EXC-02", AssetCategory: "Excavator", Status: models.StatusNeededService, ProductID: "P2"},
		{AssetCode: "EXC-01", AssetCategory: "Excavator", Status: models.StatusNeededService, ProductID: "P1"},
		{AssetCode: "DT-01", AssetCategory: "Dump Truck", Status: models.StatusNeededService, ProductID: "P1"},
		{AssetCode: "DT-02", AssetCategory: "Dump Truck", Status: models.StatusGoodCondition, ProductID: "P1"},
	}

	board := Leaderboard(rows, 2)
	require.Len(t, board, 2)
	assert.Equal(t, LeaderboardEntry{AssetCategory: "Excavator", AssetCode: "EXC-02", Count: 2}, board[0])
	assert.Equal(t, "DT-01", board[1].AssetCode, "ties break on asset code")

	assert.Len(t, Leaderboard(rows, 0), 3)
	assert.Empty(t, Leaderboard(nil, DefaultTopN))
}

func TestLegend(t *testing.T) {
	legend := Legend(DefaultPolicy(HourMeter))
	require.Len(t, legend, len(models.StatusOrder))
	assert.Equal(t, models.StatusNeededService, legend[0].Status)
	assert.Contains(t, legend[1].Description, "next 24 hours")

	legend = Legend(Policy{Variant: Calendar, Threshold: 7.5})
	assert.Contains(t, legend[1].Description, "next 7.5 days")
	for _, entry := range legend {
		assert.NotEmpty(t, entry.Description, "status %q", entry.Status)
	}
}

func TestSummarize(t *testing.T) {
	events := fleet()
	events = append(events, models.Event{
		Source:           models.SourceUsage,
		AssetCode:        "GEN-11",
		HourMeterReading: models.Float(1),
		EventDate:        day(1),
	})

	summary, err := Summarize(events, Filter{})
	require.NoError(t, err)
	assert.Equal(t, Summary{
		Categories:           2,
		CategoriesMaintained: 1,
		CategoriesUsed:       2,
		Assets:               7,
		AssetsMaintained:     5,
		AssetsUsed:           6,
	}, summary)

	summary, err = Summarize(events, Filter{Categories: []string{models.UnknownCategory}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Assets)
	assert.Equal(t, 0, summary.AssetsMaintained)
}

func TestTrend(t *testing.T) {
	jan5 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	oil := purchaseEvent("EXC-01", "P-OIL", "Oil Filter", jan5)
	oil.Price = models.Float(25)
	tire := purchaseEvent("DT-01", "P-TIRE", "Tire", time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))
	tire.AssetCategory = "Dump Truck"
	tire.Price = models.Float(400)

	events := []models.Event{
		usageEvent("EXC-01", jan5, 100),
		usageEvent("EXC-01", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), 150),
		usageEvent("EXC-01", time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), 10), // meter replaced
		usageEvent("EXC-01", time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), 40),
		oil,
		tire,
	}

	points, err := Trend(events, Filter{}, Month, ByAsset)
	require.NoError(t, err)
	assert.Equal(t, []TrendPoint{
		{Period: "2024-02", Group: "DT-01", Cost: 400, Quantity: 1},
		{Period: "2024-01", Group: "EXC-01", Cost: 25, Quantity: 1, WorkHours: 50},
		{Period: "2024-02", Group: "EXC-01", WorkHours: 30},
	}, points)

	points, err = Trend(events, Filter{ProductNames: []string{"Tire"}}, Year, ByCategory)
	require.NoError(t, err)
	assert.Equal(t, []TrendPoint{
		{Period: "2024", Group: "Dump Truck", Cost: 400, Quantity: 1},
		{Period: "2024", Group: "Excavator", WorkHours: 80},
	}, points)
}

func TestParseGroupBy(t *testing.T) {
	g, err := ParseGroupBy("Category")
	require.NoError(t, err)
	assert.Equal(t, ByCategory, g)

	g, err = ParseGroupBy("")
	require.NoError(t, err)
	assert.Equal(t, "asset", g.String())

	_, err = ParseGroupBy("region")
	assert.Error(t, err)
}

func TestBucketLabels(t *testing.T) {
	at := time.Date(2024, 12, 30, 15, 0, 0, 0, time.UTC)
	tests := []struct {
		bucket Bucket
		want   string
	}{
		{Day, "2024-12-30"},
		{Week, "2025-W01"},
		{Month, "2024-12"},
		{Quarter, "2024-Q4"},
		{Semester, "2024-S2"},
		{Year, "2024"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.bucket.Label(at), tt.bucket.Name())
	}
	assert.Equal(t, "2024-Q2", Quarter.Label(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-S1", Semester.Label(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-12", Bucket{}.Label(at), "zero bucket falls back to month")
}

func TestParseBucket(t *testing.T) {
	for _, b := range Buckets {
		got, err := ParseBucket(b.Name())
		require.NoError(t, err)
		assert.Equal(t, b.Name(), got.Name())
	}

	got, err := ParseBucket("")
	require.NoError(t, err)
	assert.Equal(t, "month", got.Name())

	got, err = ParseBucket("By Date")
	require.NoError(t, err)
	assert.Equal(t, "day", got.Name())

	_, err = ParseBucket("decade")
	assert.Error(t, err)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, HourMeter, v)

	v, err = ParseVariant("Calendar")
	require.NoError(t, err)
	assert.Equal(t, Calendar, v)
	assert.Equal(t, "days", v.Unit())

	_, err = ParseVariant("odometer")
	assert.Error(t, err)
}
