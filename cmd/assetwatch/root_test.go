package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/assetwatch/internal/config"
	"github.com/jgoulah/assetwatch/internal/maintenance"
	"github.com/jgoulah/assetwatch/internal/server"
	"github.com/jgoulah/assetwatch/pkg/models"
)

func TestExplain(t *testing.T) {
	inputErr := fmt.Errorf("evaluating: %w", &maintenance.InvalidInputError{Record: "line 3", Field: "date"})
	err := explain(inputErr)
	assert.ErrorContains(t, err, "line 3")
	assert.ErrorContains(t, err, server.RetryMessage)

	plain := errors.New("disk full")
	assert.Equal(t, plain, explain(plain))
}

func TestFilterFlags(t *testing.T) {
	f := filterFlags{
		categories: []string{"Excavator"},
		assets:     []string{"EXC-01", "EXC-02"},
		statuses:   []string{"needed service", "unknown"},
	}
	filter, err := f.filter()
	require.NoError(t, err)
	assert.Equal(t, []string{"Excavator"}, filter.Categories)
	assert.Equal(t, []string{"EXC-01", "EXC-02"}, filter.AssetCodes)
	assert.Equal(t, []models.Status{models.StatusNeededService, models.StatusUnknown}, filter.Statuses)

	f.statuses = []string{"broken"}
	_, err = f.filter()
	assert.Error(t, err)
}

func TestNewEngine(t *testing.T) {
	engine, err := newEngine(&config.Config{Variant: "calendar"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, maintenance.Calendar, engine.Policy().Variant)
	assert.Equal(t, 10.0, engine.Policy().Threshold)

	engine, err = newEngine(&config.Config{Threshold: 48}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, maintenance.HourMeter, engine.Policy().Variant)
	assert.Equal(t, 48.0, engine.Policy().Threshold)

	_, err = newEngine(&config.Config{Variant: "weekly"}, nil, nil)
	assert.Error(t, err)
}

func TestFormatting(t *testing.T) {
	color.NoColor = true
	assert.Equal(t, "Good condition  ", statusText(models.StatusGoodCondition, 16))
	assert.Equal(t, "(unclassified)", statusText(models.StatusUnknown, 0))
	assert.Equal(t, "-", formatValue(nil))
	assert.Equal(t, "1,234.5", formatValue(models.Float(1234.5)))
}

func TestGetDBPath(t *testing.T) {
	cfg := &config.Config{Database: "fleet.db"}
	assert.Equal(t, "fleet.db", getDBPath(cfg))

	dbPath = "override.db"
	t.Cleanup(func() { dbPath = "" })
	assert.Equal(t, "override.db", getDBPath(cfg))
}
