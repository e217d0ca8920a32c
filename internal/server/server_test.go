package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/assetwatch/internal/maintenance"
	"github.com/jgoulah/assetwatch/internal/metrics"
	"github.com/jgoulah/assetwatch/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type staticSource struct {
	events []models.Event
	err    error
}

func (s staticSource) Events(context.Context) ([]models.Event, error) {
	return s.events, s.err
}

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func fleet() []models.Event {
	usage := func(code string, d int, hm float64) models.Event {
		return models.Event{Source: models.SourceUsage, AssetCategory: "Excavator", AssetCode: code,
			HourMeterReading: models.Float(hm), EventDate: day(d)}
	}
	purchase := func(code string, d int, price float64) models.Event {
		return models.Event{Source: models.SourceMaintenance, AssetCategory: "Excavator", AssetCode: code,
			ProductID: "P-OIL", ProductName: "Oil Filter", Quantity: models.Float(1), Price: models.Float(price), EventDate: day(d)}
	}
	return []models.Event{
		usage("EXC-01", 1, 0), usage("EXC-01", 10, 100), usage("EXC-01", 20, 250), purchase("EXC-01", 10, 40),
		usage("EXC-02", 1, 0), usage("EXC-02", 10, 100), usage("EXC-02", 12, 110), purchase("EXC-02", 10, 40),
		usage("GEN-09", 3, 40),
	}
}

func newTestServer(t *testing.T, source staticSource) (*Server, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	engine := maintenance.NewEngine(maintenance.HourMeter, maintenance.WithObserver(m))
	return New(engine, source, Options{PageSize: 2, Metrics: m}), m
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	resp := httptest.NewRecorder()
	s.Handler().ServeHTTP(resp, req)
	return resp
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, staticSource{})
	resp := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))
}

func TestStatus_Paginates(t *testing.T) {
	s, _ := newTestServer(t, staticSource{events: fleet()})

	resp := get(t, s, "/api/status")
	require.Equal(t, http.StatusOK, resp.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
	assert.Equal(t, 2, body.TotalPages)
	assert.Equal(t, 2, body.PageSize)
	assert.Equal(t, "hour_meter", body.Variant)
	assert.NotEmpty(t, body.EvaluationID)
	require.Len(t, body.Rows, 2)
	assert.Equal(t, models.StatusNeededService, body.Rows[0].Status)
	assert.Equal(t, "EXC-01", body.Rows[0].AssetCode)

	resp = get(t, s, "/api/status?page=1")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "GEN-09", body.Rows[0].AssetCode)
}

func TestStatus_Filters(t *testing.T) {
	s, _ := newTestServer(t, staticSource{events: fleet()})

	resp := get(t, s, "/api/status?status=good+condition,needed%20service&asset=EXC-02")
	require.Equal(t, http.StatusOK, resp.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "EXC-02", body.Rows[0].AssetCode)
	assert.Equal(t, models.StatusGoodCondition, body.Rows[0].Status)
}

func TestStatus_ProductNameWithComma(t *testing.T) {
	events := fleet()
	events = append(events, models.Event{Source: models.SourceMaintenance, AssetCategory: "Excavator", AssetCode: "EXC-01",
		ProductID: "P-HOSE", ProductName: "Hose, hydraulic", Quantity: models.Float(1), Price: models.Float(15), EventDate: day(10)})
	s, _ := newTestServer(t, staticSource{events: events})

	resp := get(t, s, "/api/status?product=Hose%2C%20hydraulic")
	require.Equal(t, http.StatusOK, resp.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "P-HOSE", body.Rows[0].ProductID)

	resp = get(t, s, "/api/status?product=Hose%2C%20hydraulic&product=Oil%20Filter")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Total)
}

func TestStatus_BadRequest(t *testing.T) {
	s, _ := newTestServer(t, staticSource{events: fleet()})

	for _, target := range []string{"/api/status?status=broken", "/api/status?page=-1", "/api/status?page_size=ten"} {
		resp := get(t, s, target)
		assert.Equal(t, http.StatusBadRequest, resp.Code, target)
	}
}

func TestStatus_InvalidInput(t *testing.T) {
	bad := models.Event{Source: models.SourceUsage, AssetCode: "EXC-01"}
	s, _ := newTestServer(t, staticSource{events: []models.Event{bad}})

	resp := get(t, s, "/api/status")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Body.String(), "event_date")
	assert.Contains(t, resp.Body.String(), "retry")
}

func TestStatus_SourceUnavailable(t *testing.T) {
	s, _ := newTestServer(t, staticSource{err: errors.New("connection refused")})

	resp := get(t, s, "/api/status")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
	assert.NotContains(t, resp.Body.String(), "connection refused")
}

func TestLeaderboardLegendSummaryTrend(t *testing.T) {
	s, _ := newTestServer(t, staticSource{events: fleet()})

	resp := get(t, s, "/api/leaderboard?top=5")
	require.Equal(t, http.StatusOK, resp.Code)
	var board struct {
		Entries []maintenance.LeaderboardEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &board))
	require.Len(t, board.Entries, 1)
	assert.Equal(t, "EXC-01", board.Entries[0].AssetCode)

	resp = get(t, s, "/api/legend")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "next 24 hours")

	resp = get(t, s, "/api/summary")
	require.Equal(t, http.StatusOK, resp.Code)
	var summary maintenance.Summary
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &summary))
	assert.Equal(t, 3, summary.Assets)
	assert.Equal(t, 2, summary.AssetsMaintained)

	resp = get(t, s, "/api/trend?bucket=year&by=category")
	require.Equal(t, http.StatusOK, resp.Code)
	var trend struct {
		Bucket string                   `json:"bucket"`
		Points []maintenance.TrendPoint `json:"points"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &trend))
	assert.Equal(t, "year", trend.Bucket)
	require.Len(t, trend.Points, 1)
	assert.Equal(t, maintenance.TrendPoint{Period: "2024", Group: "Excavator", Cost: 80, Quantity: 2, WorkHours: 360}, trend.Points[0])

	resp = get(t, s, "/api/trend?bucket=decade")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, staticSource{events: fleet()})
	get(t, s, "/api/status")

	resp := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, "assetwatch_evaluations_total 1")
	assert.Contains(t, body, `assetwatch_status_rows{status="Needed service"} 1`)
}

func TestParseStatusParam(t *testing.T) {
	s, err := ParseStatusParam("INCOMING SERVICE")
	require.NoError(t, err)
	assert.Equal(t, models.StatusIncomingService, s)

	s, err = ParseStatusParam("unknown")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnknown, s)

	_, err = ParseStatusParam("broken")
	assert.Error(t, err)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, staticSource{events: fleet()})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
