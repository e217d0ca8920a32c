package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jgoulah/assetwatch/internal/eventlog"
	"github.com/jgoulah/assetwatch/internal/maintenance"
	"github.com/jgoulah/assetwatch/internal/metrics"
	"github.com/jgoulah/assetwatch/pkg/models"
)

// RetryMessage is shown to API clients when the event log cannot be evaluated
const RetryMessage = "The maintenance data could not be evaluated. Fix the reported record and retry."

// Options configures the HTTP API
type Options struct {
	PageSize int
	TopN     int
	Bucket   maintenance.Bucket
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

// Server exposes maintenance status evaluations over HTTP
type Server struct {
	engine  *maintenance.Engine
	source  eventlog.Source
	opts    Options
	log     *zap.Logger
	router  *gin.Engine
	started time.Time
}

// New builds the server and its routes
func New(engine *maintenance.Engine, source eventlog.Source, opts Options) *Server {
	if opts.PageSize <= 0 {
		opts.PageSize = maintenance.DefaultPageSize
	}
	if opts.TopN <= 0 {
		opts.TopN = maintenance.DefaultTopN
	}
	if opts.Bucket.Name() == "" {
		opts.Bucket = maintenance.Month
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{engine: engine, source: source, opts: opts, log: log, started: time.Now()}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime": time.Since(s.started).Round(time.Second).String()})
	})
	if s.opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/leaderboard", s.handleLeaderboard)
	api.GET("/legend", s.handleLegend)
	api.GET("/summary", s.handleSummary)
	api.GET("/trend", s.handleTrend)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// StatusResponse is one page of the status table
type StatusResponse struct {
	EvaluationID string                  `json:"evaluation_id"`
	Variant      string                  `json:"variant"`
	Page         int                     `json:"page"`
	PageSize     int                     `json:"page_size"`
	Total        int                     `json:"total"`
	TotalPages   int                     `json:"total_pages"`
	Rows         []models.AssetStatusRow `json:"rows"`
}

func (s *Server) handleStatus(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, err := intQuery(c, "page", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	size, err := intQuery(c, "page_size", s.opts.PageSize)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, ok := s.loadEvents(c)
	if !ok {
		return
	}
	rows, total, err := s.engine.ComputeStatus(events, filter, maintenance.Page{Number: page, Size: size})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		EvaluationID: uuid.NewString(),
		Variant:      s.engine.Policy().Variant.String(),
		Page:         page,
		PageSize:     size,
		Total:        total,
		TotalPages:   maintenance.TotalPages(total, size),
		Rows:         rows,
	})
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	top, err := intQuery(c, "top", s.opts.TopN)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, ok := s.loadEvents(c)
	if !ok {
		return
	}
	rows, err := s.engine.Evaluate(events, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": maintenance.Leaderboard(rows, top)})
}

func (s *Server) handleLegend(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"legend": maintenance.Legend(s.engine.Policy())})
}

func (s *Server) handleSummary(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	events, ok := s.loadEvents(c)
	if !ok {
		return
	}
	summary, err := maintenance.Summarize(events, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleTrend(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bucket := s.opts.Bucket
	if name := c.Query("bucket"); name != "" {
		if bucket, err = maintenance.ParseBucket(name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	by, err := maintenance.ParseGroupBy(c.Query("by"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, ok := s.loadEvents(c)
	if !ok {
		return
	}
	points, err := maintenance.Trend(events, filter, bucket, by)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bucket": bucket.Name(), "by": by.String(), "points": points})
}

func (s *Server) loadEvents(c *gin.Context) ([]models.Event, bool) {
	events, err := s.source.Events(c.Request.Context())
	if err != nil {
		s.log.Error("loading event log failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event log unavailable", "message": "Loading the event log failed. Please retry shortly."})
		return nil, false
	}
	return events, true
}

// fail maps an evaluation error to a response. Malformed input is the only
// error the pipeline produces.
func (s *Server) fail(c *gin.Context, err error) {
	var inputErr *maintenance.InvalidInputError
	if errors.As(err, &inputErr) {
		s.log.Warn("event log rejected", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "message": RetryMessage})
		return
	}
	_ = c.Error(err)
	s.log.Error("evaluation failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "message": RetryMessage})
}

// listQuery collects repeated parameters. Codes and statuses may also be comma
// separated; names may contain commas and must be repeated instead.
func listQuery(c *gin.Context, key string, splitCommas bool) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		values := []string{raw}
		if splitCommas {
			values = strings.Split(raw, ",")
		}
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func parseFilter(c *gin.Context) (maintenance.Filter, error) {
	filter := maintenance.Filter{
		Categories:   listQuery(c, "category", false),
		AssetCodes:   listQuery(c, "asset", true),
		ProductNames: listQuery(c, "product", false),
	}
	for _, label := range listQuery(c, "status", true) {
		status, err := ParseStatusParam(label)
		if err != nil {
			return filter, err
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	return filter, nil
}

// ParseStatusParam matches a status label case-insensitively; "unknown" selects
// rows no rule matched
func ParseStatusParam(label string) (models.Status, error) {
	if strings.EqualFold(label, "unknown") || strings.EqualFold(label, "null") {
		return models.StatusUnknown, nil
	}
	for _, s := range models.StatusOrder {
		if strings.EqualFold(string(s), label) {
			return s, nil
		}
	}
	return models.StatusUnknown, fmt.Errorf("unknown status: %q", label)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := strings.TrimSpace(c.GetHeader("X-Request-Id"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-Id", requestID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("http_request", fields...)
		case route == "/metrics" || route == "/healthz":
			log.Debug("http_request", fields...)
		default:
			log.Info("http_request", fields...)
		}
	}
}
