package maintenance

import (
	"time"

	"go.uber.org/zap"

	"github.com/jgoulah/assetwatch/pkg/models"
)

// DefaultPageSize is the number of rows in one page of the status table
const DefaultPageSize = 20

// Filter narrows an evaluation. Empty lists select everything.
type Filter struct {
	Categories   []string        `json:"categories,omitempty"`
	AssetCodes   []string        `json:"asset_codes,omitempty"`
	ProductNames []string        `json:"product_names,omitempty"`
	Statuses     []models.Status `json:"statuses,omitempty"`
}

// Page selects a zero-based page of the status table
type Page struct {
	Number int
	Size   int
}

// Observer is notified after every successful evaluation
type Observer interface {
	ObserveEvaluation(rows []models.AssetStatusRow, elapsed time.Duration)
}

// Engine runs the normalize → reconstruct → classify pipeline under one policy.
// It holds no per-evaluation state and is safe for concurrent use.
type Engine struct {
	policy   Policy
	log      *zap.Logger
	observer Observer
}

// Option configures an Engine
type Option func(*Engine)

// WithThreshold overrides the variant's default "approaching service" window
func WithThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold > 0 {
			e.policy.Threshold = threshold
		}
	}
}

// WithLogger sets the logger used for evaluation diagnostics
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithObserver registers an evaluation observer, typically metrics
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine creates an engine for the given variant
func NewEngine(v Variant, opts ...Option) *Engine {
	e := &Engine{policy: DefaultPolicy(v), log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's classification policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Evaluate classifies every asset/product pairing selected by f
func (e *Engine) Evaluate(events []models.Event, f Filter) ([]models.AssetStatusRow, error) {
	start := time.Now()

	streams, err := Normalize(selectEvents(events, f))
	if err != nil {
		return nil, err
	}
	stats := Reconstruct(streams, e.policy.Variant)
	rows := selectRows(Classify(streams, stats, e.policy), f)

	elapsed := time.Since(start)
	e.log.Debug("evaluated maintenance status",
		zap.Int("events", len(events)),
		zap.Int("usage_records", len(streams.Usage)),
		zap.Int("maintenance_events", len(streams.Maintenance)),
		zap.Int("rows", len(rows)),
		zap.String("variant", e.policy.Variant.String()),
		zap.Duration("elapsed", elapsed),
	)
	if e.observer != nil {
		e.observer.ObserveEvaluation(rows, elapsed)
	}
	return rows, nil
}

// ComputeStatus evaluates f and returns the requested page together with the
// total number of matching rows
func (e *Engine) ComputeStatus(events []models.Event, f Filter, page Page) ([]models.AssetStatusRow, int, error) {
	rows, err := e.Evaluate(events, f)
	if err != nil {
		return nil, 0, err
	}
	return Paginate(rows, page), len(rows), nil
}

// Paginate returns the rows of page; out-of-range pages are empty
func Paginate(rows []models.AssetStatusRow, page Page) []models.AssetStatusRow {
	size := page.Size
	if size <= 0 {
		size = DefaultPageSize
	}
	if page.Number < 0 {
		return []models.AssetStatusRow{}
	}
	start := page.Number * size
	if start >= len(rows) {
		return []models.AssetStatusRow{}
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	out := make([]models.AssetStatusRow, end-start)
	copy(out, rows[start:end])
	return out
}

// TotalPages returns how many pages of size hold total rows
func TotalPages(total, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	return (total + size - 1) / size
}

func toSet[T comparable](values []T) map[T]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[T]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// selectEvents applies the asset-level selection before computation. Product
// selection is applied to rows instead so that filtering a product never turns
// its asset into an unregistered one.
func selectEvents(events []models.Event, f Filter) []models.Event {
	categories := toSet(f.Categories)
	codes := toSet(f.AssetCodes)
	if categories == nil && codes == nil {
		return events
	}
	out := make([]models.Event, 0, len(events))
	for _, ev := range events {
		if categories != nil && !categories[categoryOf(ev)] {
			continue
		}
		if codes != nil && !codes[ev.AssetCode] {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func selectRows(rows []models.AssetStatusRow, f Filter) []models.AssetStatusRow {
	products := toSet(f.ProductNames)
	statuses := toSet(f.Statuses)
	if products == nil && statuses == nil {
		return rows
	}
	out := make([]models.AssetStatusRow, 0, len(rows))
	for _, row := range rows {
		if products != nil && !products[row.ProductName] {
			continue
		}
		if statuses != nil && !statuses[row.Status] {
			continue
		}
		out = append(out, row)
	}
	return out
}
