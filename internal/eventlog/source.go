package eventlog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jgoulah/assetwatch/internal/database"
	"github.com/jgoulah/assetwatch/pkg/models"
)

// Source yields a fully materialised event log
type Source interface {
	Events(ctx context.Context) ([]models.Event, error)
}

// StoreSource reads the event log from the sqlite store
type StoreSource struct {
	db    *database.DB
	query database.EventQuery
}

// NewStoreSource creates a source over db narrowed by q
func NewStoreSource(db *database.DB, q database.EventQuery) *StoreSource {
	return &StoreSource{db: db, query: q}
}

func (s *StoreSource) Events(ctx context.Context) ([]models.Event, error) {
	events, err := s.db.ListEvents(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("loading event log: %w", err)
	}
	return events, nil
}

// Cache stores materialised event logs for a bounded time
type Cache interface {
	Get(ctx context.Context, key string) ([]models.Event, bool, error)
	Set(ctx context.Context, key string, events []models.Event, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Cached serves a Source through a Cache. Concurrent misses share one load.
type Cached struct {
	source Source
	cache  Cache
	key    string
	ttl    time.Duration
	log    *zap.Logger
	group  singleflight.Group
}

// NewCached wraps source. A nil logger is replaced by a no-op logger.
func NewCached(source Source, cache Cache, key string, ttl time.Duration, log *zap.Logger) *Cached {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cached{source: source, cache: cache, key: key, ttl: ttl, log: log}
}

// Events returns the cached log, loading it from the source on a miss. Cache
// failures are logged and fall through to the source.
func (c *Cached) Events(ctx context.Context) ([]models.Event, error) {
	events, ok, err := c.cache.Get(ctx, c.key)
	if err != nil {
		c.log.Warn("event log cache read failed", zap.String("key", c.key), zap.Error(err))
	}
	if ok {
		return events, nil
	}

	v, err, _ := c.group.Do(c.key, func() (any, error) {
		events, err := c.source.Events(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, c.key, events, c.ttl); err != nil {
			c.log.Warn("event log cache write failed", zap.String("key", c.key), zap.Error(err))
		}
		c.log.Debug("event log loaded", zap.String("key", c.key), zap.Int("events", len(events)))
		return events, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Event), nil
}

// Invalidate drops the cached log so the next call reloads it
func (c *Cached) Invalidate(ctx context.Context) error {
	return c.cache.Delete(ctx, c.key)
}
