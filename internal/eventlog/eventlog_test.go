package eventlog

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/assetwatch/internal/database"
	"github.com/jgoulah/assetwatch/pkg/models"
)

type countingSource struct {
	calls  atomic.Int32
	events []models.Event
	err    error
	delay  time.Duration
}

func (s *countingSource) Events(context.Context) ([]models.Event, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return s.events, s.err
}

func sampleEvents() []models.Event {
	return []models.Event{
		{Source: models.SourceUsage, AssetCategory: "Excavator", AssetCode: "EXC-01",
			HourMeterReading: models.Float(300), EventDate: time.Date(2024, 1, 30, 8, 0, 0, 0, time.UTC)},
		{Source: models.SourceMaintenance, AssetCategory: "Excavator", AssetCode: "EXC-01", ProductID: "P-OIL",
			ProductName: "Oil Filter", Price: models.Float(12.5), EventDate: time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)},
	}
}

func newTestRedisCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisCache(client, "test")
}

func TestRedisCache(t *testing.T) {
	mr, cache := newTestRedisCache(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "all")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "all", sampleEvents(), time.Minute))
	assert.True(t, mr.Exists("test:events:all"))

	got, ok, err := cache.Get(ctx, "all")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleEvents(), got)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "all")
	require.NoError(t, err)
	assert.False(t, ok, "entries expire with their ttl")

	require.NoError(t, cache.Set(ctx, "all", sampleEvents(), time.Minute))
	require.NoError(t, cache.Delete(ctx, "all"))
	assert.False(t, mr.Exists("test:events:all"))
}

func TestRedisCache_CorruptValue(t *testing.T) {
	mr, cache := newTestRedisCache(t)
	require.NoError(t, mr.Set("test:events:all", "{not json"))

	_, ok, err := cache.Get(context.Background(), "all")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "failed to decode cached events")
}

func TestDialRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cache, err := DialRedisCache(context.Background(), "redis://"+mr.Addr(), "")
	require.NoError(t, err)
	defer cache.Close()
	assert.Equal(t, "events:all", cache.redisKey("all"))

	_, err = DialRedisCache(context.Background(), "not-a-url", "")
	assert.Error(t, err)
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "all", sampleEvents(), 10*time.Minute))
	_, ok, _ := cache.Get(ctx, "all")
	assert.True(t, ok)

	now = now.Add(10 * time.Minute)
	_, ok, _ = cache.Get(ctx, "all")
	assert.False(t, ok)
}

func TestCached_ReusesWithinTTL(t *testing.T) {
	source := &countingSource{events: sampleEvents()}
	cached := NewCached(source, NewMemoryCache(), "all", time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		events, err := cached.Events(ctx)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	}
	assert.EqualValues(t, 1, source.calls.Load())

	require.NoError(t, cached.Invalidate(ctx))
	_, err := cached.Events(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, source.calls.Load())
}

func TestCached_SharesConcurrentLoads(t *testing.T) {
	source := &countingSource{events: sampleEvents(), delay: 50 * time.Millisecond}
	_, cache := newTestRedisCache(t)
	cached := NewCached(source, cache, "all", time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := cached.Events(context.Background())
			assert.NoError(t, err)
			assert.Len(t, events, 2)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, source.calls.Load())
}

func TestCached_SourceError(t *testing.T) {
	source := &countingSource{err: errors.New("warehouse unavailable")}
	cached := NewCached(source, NewMemoryCache(), "all", time.Minute, nil)

	_, err := cached.Events(context.Background())
	assert.ErrorContains(t, err, "warehouse unavailable")

	_, err = cached.Events(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 2, source.calls.Load(), "failures are not cached")
}

func TestStoreSource(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.InsertEvents(ctx, "jan.csv", sampleEvents())
	require.NoError(t, err)

	events, err := NewStoreSource(db, database.EventQuery{Source: models.SourceUsage}).Events(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "EXC-01", events[0].AssetCode)
}
