package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "hour_meter", cfg.GetVariant())
	assert.Equal(t, 20, cfg.GetPageSize())
	assert.Equal(t, 10, cfg.GetTopN())
	assert.Equal(t, "month", cfg.GetBucket())
	assert.Equal(t, "assetwatch.db", cfg.GetDatabase())
	assert.Equal(t, 10*time.Minute, cfg.GetCacheTTL())
	assert.Equal(t, "assetwatch", cfg.GetCacheKeyPrefix())
	assert.Equal(t, "assetwatch", cfg.GetTopicPrefix())
	assert.Equal(t, ":8080", cfg.GetServerAddr())
	assert.Equal(t, "info", cfg.GetLogLevel())
	assert.Equal(t, "console", cfg.GetLogFormat())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
variant: calendar
threshold: 7
page_size: 50
cache:
  ttl: 90s
  redis_url: redis://localhost:6379/0
mqtt:
  enabled: true
  broker: tcp://mqtt.local:1883
  topic_prefix: fleet
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "calendar", cfg.GetVariant())
	assert.Equal(t, 7.0, cfg.Threshold)
	assert.Equal(t, 50, cfg.GetPageSize())
	assert.Equal(t, 90*time.Second, cfg.GetCacheTTL())
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "fleet", cfg.GetTopicPrefix())
	assert.Equal(t, "json", cfg.GetLogFormat())
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_size: [1"), 0600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing config file")
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{
		Variant:       "calendar",
		TopN:          5,
		Cache:         CacheConfig{TTL: 2 * time.Minute},
		HomeAssistant: HAConfig{Enabled: true, URL: "http://ha.local:8123", Token: "secret", EntityID: "sensor.fleet"},
	}
	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
