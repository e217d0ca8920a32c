package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Variant       string       `yaml:"variant,omitempty"`   // hour_meter (default) or calendar
	Threshold     float64      `yaml:"threshold,omitempty"` // "Incoming Service" window, variant default when 0
	PageSize      int          `yaml:"page_size,omitempty"`
	TopN          int          `yaml:"top_n,omitempty"`
	Bucket        string       `yaml:"bucket,omitempty"`
	Database      string       `yaml:"database,omitempty"`
	Cache         CacheConfig  `yaml:"cache,omitempty"`
	MQTT          MQTTConfig   `yaml:"mqtt,omitempty"`
	HomeAssistant HAConfig     `yaml:"home_assistant,omitempty"`
	Server        ServerConfig `yaml:"server,omitempty"`
	Log           LogConfig    `yaml:"log,omitempty"`
}

// CacheConfig controls reuse of the loaded event log between evaluations
type CacheConfig struct {
	TTL       time.Duration `yaml:"ttl,omitempty"`
	RedisURL  string        `yaml:"redis_url,omitempty"` // in-process cache when empty
	KeyPrefix string        `yaml:"key_prefix,omitempty"`
}

// MQTTConfig holds the broker used to publish status rows
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g., "tcp://mqtt.local:1883"
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// HAConfig holds Home Assistant HTTP API configuration
type HAConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`       // e.g., "http://homeassistant.local:8123"
	Token    string `yaml:"token"`     // Long-lived access token
	EntityID string `yaml:"entity_id"` // e.g., "sensor.fleet_maintenance"
}

// ServerConfig holds the HTTP API settings
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// LogConfig selects the log level and encoding
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // json or console
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// may hold broker and Home Assistant credentials
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetVariant returns the configured variant name, defaulting to hour_meter
func (c *Config) GetVariant() string {
	if c.Variant == "" {
		return "hour_meter"
	}
	return c.Variant
}

// GetPageSize returns the status table page size with a default of 20
func (c *Config) GetPageSize() int {
	if c.PageSize <= 0 {
		return 20
	}
	return c.PageSize
}

// GetTopN returns the leaderboard length with a default of 10
func (c *Config) GetTopN() int {
	if c.TopN <= 0 {
		return 10
	}
	return c.TopN
}

// GetBucket returns the trend granularity with a default of month
func (c *Config) GetBucket() string {
	if c.Bucket == "" {
		return "month"
	}
	return c.Bucket
}

// GetDatabase returns the sqlite path with a default of assetwatch.db
func (c *Config) GetDatabase() string {
	if c.Database == "" {
		return "assetwatch.db"
	}
	return c.Database
}

// GetCacheTTL returns how long a loaded event log is reused, 10 minutes by default
func (c *Config) GetCacheTTL() time.Duration {
	if c.Cache.TTL <= 0 {
		return 10 * time.Minute
	}
	return c.Cache.TTL
}

// GetCacheKeyPrefix returns the redis key prefix with a default of assetwatch
func (c *Config) GetCacheKeyPrefix() string {
	if c.Cache.KeyPrefix == "" {
		return "assetwatch"
	}
	return c.Cache.KeyPrefix
}

// GetTopicPrefix returns the MQTT topic prefix with a default of assetwatch
func (c *Config) GetTopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "assetwatch"
	}
	return c.MQTT.TopicPrefix
}

// GetServerAddr returns the API listen address with a default of :8080
func (c *Config) GetServerAddr() string {
	if c.Server.Addr == "" {
		return ":8080"
	}
	return c.Server.Addr
}

// GetLogLevel returns the log level with a default of info
func (c *Config) GetLogLevel() string {
	if c.Log.Level == "" {
		return "info"
	}
	return c.Log.Level
}

// GetLogFormat returns the log encoding with a default of console
func (c *Config) GetLogFormat() string {
	if c.Log.Format == "" {
		return "console"
	}
	return c.Log.Format
}
