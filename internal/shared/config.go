package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Identity IdentityConfig `toml:"identity"`
	Sync     SyncConfig     `toml:"sync"`
	Database DatabaseConfig `toml:"database"`
}

// APIConfig contains connection settings for the workflow service.
type APIConfig struct {
	BaseURL       string `toml:"base_url"`
	StreamEnabled bool   `toml:"stream_enabled"`
	TimeoutSecs   int    `toml:"timeout_secs"`
}

// IdentityConfig contains identity cache settings.
type IdentityConfig struct {
	CachePath   string `toml:"cache_path"`
	CacheKey    string `toml:"cache_key"`
	CacheTTLSec int    `toml:"cache_ttl_secs"`
}

// SyncConfig contains tuning for the status transports and the edit coordinator.
type SyncConfig struct {
	BackoffBaseMS     int `toml:"backoff_base_ms"`
	BackoffCapMS      int `toml:"backoff_cap_ms"`
	MaxReconnects     int `toml:"max_reconnects"`
	EditDebounceMS    int `toml:"edit_debounce_ms"`
	SearchDebounceMS  int `toml:"search_debounce_ms"`
	PollActiveMS      int `toml:"poll_active_ms"`
	PollAwaitingMS    int `toml:"poll_awaiting_ms"`
	PollRatePerSecond int `toml:"poll_rate_per_second"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CacheTTL returns the identity cache time-to-live as a [time.Duration].
func (c IdentityConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// Timeout returns the per-request API timeout as a [time.Duration].
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// BackoffBase returns the initial reconnect delay as a [time.Duration].
func (c SyncConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMS) * time.Millisecond
}

// BackoffCap returns the maximum reconnect delay as a [time.Duration].
func (c SyncConfig) BackoffCap() time.Duration {
	return time.Duration(c.BackoffCapMS) * time.Millisecond
}

// EditDebounce returns the reconciliation debounce window as a [time.Duration].
func (c SyncConfig) EditDebounce() time.Duration {
	return time.Duration(c.EditDebounceMS) * time.Millisecond
}

// SearchDebounce returns the search debounce window as a [time.Duration].
func (c SyncConfig) SearchDebounce() time.Duration {
	return time.Duration(c.SearchDebounceMS) * time.Millisecond
}

// PollActive returns the polling interval while the job is progressing.
func (c SyncConfig) PollActive() time.Duration {
	return time.Duration(c.PollActiveMS) * time.Millisecond
}

// PollAwaiting returns the polling interval while the job is paused for edits.
func (c SyncConfig) PollAwaiting() time.Duration {
	return time.Duration(c.PollAwaitingMS) * time.Millisecond
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	// Check if file already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	// Write the embedded example config to the file
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
