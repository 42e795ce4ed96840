// Package config handles configuration loading, validation, and persistence
// for the Lantern live-room client.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.json"
	DefaultAPIPort    = 5720
	DefaultWindowSize = 256
)

// Config is the root configuration structure for Lantern.
type Config struct {
	mu   sync.RWMutex
	path string

	LiveData        LiveData        `json:"live_data"`
	ApplicationData ApplicationData `json:"application_data"`
}

// LiveData contains the live-room connection configuration.
type LiveData struct {
	// Room to join at startup. Short room ids are resolved through the
	// gateway before connecting.
	RoomID int64 `json:"room_id"`

	// UID used in the join frame; 0 joins anonymously.
	UID int64 `json:"uid"`

	// Upstream REST gateway issuing danmu tokens and host lists.
	GatewayURL string `json:"gateway_url"`

	// Reconnect policy. The session itself never reconnects; the app
	// loop does, after this delay, when auto reconnect is on.
	AutoReconnect     bool `json:"auto_reconnect"`
	ReconnectDelaySec int  `json:"reconnect_delay_sec"`
}

// ApplicationData contains client application configuration.
type ApplicationData struct {
	API       APIConfig       `json:"api"`
	MQTT      MQTTConfig      `json:"mqtt"`
	Webhook   WebhookConfig   `json:"webhook"`
	Window    WindowConfig    `json:"window"`
	Bookmarks BookmarksConfig `json:"bookmarks"`
	Timers    TimerConfig     `json:"timers"`
	Logging   LoggingConfig   `json:"logging"`
}

// APIConfig holds the local overlay/status HTTP API settings.
type APIConfig struct {
	Enabled        bool     `json:"enabled"`
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// MQTTConfig holds MQTT telemetry settings.
type MQTTConfig struct {
	Enabled   bool   `json:"enabled"`
	BrokerURL string `json:"broker_url"`
	Port      int    `json:"port"`
	UseTLS    bool   `json:"use_tls"`
	CertFile  string `json:"cert_file"`
	KeyFile   string `json:"key_file"`
	CAFile    string `json:"ca_file"`
	ClientID  string `json:"client_id"`
}

// WebhookConfig holds outbound webhook notification settings.
type WebhookConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// WindowConfig holds the in-memory recent-event window settings.
type WindowConfig struct {
	Size int `json:"size"`
}

// BookmarksConfig holds the bookmarked-rooms database settings.
type BookmarksConfig struct {
	Path string `json:"path"`
}

// TimerConfig holds periodic task intervals.
type TimerConfig struct {
	SnapshotInterval int `json:"snapshot_interval_sec"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LiveData: LiveData{
			GatewayURL:        "https://api.live.bilibili.com",
			AutoReconnect:     true,
			ReconnectDelaySec: 10,
		},
		ApplicationData: ApplicationData{
			API: APIConfig{
				Enabled:        true,
				Port:           DefaultAPIPort,
				AllowedOrigins: []string{"*"},
			},
			MQTT: MQTTConfig{
				Port: 8883,
			},
			Window: WindowConfig{
				Size: DefaultWindowSize,
			},
			Bookmarks: BookmarksConfig{
				Path: filepath.Join(DefaultConfigDir, "rooms.db"),
			},
			Timers: TimerConfig{
				SnapshotInterval: 30,
			},
			Logging: LoggingConfig{
				Level:      "info",
				Directory:  "logs",
				MaxBackups: 5,
			},
		},
	}
}

// Load reads configuration from a JSON file.
func Load(configDir string) (*Config, error) {
	configPath := filepath.Join(configDir, DefaultConfigFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", configPath).Msg("config file not found, creating default")
			cfg := DefaultConfig()
			cfg.path = configPath
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig() // Start with defaults, then overlay
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	cfg.path = configPath
	log.Info().Str("path", configPath).Msg("configuration loaded")

	// Re-save config to persist any new default fields added in code updates.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// Save writes the current configuration to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// GetLiveData returns a copy of the live-room configuration.
func (c *Config) GetLiveData() LiveData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LiveData
}

// SetLiveData updates the live-room configuration.
func (c *Config) SetLiveData(data LiveData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LiveData = data
}

// GetApplicationData returns a copy of the application configuration.
func (c *Config) GetApplicationData() ApplicationData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ApplicationData
}

// UpdateLiveField updates a specific field in live data by its JSON key.
func (c *Config) UpdateLiveField(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, _ := json.Marshal(c.LiveData)
	m := make(map[string]interface{})
	json.Unmarshal(data, &m)

	m[key] = value

	updated, _ := json.Marshal(m)
	if err := json.Unmarshal(updated, &c.LiveData); err != nil {
		return fmt.Errorf("failed to update field %s: %w", key, err)
	}

	return nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// IsFirstRun returns true if the configuration needs initial setup.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LiveData.RoomID == 0
}
