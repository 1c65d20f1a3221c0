package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teamaction/geohunt/go/internal/teamsync"
)

// Config is the optional YAML config for the sync server. Every field has
// a sane default; the file only overrides.
type Config struct {
	Server struct {
		Port    string `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"server"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Sync struct {
		HeartbeatIntervalSec int     `yaml:"heartbeat_interval_sec"`
		LivenessWindowSec    int     `yaml:"liveness_window_sec"`
		NotifyDebounceMs     int     `yaml:"notify_debounce_ms"`
		LocationMinMoveM     float64 `yaml:"location_min_move_m"`
		RecoveryCodeTTLMin   int     `yaml:"recovery_code_ttl_min"`
	} `yaml:"sync"`
	Dev bool `yaml:"dev"` // in-process bus and stores, no NATS/Postgres
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = getEnv("PORT", "8080")
	}
	if cfg.Server.DataDir == "" {
		cfg.Server.DataDir = getEnv("DATA_DIR", "./data")
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = getEnv("NATS_URL", "nats://127.0.0.1:4222")
	}
	return cfg, nil
}

// syncConfig folds the YAML overrides onto the default timing parameters.
func (c *Config) syncConfig() teamsync.Config {
	sc := teamsync.DefaultConfig()
	if c.Sync.HeartbeatIntervalSec > 0 {
		sc.HeartbeatInterval = time.Duration(c.Sync.HeartbeatIntervalSec) * time.Second
	}
	if c.Sync.LivenessWindowSec > 0 {
		sc.LivenessWindow = time.Duration(c.Sync.LivenessWindowSec) * time.Second
	}
	if c.Sync.NotifyDebounceMs > 0 {
		sc.NotifyDebounce = time.Duration(c.Sync.NotifyDebounceMs) * time.Millisecond
	}
	if c.Sync.RecoveryCodeTTLMin > 0 {
		sc.RecoveryCodeTTL = time.Duration(c.Sync.RecoveryCodeTTLMin) * time.Minute
	}
	if c.Sync.LocationMinMoveM > 0 {
		sc.LocationMinMoveM = c.Sync.LocationMinMoveM
	}
	return sc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
