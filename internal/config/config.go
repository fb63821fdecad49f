// Package config provides configuration loading and validation for
// flowboard.
package config

import "fmt"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `json:"server"    mapstructure:"server"`
	Board     BoardConfig     `json:"board"     mapstructure:"board"`
	Monitor   MonitorConfig   `json:"monitor"   mapstructure:"monitor"`
	Assistant AssistantConfig `json:"assistant" mapstructure:"assistant"`
	Storage   StorageConfig   `json:"storage"   mapstructure:"storage"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string `json:"addr,omitempty" mapstructure:"addr"`
}

// BoardConfig describes board-level limits.
type BoardConfig struct {
	WIPLimit int `json:"wip_limit" mapstructure:"wip_limit"`
}

// MonitorConfig describes the staleness monitor schedule. Durations are in
// seconds.
type MonitorConfig struct {
	Enabled      bool `json:"enabled"            mapstructure:"enabled"`
	ThresholdSec int  `json:"threshold_sec"      mapstructure:"threshold_sec"`
	PollSec      int  `json:"poll_sec,omitempty" mapstructure:"poll_sec"`
}

// AssistantConfig describes the text-generation collaborator.
type AssistantConfig struct {
	Type          string `json:"type"                     mapstructure:"type"`
	Model         string `json:"model,omitempty"          mapstructure:"model"`
	BaseURL       string `json:"base_url,omitempty"       mapstructure:"base_url"`
	APIKeyEnv     string `json:"api_key_env,omitempty"    mapstructure:"api_key_env"`
	TimeoutSec    int    `json:"timeout_sec,omitempty"    mapstructure:"timeout_sec"`
	ReviewEnabled bool   `json:"review_enabled,omitempty" mapstructure:"review_enabled"`
}

// StorageConfig selects the durability sink.
type StorageConfig struct {
	Driver string `json:"driver"         mapstructure:"driver"`
	Path   string `json:"path,omitempty" mapstructure:"path"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	return Config{
		Server:    ServerConfig{Addr: ":8080"},
		Board:     BoardConfig{WIPLimit: 3},
		Monitor:   MonitorConfig{Enabled: true, ThresholdSec: 300, PollSec: 60},
		Assistant: AssistantConfig{Type: "mock", ReviewEnabled: true},
		Storage:   StorageConfig{Driver: "file", Path: ".flowboard/board.json"},
	}
}

// Validate checks cross-field constraints the JSON schema cannot express.
func (c Config) Validate() error {
	if c.Board.WIPLimit <= 0 {
		return fmt.Errorf("board.wip_limit must be > 0")
	}
	if c.Monitor.Enabled {
		if c.Monitor.ThresholdSec <= 0 {
			return fmt.Errorf("monitor.threshold_sec must be > 0")
		}
		if c.Monitor.PollSec <= 0 {
			return fmt.Errorf("monitor.poll_sec must be > 0")
		}
	}
	switch c.Assistant.Type {
	case "mock", "openai", "gemini":
	default:
		return fmt.Errorf("assistant.type must be one of mock, openai, gemini")
	}
	switch c.Storage.Driver {
	case "none":
	case "file", "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver must be one of none, file, sqlite")
	}
	return nil
}
