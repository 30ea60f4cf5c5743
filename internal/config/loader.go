// Package config loads runtime parameters from YAML, JSON or TOML files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Defaults in main.
type Config struct {
	Addr            string  `json:"addr" yaml:"addr" toml:"addr"`
	ModelDir        string  `json:"model_dir" yaml:"model_dir" toml:"model_dir"`
	ModelID         string  `json:"model_id" yaml:"model_id" toml:"model_id"`
	Engine          string  `json:"engine" yaml:"engine" toml:"engine"`
	Workers         int     `json:"workers" yaml:"workers" toml:"workers"`
	DeviceID        int     `json:"device_id" yaml:"device_id" toml:"device_id"`
	VideoRatio      float64 `json:"video_ratio" yaml:"video_ratio" toml:"video_ratio"`
	APIKey          string  `json:"api_key" yaml:"api_key" toml:"api_key"`
	APIKeyHeader    string  `json:"api_key_header" yaml:"api_key_header" toml:"api_key_header"`
	APIKeyPrefix    string  `json:"api_key_prefix" yaml:"api_key_prefix" toml:"api_key_prefix"`
	FetchTimeoutSec int     `json:"fetch_timeout_sec" yaml:"fetch_timeout_sec" toml:"fetch_timeout_sec"`
	LogLevel        string  `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxBodyMB       int     `json:"max_body_mb" yaml:"max_body_mb" toml:"max_body_mb"`

	CORSEnabled bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Defaults fills unspecified fields.
func (c *Config) Defaults() {
	if c.Addr == "" {
		c.Addr = ":8899"
	}
	if c.ModelDir == "" {
		c.ModelDir = "./models/qwen3vl_2b"
	}
	if c.ModelID == "" {
		c.ModelID = "qwen3-vl-instruct"
	}
	if c.Engine == "" {
		c.Engine = "stub"
	}
	if c.Workers <= 0 {
		c.Workers = 10
	}
	if c.VideoRatio <= 0 {
		c.VideoRatio = 0.5
	}
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = "Authorization"
	}
	if c.APIKeyPrefix == "" {
		c.APIKeyPrefix = "Bearer"
	}
	if c.FetchTimeoutSec <= 0 {
		c.FetchTimeoutSec = 15
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxBodyMB <= 0 {
		c.MaxBodyMB = 32
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
