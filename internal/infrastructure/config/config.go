// Package config loads application configuration in three layers: built-in
// defaults, an optional TOML file overlay pointed at by LELAB_CONFIG, then
// environment variables. Later layers win.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Logging     LogConfig         `toml:"logging"`
	RateLimit   RateLimitConfig   `toml:"rate_limit"`
	Calibration CalibrationConfig `toml:"calibration"`
	Training    TrainingConfig    `toml:"training"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" toml:"port"`
	Host string `envconfig:"HOST" toml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" toml:"enabled"`
}

// CalibrationConfig holds device calibration configuration.
type CalibrationConfig struct {
	// Command is the vendor calibration CLI launched under a PTY.
	Command string `envconfig:"CALIBRATION_COMMAND" toml:"command"`

	// LeaderConfigDir and FollowerConfigDir hold the calibration JSON
	// files for the teleoperator and robot variants. Empty selects the
	// conventional cache location under the user's home.
	LeaderConfigDir   string `envconfig:"CALIBRATION_LEADER_DIR" toml:"leader_config_dir"`
	FollowerConfigDir string `envconfig:"CALIBRATION_FOLLOWER_DIR" toml:"follower_config_dir"`

	InputQueueSize int           `envconfig:"CALIBRATION_INPUT_QUEUE" toml:"input_queue_size"`
	StopGrace      time.Duration `envconfig:"CALIBRATION_STOP_GRACE" toml:"stop_grace"`
}

// TrainingConfig holds training job configuration.
type TrainingConfig struct {
	Command   string `envconfig:"TRAINING_COMMAND" toml:"command"`
	OutputDir string `envconfig:"TRAINING_OUTPUT_DIR" toml:"output_dir"`
}

// Load loads configuration from the optional TOML overlay and the
// environment.
func Load() (*Config, error) {
	cfg := &Config{RateLimit: RateLimitConfig{Enabled: true}}
	if path := os.Getenv("LELAB_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadOrDefault loads configuration or returns the defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{RateLimit: RateLimitConfig{Enabled: true}}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills every field still at its zero value. Defaults live
// here rather than in struct tags so file overlay values survive the
// environment pass.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		c.RateLimit.RequestsPerSecond = 100
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 200
	}
	if c.Calibration.Command == "" {
		c.Calibration.Command = "lerobot-calibrate"
	}
	if c.Calibration.InputQueueSize <= 0 {
		c.Calibration.InputQueueSize = 100
	}
	if c.Calibration.StopGrace <= 0 {
		c.Calibration.StopGrace = 5 * time.Second
	}
	if c.Training.Command == "" {
		c.Training.Command = "lerobot-train"
	}
	if c.Training.OutputDir == "" {
		c.Training.OutputDir = "outputs/train"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".cache", "huggingface", "lerobot", "calibration")
	if c.Calibration.LeaderConfigDir == "" {
		c.Calibration.LeaderConfigDir = filepath.Join(base, "teleoperators", "so101_leader")
	}
	if c.Calibration.FollowerConfigDir == "" {
		c.Calibration.FollowerConfigDir = filepath.Join(base, "robots", "so101_follower")
	}
}
