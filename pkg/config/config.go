// Package config loads clusterd's process configuration from flags
// plus an optional YAML override file, mirroring the teacher's flags +
// gopkg.in/yaml.v3 approach (no viper).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/cuemby/clusterd/pkg/log"
	"gopkg.in/yaml.v3"
)

// Config holds clusterd's process-wide configuration.
type Config struct {
	NodeID     string        `yaml:"nodeID"`
	DataDir    string        `yaml:"dataDir"`
	BindAddr   string        `yaml:"bindAddr"`
	LogLevel   log.Level     `yaml:"logLevel"`
	LogJSON    bool          `yaml:"logJSON"`
	WorkerPool int           `yaml:"workerPool"`

	// DefaultActionTimeout is the cluster-level timeout (§5) applied
	// when an intent doesn't specify its own.
	DefaultActionTimeout time.Duration `yaml:"defaultActionTimeout"`

	// Retry is the transient-driver-error retry policy (§7).
	Retry RetryConfig `yaml:"retry"`

	// Backoff governs the scheduler's RES_RETRY reschedule backoff (§4.3).
	Backoff BackoffConfig `yaml:"backoff"`
}

// RetryConfig is the per-driver-call retry policy from §7: "3
// attempts, linear backoff".
type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// BackoffConfig is the scheduler's exponential RES_RETRY backoff (§4.3,
// §5): the delay starts at Initial and doubles up to RetryCap, and
// after MaxRetries attempts an action's RES_RETRY promotes to
// RES_ERROR. Max is not read by the scheduler: a WAITING action polling
// its dependents is requeued at a fixed 50ms interval that does not
// back off.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	RetryCap   time.Duration `yaml:"retryCap"`
	MaxRetries int           `yaml:"maxRetries"`
}

// Default returns clusterd's built-in defaults.
func Default() *Config {
	return &Config{
		DataDir:    "./data",
		BindAddr:   "127.0.0.1:7777",
		LogLevel:   log.InfoLevel,
		WorkerPool: 4,
		DefaultActionTimeout: time.Hour,
		Retry: RetryConfig{
			MaxAttempts: 3,
			Backoff:     2 * time.Second,
		},
		Backoff: BackoffConfig{
			Initial:    10 * time.Millisecond,
			Max:        time.Second,
			RetryCap:   60 * time.Second,
			MaxRetries: 5,
		},
	}
}

// LoadFile merges a YAML override file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
