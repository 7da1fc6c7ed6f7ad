// Package config loads the ambient LabOps configuration file: defaults that
// apply across runs (output directory, log level/format, stop-decision
// thresholds, artifact retention, param-key-map path). It is distinct from a
// scenario file: scenarios describe one experiment and are JSON; this config
// describes how the toolkit itself behaves and is YAML, matching the
// teacher's own config-layering convention.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level ambient configuration document.
type Config struct {
	Framework FrameworkConfig `yaml:"framework"`
	Reporting ReportingConfig `yaml:"reporting"`
	StopRule  StopRuleConfig  `yaml:"stop_rule"`
	ParamMap  ParamMapConfig  `yaml:"param_map"`
	Safety    SafetyConfig    `yaml:"safety"`
}

// FrameworkConfig contains general framework settings.
type FrameworkConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ReportingConfig contains artifact output and retention settings.
type ReportingConfig struct {
	OutputDir string `yaml:"output_dir"`
	KeepLastN int    `yaml:"keep_last_n"`
}

// StopRuleConfig mirrors the stop-decision engine's (C12) tunable
// priorities. Fields are validated by pkg/agent's stop-decision engine
// itself; this struct only carries the defaults read from the ambient
// config file. No package in this module loads a Config, so these values
// do not reach the orchestrator.
type StopRuleConfig struct {
	MaxRuns               int     `yaml:"max_runs"`
	StableReproWindow     int     `yaml:"stable_repro_window"`
	StableReproRateMin    float64 `yaml:"stable_repro_rate_min"`
	ConfidenceThreshold   float64 `yaml:"confidence_threshold"`
}

// ParamMapConfig locates the default parameter key map file (C4).
type ParamMapConfig struct {
	DefaultPath string `yaml:"default_path"`
}

// SafetyConfig contains process-wide safety limits.
type SafetyConfig struct {
	LockFilePath string `yaml:"lock_file_path"`
}

// DefaultConfig returns the hardcoded defaults, which Load overrides with
// the values of the ambient config file.
func DefaultConfig() *Config {
	return &Config{
		Framework: FrameworkConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Reporting: ReportingConfig{
			OutputDir: "./out",
			KeepLastN: 50,
		},
		StopRule: StopRuleConfig{
			MaxRuns:             12,
			StableReproWindow:   4,
			StableReproRateMin:  0.75,
			ConfidenceThreshold: 0.90,
		},
		ParamMap: ParamMapConfig{
			DefaultPath: "src/backends/real_sdk/maps/param_key_map.json",
		},
		Safety: SafetyConfig{
			LockFilePath: "tmp/labops.lock",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist. An explicit path that does not exist is not an
// error; an unreadable or malformed existing file is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "labops.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the ambient config for internally-consistent values.
func (c *Config) Validate() error {
	if c.Reporting.OutputDir == "" {
		return fmt.Errorf("reporting.output_dir is required")
	}
	if c.Reporting.KeepLastN < 0 {
		return fmt.Errorf("reporting.keep_last_n must be >= 0")
	}
	if c.StopRule.MaxRuns <= 0 {
		return fmt.Errorf("stop_rule.max_runs must be > 0")
	}
	if c.StopRule.StableReproWindow <= 0 {
		return fmt.Errorf("stop_rule.stable_repro_window must be > 0")
	}
	if c.StopRule.StableReproRateMin < 0 || c.StopRule.StableReproRateMin > 1 {
		return fmt.Errorf("stop_rule.stable_repro_rate_min must be in [0,1]")
	}
	if c.StopRule.ConfidenceThreshold < 0 || c.StopRule.ConfidenceThreshold > 1 {
		return fmt.Errorf("stop_rule.confidence_threshold must be in [0,1]")
	}
	if c.Safety.LockFilePath == "" {
		return fmt.Errorf("safety.lock_file_path is required")
	}
	return nil
}
