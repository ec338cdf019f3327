package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/daesim/internal/dynamo"
)

const (
	DefaultModel    = "oscillator"
	DefaultDataDir  = ".daesim"
	DefaultLogLevel = "info"
)

// Config is the optional YAML run configuration. Command-line flags that
// were set explicitly take precedence over file values.
type Config struct {
	Model       string        `yaml:"model"`
	InitFile    string        `yaml:"init_file"`
	ResultFile  string        `yaml:"result_file"`
	DataDir     string        `yaml:"data_dir"`
	MetricsFile string        `yaml:"metrics_file"`
	LogLevel    string        `yaml:"log_level"`
	Horizon     HorizonConfig `yaml:"horizon"`
}

// HorizonConfig seeds `daesim init`; a run always takes its horizon from
// the init file.
type HorizonConfig struct {
	Start float64 `yaml:"start"`
	Stop  float64 `yaml:"stop"`
	Step  float64 `yaml:"step"`
}

func DefaultConfig() *Config {
	h := dynamo.DefaultHorizon()
	return &Config{
		Model:    DefaultModel,
		DataDir:  DefaultDataDir,
		LogLevel: DefaultLogLevel,
		Horizon:  HorizonConfig{Start: h.Start, Stop: h.Stop, Step: h.Step},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dynamo.ConfigError("read config", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, dynamo.ConfigError("parse config", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, dynamo.ConfigError("validate config", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}

func (c *Config) GetHorizon() dynamo.Horizon {
	return dynamo.Horizon{Start: c.Horizon.Start, Stop: c.Horizon.Stop, Step: c.Horizon.Step}
}
