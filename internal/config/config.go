// Package config loads pipeline settings from an optional YAML file.
// Flags and environment variables layered on top by the caller win
// over file values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the extraction pipeline settings.
type Config struct {
	EmailDir string `yaml:"email_dir"`
	PDFDir   string `yaml:"pdf_dir"`

	EVCCURL     string `yaml:"evcc_url"`
	EVCCEnabled bool   `yaml:"evcc_enabled"`

	HomeElectricityRate  float64 `yaml:"home_electricity_rate"`
	DefaultCurrency      string  `yaml:"default_currency"`
	MinimumCostThreshold float64 `yaml:"minimum_cost_threshold"`
	LookbackDays         int     `yaml:"lookback_days"`
}

// Default returns the built-in settings used when no file is present.
func Default() *Config {
	return &Config{
		EVCCURL:              "http://homeassistant.local:7070",
		HomeElectricityRate:  0.25,
		DefaultCurrency:      "AUD",
		MinimumCostThreshold: 0.10,
		LookbackDays:         30,
	}
}

// Load reads the YAML file at path over the defaults. A missing file
// is not an error; every field the file omits keeps its default.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}
