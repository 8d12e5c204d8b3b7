package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goccy/go-yaml"
)

// Carto holds the settings for the external map-service sync.
type Carto struct {
	APIKey   string `yaml:"api_key"`
	Username string `yaml:"username"`
	Table    string `yaml:"table"`
}

type Geocoding struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
}

type Upload struct {
	MaxBytes      int64   `yaml:"max_bytes"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

type Config struct {
	Carto     Carto     `yaml:"carto"`
	Geocoding Geocoding `yaml:"geocoding"`
	Upload    Upload    `yaml:"upload"`
}

// Load reads the optional YAML config file and applies environment
// overrides. Precedence: env > yaml > defaults. The YAML path comes from
// ASSET_REGISTRY_CONFIG and defaults to ./config.yaml; a missing file is
// not an error.
func Load() (*Config, error) {
	cfg := &Config{
		Upload: Upload{
			MaxBytes:      2500000,
			RatePerSecond: 1,
			RateBurst:     3,
		},
	}

	path := os.Getenv("ASSET_REGISTRY_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	if v := os.Getenv("CARTO_API_KEY"); v != "" {
		cfg.Carto.APIKey = v
	}
	if v := os.Getenv("CARTO_USERNAME"); v != "" {
		cfg.Carto.Username = v
	}
	if v := os.Getenv("CARTO_TABLE"); v != "" {
		cfg.Carto.Table = v
	}
	if v := os.Getenv("GOOGLE_MAPS_API_KEY"); v != "" {
		cfg.Geocoding.APIKey = v
	}
	if v := os.Getenv("GEOCODING_ENABLED"); v != "" {
		cfg.Geocoding.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("UPLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Upload.MaxBytes = n
		}
	}

	return cfg, nil
}
