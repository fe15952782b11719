// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPAddr    string `yaml:"httpAddr"`
	LogLevel    string `yaml:"logLevel"`
	LogFormat   string `yaml:"logFormat"`
	DatabaseURL string `yaml:"databaseURL"`
	// AutoMigrate applies the embedded schema migrations at startup.
	AutoMigrate bool `yaml:"autoMigrate"`

	Assets       Assets        `yaml:"assets"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`

	Prefetch Prefetch `yaml:"prefetch"`
}

// Assets are the sources of the static map data. Each may be an http(s)
// URL, a file:// URL or a local path.
type Assets struct {
	WorldLandURL            string `yaml:"worldLand"`
	WaterRegionsURL         string `yaml:"waterRegions"`
	WorldRegionsURL         string `yaml:"worldRegions"`
	HistoricalDataURL       string `yaml:"historicalData"`
	FutureDataURLTemplate   string `yaml:"futureDataTemplate"`
	RegionDetailURLTemplate string `yaml:"regionDetailTemplate"`
}

// Prefetch configures archive warming. It only runs with a database.
type Prefetch struct {
	Regions   []int         `yaml:"regions"`
	Scenarios []string      `yaml:"scenarios"`
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
}

func Default() Config {
	return Config{
		HTTPAddr:     ":8081",
		LogLevel:     "info",
		LogFormat:    "json",
		FetchTimeout: 30 * time.Second,
		Prefetch: Prefetch{
			Interval:  time.Hour,
			Retention: 30 * 24 * time.Hour,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies the
// environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv is Load with the file path taken from CONFIG_FILE.
func FromEnv() (Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	envOr := func(key string, fallback string) string {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return fallback
		}
		return v
	}

	c.HTTPAddr = envOr("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)

	c.Assets.WorldLandURL = envOr("WORLD_LAND_URL", c.Assets.WorldLandURL)
	c.Assets.WaterRegionsURL = envOr("WATER_REGIONS_URL", c.Assets.WaterRegionsURL)
	c.Assets.WorldRegionsURL = envOr("WORLD_REGIONS_URL", c.Assets.WorldRegionsURL)
	c.Assets.HistoricalDataURL = envOr("HISTORICAL_DATA_URL", c.Assets.HistoricalDataURL)
	c.Assets.FutureDataURLTemplate = envOr("FUTURE_DATA_URL_TEMPLATE", c.Assets.FutureDataURLTemplate)
	c.Assets.RegionDetailURLTemplate = envOr("REGION_DETAIL_URL_TEMPLATE", c.Assets.RegionDetailURLTemplate)

	if raw := envOr("DB_AUTO_MIGRATE", ""); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("DB_AUTO_MIGRATE: %w", err)
		}
		c.AutoMigrate = v
	}
	if raw := envOr("FETCH_TIMEOUT", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("FETCH_TIMEOUT: %w", err)
		}
		c.FetchTimeout = d
	}
	if raw := envOr("PREFETCH_REGIONS", ""); raw != "" {
		regions, err := parseRegions(raw)
		if err != nil {
			return fmt.Errorf("PREFETCH_REGIONS: %w", err)
		}
		c.Prefetch.Regions = regions
	}
	if raw := envOr("PREFETCH_INTERVAL", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("PREFETCH_INTERVAL: %w", err)
		}
		c.Prefetch.Interval = d
	}
	return nil
}

// parseRegions reads a comma separated list of region ids.
func parseRegions(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid region id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

// Validate checks settings that would otherwise fail late.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPAddr) == "" {
		errs = append(errs, errors.New("httpAddr is required"))
	}
	if t := c.Assets.RegionDetailURLTemplate; t != "" && !strings.Contains(t, "{regionId}") {
		errs = append(errs, errors.New("regionDetailTemplate must contain {regionId}"))
	}
	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logFormat %q must be json or console", c.LogFormat))
	}
	if c.FetchTimeout < 0 {
		errs = append(errs, errors.New("fetchTimeout must not be negative"))
	}
	if c.Prefetch.Interval < 0 || c.Prefetch.Retention < 0 {
		errs = append(errs, errors.New("prefetch durations must not be negative"))
	}
	return errors.Join(errs...)
}

// HasAssets reports whether every base map source is configured.
func (a Assets) HasAssets() bool {
	return a.WorldLandURL != "" && a.WaterRegionsURL != "" && a.HistoricalDataURL != ""
}
