package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uakhmed/temperature-dashboard-service/internal/render"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	// ReferenceURL points at the city-to-state reference CSV. Empty disables
	// reference fetching; cleaning then runs with no reference table.
	ReferenceURL             string
	ReferenceTimeout         time.Duration
	ReferenceRetryAttempts   int
	ReferenceRetryBaseDelay  time.Duration
	ReferenceRetryMaxDelay   time.Duration
	ReferenceRefreshInterval time.Duration

	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheBackend   string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	UploadMaxBytes      int64
	DatasetsMaxRetained int

	ChartWidth  int
	ChartHeight int
	Palettes    render.Palettes

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Reference struct {
		URL             string `yaml:"url"`
		Timeout         string `yaml:"timeout"`
		RetryAttempts   int    `yaml:"retry_attempts"`
		RetryBaseDelay  string `yaml:"retry_base_delay"`
		RetryMaxDelay   string `yaml:"retry_max_delay"`
		RefreshInterval string `yaml:"refresh_interval"`
	} `yaml:"reference"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Datasets struct {
		UploadMaxBytes int64 `yaml:"upload_max_bytes"`
		MaxRetained    int   `yaml:"max_retained"`
	} `yaml:"datasets"`

	Charts struct {
		Width    int             `yaml:"width"`
		Height   int             `yaml:"height"`
		Palettes render.Palettes `yaml:"palettes"`
	} `yaml:"charts"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev).
// Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.ReferenceURL = strings.TrimSpace(os.Getenv("REFERENCE_URL"))
	if cfg.ReferenceURL == "" {
		cfg.ReferenceURL = strings.TrimSpace(fc.Reference.URL)
	}
	cfg.ReferenceTimeout = parseDuration(fc.Reference.Timeout, 5*time.Second)
	cfg.ReferenceRetryAttempts = fc.Reference.RetryAttempts
	if cfg.ReferenceRetryAttempts <= 0 {
		cfg.ReferenceRetryAttempts = 3
	}
	cfg.ReferenceRetryBaseDelay = parseDuration(fc.Reference.RetryBaseDelay, 200*time.Millisecond)
	cfg.ReferenceRetryMaxDelay = parseDuration(fc.Reference.RetryMaxDelay, 5*time.Second)
	cfg.ReferenceRefreshInterval = parseDurationOrZero(fc.Reference.RefreshInterval, 0)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 30*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 15*time.Minute)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	cfg.UploadMaxBytes = fc.Datasets.UploadMaxBytes
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = 64 << 20
	}
	cfg.DatasetsMaxRetained = fc.Datasets.MaxRetained
	if cfg.DatasetsMaxRetained <= 0 {
		cfg.DatasetsMaxRetained = 16
	}

	cfg.ChartWidth = fc.Charts.Width
	if cfg.ChartWidth <= 0 {
		cfg.ChartWidth = 1024
	}
	cfg.ChartHeight = fc.Charts.Height
	if cfg.ChartHeight <= 0 {
		cfg.ChartHeight = 600
	}
	cfg.Palettes = mergePalettes(fc.Charts.Palettes)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergePalettes fills unset palette entries with the stock colors so a config
// file can override one chart's colors without restating the rest.
func mergePalettes(p render.Palettes) render.Palettes {
	defaults := render.DefaultPalettes()
	if len(p.RegionalBar) == 0 {
		p.RegionalBar = defaults.RegionalBar
	}
	if len(p.Seasonal) == 0 {
		p.Seasonal = defaults.Seasonal
	}
	if len(p.CityTrends) == 0 {
		p.CityTrends = defaults.CityTrends
	}
	if len(p.Heatmap) == 0 {
		p.Heatmap = defaults.Heatmap
	}
	if p.NoData == "" {
		p.NoData = defaults.NoData
	}
	return p
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.ReferenceURL != "" && cfg.RequestTimeout <= cfg.ReferenceTimeout {
		cfg.RequestTimeout = cfg.ReferenceTimeout + time.Second
	}
	return nil
}
