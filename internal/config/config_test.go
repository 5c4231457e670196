package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig lays out a config/dev.yaml in a temp working directory and
// chdirs into it for the duration of the test.
func writeConfig(t *testing.T, yaml string) {
	t.Helper()

	t.Setenv("ENV_NAME", "dev")
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "dev.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoad_Defaults(t *testing.T) {
	writeConfig(t, "server:\n  port: \"9090\"\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("ServerPort = %q, want 9090", cfg.ServerPort)
	}
	if cfg.CacheBackend != "in_memory" {
		t.Errorf("CacheBackend = %q, want in_memory", cfg.CacheBackend)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("CacheTTL = %v, want 15m", cfg.CacheTTL)
	}
	if cfg.ReferenceRetryAttempts != 3 {
		t.Errorf("ReferenceRetryAttempts = %d, want 3", cfg.ReferenceRetryAttempts)
	}
	if cfg.DatasetsMaxRetained != 16 {
		t.Errorf("DatasetsMaxRetained = %d, want 16", cfg.DatasetsMaxRetained)
	}
	if cfg.UploadMaxBytes != 64<<20 {
		t.Errorf("UploadMaxBytes = %d, want 64MiB", cfg.UploadMaxBytes)
	}
	if cfg.ChartWidth != 1024 || cfg.ChartHeight != 600 {
		t.Errorf("chart size = %dx%d, want 1024x600", cfg.ChartWidth, cfg.ChartHeight)
	}
	if len(cfg.Palettes.Seasonal) != 7 {
		t.Errorf("len(Palettes.Seasonal) = %d, want stock 7", len(cfg.Palettes.Seasonal))
	}
}

func TestLoad_FullFile(t *testing.T) {
	writeConfig(t, `
server:
  port: "8081"
reference:
  url: http://refdata.internal/city_states.csv
  timeout: 2s
  retry_attempts: 5
  refresh_interval: 1h
request:
  timeout: 10s
cache:
  backend: memcached
  ttl: 30m
  memcached:
    addrs: "mc1:11211,mc2:11211"
    timeout: 250ms
    max_idle_conns: 8
reliability:
  rate_limit_rps: 20
  rate_limit_burst: 40
datasets:
  upload_max_bytes: 1048576
  max_retained: 4
charts:
  width: 800
  height: 500
  palettes:
    regional_bar: ["#112233"]
shutdown:
  timeout: 10s
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ReferenceURL != "http://refdata.internal/city_states.csv" {
		t.Errorf("ReferenceURL = %q", cfg.ReferenceURL)
	}
	if cfg.ReferenceRefreshInterval != time.Hour {
		t.Errorf("ReferenceRefreshInterval = %v, want 1h", cfg.ReferenceRefreshInterval)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.MemcachedMaxIdleConns != 8 {
		t.Errorf("MemcachedMaxIdleConns = %d, want 8", cfg.MemcachedMaxIdleConns)
	}
	if cfg.RateLimitRPS != 20 || cfg.RateLimitBurst != 40 {
		t.Errorf("rate limit = %d/%d, want 20/40", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.UploadMaxBytes != 1048576 {
		t.Errorf("UploadMaxBytes = %d, want 1048576", cfg.UploadMaxBytes)
	}
	if cfg.DatasetsMaxRetained != 4 {
		t.Errorf("DatasetsMaxRetained = %d, want 4", cfg.DatasetsMaxRetained)
	}
	if cfg.ChartWidth != 800 || cfg.ChartHeight != 500 {
		t.Errorf("chart size = %dx%d, want 800x500", cfg.ChartWidth, cfg.ChartHeight)
	}
	if len(cfg.Palettes.RegionalBar) != 1 || cfg.Palettes.RegionalBar[0] != "#112233" {
		t.Errorf("Palettes.RegionalBar = %v, want the override", cfg.Palettes.RegionalBar)
	}
	// Unset palettes keep the stock colors.
	if len(cfg.Palettes.CityTrends) != 4 {
		t.Errorf("len(Palettes.CityTrends) = %d, want stock 4", len(cfg.Palettes.CityTrends))
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	writeConfig(t, "cache:\n  backend: in_memory\n")
	t.Setenv("CACHE_BACKEND", "memcached")
	t.Setenv("MEMCACHED_ADDRS", "envhost:11211")
	t.Setenv("REFERENCE_URL", "http://env.example/ref.csv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CacheBackend != "memcached" {
		t.Errorf("CacheBackend = %q, want env override memcached", cfg.CacheBackend)
	}
	if cfg.MemcachedAddrs != "envhost:11211" {
		t.Errorf("MemcachedAddrs = %q, want envhost:11211", cfg.MemcachedAddrs)
	}
	if cfg.ReferenceURL != "http://env.example/ref.csv" {
		t.Errorf("ReferenceURL = %q, want env override", cfg.ReferenceURL)
	}
}

func TestLoad_InvalidBackend(t *testing.T) {
	writeConfig(t, "cache:\n  backend: redis\n")

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want error for unknown cache backend")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })

	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want error for missing config file")
	}
}
