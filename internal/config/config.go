package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	appName = "overlyric"

	DefaultLrclibURL = "https://lrclib.net/api"

	MinPollInterval = 50 * time.Millisecond
	MaxPollInterval = 2 * time.Second
)

type Config struct {
	MprisService       string  `koanf:"mpris_service"` // empty follows the first player on the bus
	LrclibURL          string  `koanf:"lrclib_url"`
	HTTPTimeoutSeconds int     `koanf:"http_timeout_seconds"`
	SyncOffset         float64 `koanf:"sync_offset"` // seconds added to the position estimate
	PollIntervalMS     int     `koanf:"poll_interval_ms"`
	NoSessionBackoffMS int     `koanf:"no_session_backoff_ms"`
	ResyncOnStart      bool    `koanf:"resync_on_start"`
	SettleDelayMS      int     `koanf:"settle_delay_ms"`
	MetricsAddr        string  `koanf:"metrics_addr"`

	Sync     SyncConfig     `koanf:"sync"`
	Resolver ResolverConfig `koanf:"resolver"`
	Theme    ThemeConfig    `koanf:"theme"`
	Display  DisplayConfig  `koanf:"display"`
	Cache    CacheConfig    `koanf:"cache"`
	Log      LogConfig      `koanf:"log"`
}

type SyncConfig struct {
	PauseCorrectionMS int `koanf:"pause_correction_ms"`
	SeekThresholdMS   int `koanf:"seek_threshold_ms"` // 0 disables seek detection
}

type ResolverConfig struct {
	DurationThresholdSeconds float64 `koanf:"duration_threshold_seconds"`
}

type ThemeConfig struct {
	Clusters  int    `koanf:"clusters"`
	Clusterer string `koanf:"clusterer"` // "kmeans" or "prominent"
	Seed      uint64 `koanf:"seed"`
}

type DisplayConfig struct {
	TwoLine bool   `koanf:"two_line"`
	Mode    string `koanf:"mode"` // "auto", "overlay" or "plain"
}

type CacheConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
	TTLDays int    `koanf:"ttl_days"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "text", "json" or "logfmt"
	File   string `koanf:"file"`
}

func Default() *Config {
	return &Config{
		LrclibURL:          DefaultLrclibURL,
		HTTPTimeoutSeconds: 10,
		PollIntervalMS:     100,
		NoSessionBackoffMS: 2000,
		SettleDelayMS:      100,
		Sync: SyncConfig{
			PauseCorrectionMS: 500,
			SeekThresholdMS:   3000,
		},
		Resolver: ResolverConfig{DurationThresholdSeconds: 10},
		Theme: ThemeConfig{
			Clusters:  5,
			Clusterer: "kmeans",
			Seed:      42,
		},
		Display: DisplayConfig{TwoLine: true, Mode: "auto"},
		Cache:   CacheConfig{Enabled: true, TTLDays: 30},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load layers defaults, config files and environment variables.
func Load() (*Config, error) {
	return LoadFrom(getConfigPaths())
}

// LoadFile loads a single file the user named. Unlike the search paths, a
// missing file is an error.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	return LoadFrom([]string{path})
}

// LoadFrom layers the given paths in order, skipping those that do not exist.
func LoadFrom(paths []string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	cfg.LrclibURL = strings.TrimSuffix(cfg.LrclibURL, "/")
	cfg.Cache.Dir = expandPath(cfg.Cache.Dir)
	cfg.Log.File = expandPath(cfg.Log.File)

	return cfg, nil
}

func getConfigPaths() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		appName + ".toml",
	}
}

func applyEnv(cfg *Config) {
	cfg.MprisService = getEnvOrDefault("MPRIS_SERVICE", cfg.MprisService)
	cfg.LrclibURL = getEnvOrDefault("LRCLIB_URL", cfg.LrclibURL)
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", cfg.MetricsAddr)
	cfg.Log.Level = getEnvOrDefault("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnvOrDefault("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.File = getEnvOrDefault("LOG_FILE", cfg.Log.File)
	cfg.Cache.Dir = getEnvOrDefault("CACHE_DIR", cfg.Cache.Dir)

	if v, err := strconv.ParseFloat(os.Getenv("SYNC_OFFSET"), 64); err == nil {
		cfg.SyncOffset = v
	}
	if v, err := strconv.Atoi(os.Getenv("POLL_INTERVAL_MS")); err == nil {
		cfg.PollIntervalMS = v
	}
	if v, ok := envBool("RESYNC_ON_START"); ok {
		cfg.ResyncOnStart = v
	}
	if v, ok := envBool("TWO_LINE"); ok {
		cfg.Display.TwoLine = v
	}
	if v, ok := envBool("NO_CACHE"); ok {
		cfg.Cache.Enabled = !v
	}
}

func getEnvOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func envBool(key string) (bool, bool) {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Validate clamps the poll interval and rejects values nothing downstream can
// work with.
func (c *Config) Validate() error {
	var errs []error

	if c.PollIntervalMS < int(MinPollInterval/time.Millisecond) {
		c.PollIntervalMS = int(MinPollInterval / time.Millisecond)
	}
	if c.PollIntervalMS > int(MaxPollInterval/time.Millisecond) {
		c.PollIntervalMS = int(MaxPollInterval / time.Millisecond)
	}

	if u, err := url.Parse(c.LrclibURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("lrclib_url %q is not an absolute url", c.LrclibURL))
	}
	if c.HTTPTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("http_timeout_seconds must be positive"))
	}
	if c.Theme.Clusters < 2 || c.Theme.Clusters > 10 {
		errs = append(errs, fmt.Errorf("theme.clusters must be between 2 and 10, got %d", c.Theme.Clusters))
	}
	switch c.Theme.Clusterer {
	case "", "kmeans", "prominent":
	default:
		errs = append(errs, fmt.Errorf("unknown theme.clusterer %q", c.Theme.Clusterer))
	}
	if c.Resolver.DurationThresholdSeconds <= 0 {
		errs = append(errs, errors.New("resolver.duration_threshold_seconds must be positive"))
	}
	if c.Sync.PauseCorrectionMS < 0 || c.Sync.SeekThresholdMS < 0 {
		errs = append(errs, errors.New("sync values cannot be negative"))
	}
	switch c.Display.Mode {
	case "", "auto", "overlay", "plain":
	default:
		errs = append(errs, fmt.Errorf("unknown display.mode %q", c.Display.Mode))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log.level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "", "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c *Config) NoSessionBackoff() time.Duration {
	return time.Duration(c.NoSessionBackoffMS) * time.Millisecond
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c *Config) SyncOffsetDuration() time.Duration {
	return time.Duration(c.SyncOffset * float64(time.Second))
}

func (c *Config) PauseCorrection() time.Duration {
	return time.Duration(c.Sync.PauseCorrectionMS) * time.Millisecond
}

func (c *Config) SeekThreshold() time.Duration {
	return time.Duration(c.Sync.SeekThresholdMS) * time.Millisecond
}

func (c *Config) DurationThreshold() time.Duration {
	return time.Duration(c.Resolver.DurationThresholdSeconds * float64(time.Second))
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLDays) * 24 * time.Hour
}
