package watch

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tokenwatch/pkg/confkit"
)

// Defaults applied when the corresponding field is absent from the file.
const (
	defaultRefreshIntervalRaw = "3s"
	defaultRateLimit          = 300
	defaultRateWindowRaw      = "1m"
	defaultBatchSize          = 10
	defaultMaxTrackedTokens   = 6
)

// Config tunes the watch engine: which provider feeds it, how often tracked
// tokens refresh, the shared request budget, and the tracking capacity.
type Config struct {
	// Provider names an entry in the market config. Empty selects the market
	// config's default provider.
	Provider string `yaml:"provider"`

	RefreshInterval time.Duration `yaml:"-"`
	RateLimit       int           `yaml:"rate_limit"`
	RateWindow      time.Duration `yaml:"-"`

	BatchSize        int `yaml:"batch_size"`
	MaxTrackedTokens int `yaml:"max_tracked_tokens"`

	RefreshIntervalRaw string `yaml:"refresh_interval"`
	RateWindowRaw      string `yaml:"rate_window"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open watch config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads watch configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/watch.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read watch config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal watch config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config carrying the stock tuning, ready for use without a file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	c.Provider = strings.TrimSpace(os.ExpandEnv(c.Provider))
	if strings.TrimSpace(c.RefreshIntervalRaw) == "" {
		c.RefreshIntervalRaw = defaultRefreshIntervalRaw
	}
	if strings.TrimSpace(c.RateWindowRaw) == "" {
		c.RateWindowRaw = defaultRateWindowRaw
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.BatchSize == 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxTrackedTokens == 0 {
		c.MaxTrackedTokens = defaultMaxTrackedTokens
	}
}

func (c *Config) parseDurations() error {
	var err error
	c.RefreshInterval, err = parsePositiveDuration("refresh_interval", c.RefreshIntervalRaw)
	if err != nil {
		return err
	}
	c.RateWindow, err = parsePositiveDuration("rate_window", c.RateWindowRaw)
	return err
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("watch config: refresh_interval must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("watch config: rate_limit must be positive")
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("watch config: rate_window must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("watch config: batch_size must be positive")
	}
	if c.MaxTrackedTokens <= 0 {
		return fmt.Errorf("watch config: max_tracked_tokens must be positive")
	}
	return nil
}

func parsePositiveDuration(field, value string) (time.Duration, error) {
	value = strings.TrimSpace(os.ExpandEnv(value))
	if value == "" {
		return 0, fmt.Errorf("watch config: %s is required", field)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("watch config: invalid %s %q: %w", field, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("watch config: %s must be positive, got %s", field, d)
	}
	return d, nil
}
