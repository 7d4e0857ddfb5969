package market

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"tokenwatch/pkg/confkit"
)

// Config lists the quote feeds the application may build, keyed by name.
type Config struct {
	Default   string                     `yaml:"default"`
	Providers map[string]*ProviderConfig `yaml:"providers"`
}

// ProviderConfig holds the settings for one quote feed.
type ProviderConfig struct {
	Type string `yaml:"type"`

	BaseURL string `yaml:"base_url"`

	TimeoutRaw string        `yaml:"timeout"`
	Timeout    time.Duration `yaml:"-"`
	MaxRetries int           `yaml:"max_retries"`

	// Seed feeds deterministic providers such as the sim feed.
	Seed int64 `yaml:"seed"`
}

// ProviderBuilder turns a named ProviderConfig into a live Provider.
type ProviderBuilder func(name string, cfg *ProviderConfig) (Provider, error)

var (
	providerRegistry   = make(map[string]ProviderBuilder)
	providerRegistryMu sync.RWMutex
)

// registryKey folds a provider type name to its canonical registry form.
func registryKey(typeName string) string {
	return strings.ToLower(strings.TrimSpace(typeName))
}

// RegisterProvider makes a provider type available to config loading. Feed
// packages call this from init.
func RegisterProvider(typeName string, builder ProviderBuilder) {
	providerRegistryMu.Lock()
	defer providerRegistryMu.Unlock()
	providerRegistry[registryKey(typeName)] = builder
}

func lookupProviderBuilder(typeName string) (ProviderBuilder, bool) {
	providerRegistryMu.RLock()
	defer providerRegistryMu.RUnlock()
	builder, ok := providerRegistry[registryKey(typeName)]
	return builder, ok
}

// LoadConfig reads and validates a provider config file.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read market config %s: %w", path, err)
	}
	return parseConfig(data)
}

// MustLoad loads etc/market.yaml from the repository root and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/market.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader parses provider config from an arbitrary reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse market config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.Providers == nil {
		c.Providers = make(map[string]*ProviderConfig)
	}
	for name, provider := range c.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			c.Providers[name] = provider
		}
		if err := provider.normalize(name); err != nil {
			return err
		}
	}
	return nil
}

// normalize expands env references and parses raw durations in place.
func (p *ProviderConfig) normalize(name string) error {
	p.Type = strings.TrimSpace(os.ExpandEnv(p.Type))
	p.BaseURL = strings.TrimSpace(os.ExpandEnv(p.BaseURL))
	p.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(p.TimeoutRaw))
	if p.TimeoutRaw == "" {
		return nil
	}
	d, err := time.ParseDuration(p.TimeoutRaw)
	if err != nil {
		return fmt.Errorf("market provider %s: parse timeout %q: %w", name, p.TimeoutRaw, err)
	}
	if d <= 0 {
		return fmt.Errorf("market provider %s: timeout %s is not positive", name, d)
	}
	p.Timeout = d
	return nil
}

// Validate checks that every provider names a registered type and that the
// default, when set, points at a defined provider.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("market config: at least one provider must be defined")
	}
	if c.Default != "" {
		if _, ok := c.Providers[c.Default]; !ok {
			return fmt.Errorf("market config: default %q does not match any provider", c.Default)
		}
	}
	for name, provider := range c.Providers {
		switch {
		case strings.TrimSpace(name) == "":
			return errors.New("market config: provider name cannot be empty")
		case provider == nil:
			return fmt.Errorf("market config: provider %s has no settings", name)
		case strings.TrimSpace(provider.Type) == "":
			return fmt.Errorf("market config: provider %s is missing a type", name)
		}
		if _, ok := lookupProviderBuilder(provider.Type); !ok {
			return fmt.Errorf("market config: provider %s has unsupported type %q", name, provider.Type)
		}
	}
	return nil
}

// BuildProviders constructs one Provider per configured entry.
func (c *Config) BuildProviders() (map[string]Provider, error) {
	result := make(map[string]Provider, len(c.Providers))
	for name, providerCfg := range c.Providers {
		builder, ok := lookupProviderBuilder(providerCfg.Type)
		if !ok {
			return nil, fmt.Errorf("market provider %s: no builder registered for type %q", name, providerCfg.Type)
		}
		provider, err := builder(name, providerCfg)
		if err != nil {
			return nil, fmt.Errorf("market provider %s: %w", name, err)
		}
		result[name] = provider
	}
	return result, nil
}

// DefaultProvider picks the configured default, falling back to the only
// provider when exactly one is defined.
func (c *Config) DefaultProvider(providers map[string]Provider) (string, Provider, error) {
	if c.Default != "" {
		p, ok := providers[c.Default]
		if !ok {
			return "", nil, fmt.Errorf("market config: default provider %q not built", c.Default)
		}
		return c.Default, p, nil
	}
	if len(providers) == 1 {
		for name, p := range providers {
			return name, p, nil
		}
	}
	return "", nil, fmt.Errorf("market config: no default provider configured")
}
