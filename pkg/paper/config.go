package paper

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tokenwatch/pkg/confkit"
)

const defaultStartingBalance = 10_000

// Config funds the account and optionally enables trade journaling.
type Config struct {
	StartingBalance float64 `yaml:"starting_balance"`
	JournalDir      string  `yaml:"journal_dir"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open paper config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads paper trading configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustProjectPath("etc/paper.yaml")
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
		return nil, fmt.Errorf("read paper config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal paper config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the stock account funding with journaling disabled.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.StartingBalance == 0 {
		c.StartingBalance = defaultStartingBalance
	}
	c.JournalDir = strings.TrimSpace(os.ExpandEnv(c.JournalDir))
}

// Validate ensures configuration sanity.
func (c *Config) Validate() error {
	if c.StartingBalance <= 0 {
		return fmt.Errorf("paper config: starting_balance must be positive, got %.2f", c.StartingBalance)
	}
	return nil
}
