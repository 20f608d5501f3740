// Package config provides configuration management for the option pricer.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"

	perrors "option-pricer/internal/errors"
	"option-pricer/internal/logging"
)

// Config holds all application configuration.
type Config struct {
	Pricing    PricingConfig     `mapstructure:"pricing"`
	MonteCarlo MonteCarloConfig  `mapstructure:"montecarlo"`
	Volatility VolatilityConfig  `mapstructure:"volatility"`
	Store      StoreConfig       `mapstructure:"store"`
	UI         UIConfig          `mapstructure:"ui"`
	Logging    logging.LogConfig `mapstructure:"logging"`
}

// PricingConfig holds defaults applied when a flag is not given.
type PricingConfig struct {
	OptionType string  `mapstructure:"option_type"` // call, put
	Rate       float64 `mapstructure:"rate"`
}

// MonteCarloConfig holds simulation sizes and the random seed.
type MonteCarloConfig struct {
	NumSamples      int    `mapstructure:"num_samples"`
	NumTrajectories int    `mapstructure:"num_trajectories"`
	NumSteps        int    `mapstructure:"num_steps"`
	Seed            uint64 `mapstructure:"seed"`    // 0 picks a fresh seed per run
	Workers         int    `mapstructure:"workers"` // 0 uses all CPUs, 1 runs sequentially
}

// VolatilityConfig holds historical volatility settings.
type VolatilityConfig struct {
	PeriodsPerYear int    `mapstructure:"periods_per_year"`
	PriceField     string `mapstructure:"price_field"` // open, high, low, close
}

// StoreConfig holds run history settings.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool  `mapstructure:"color_enabled"`
	Precision    int32 `mapstructure:"precision"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/option-pricer"
	}
	return filepath.Join(home, ".config", "option-pricer")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v, DefaultConfigDir())
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by a commented template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	// Apply environment variable overrides
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("pricing.option_type", "call")
	v.SetDefault("pricing.rate", 0.05)

	v.SetDefault("montecarlo.num_samples", 1000)
	v.SetDefault("montecarlo.num_trajectories", 10000)
	v.SetDefault("montecarlo.num_steps", 100)
	v.SetDefault("montecarlo.seed", 0)
	v.SetDefault("montecarlo.workers", 1)

	v.SetDefault("volatility.periods_per_year", 252)
	v.SetDefault("volatility.price_field", "high")

	v.SetDefault("store.enabled", true)
	v.SetDefault("store.path", filepath.Join(configDir, "pricer.db"))

	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.precision", 4)

	logCfg := logging.DefaultLogConfig()
	v.SetDefault("logging.level", logCfg.Level)
	v.SetDefault("logging.console", logCfg.Console)
	v.SetDefault("logging.file", logCfg.File)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "pricer.log"))
	v.SetDefault("logging.max_size", logCfg.MaxSize)
	v.SetDefault("logging.max_backups", logCfg.MaxBackups)
	v.SetDefault("logging.max_age", logCfg.MaxAge)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PRICER_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("PRICER_SEED: %w", err)
		}
		cfg.MonteCarlo.Seed = seed
	}
	if v := os.Getenv("PRICER_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PRICER_WORKERS: %w", err)
		}
		cfg.MonteCarlo.Workers = workers
	}
	if v := os.Getenv("PRICER_DB_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("PRICER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate validates the configuration. Errors wrap errors.ErrConfigInvalid.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", perrors.ErrConfigInvalid, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Pricing.OptionType {
	case "call", "put":
	default:
		return fmt.Errorf("invalid option_type: %s (must be 'call' or 'put')", c.Pricing.OptionType)
	}

	if c.MonteCarlo.NumSamples <= 0 {
		return fmt.Errorf("num_samples must be positive")
	}
	if c.MonteCarlo.NumTrajectories <= 0 {
		return fmt.Errorf("num_trajectories must be positive")
	}
	if c.MonteCarlo.NumSteps <= 0 {
		return fmt.Errorf("num_steps must be positive")
	}
	if c.MonteCarlo.Workers < 0 {
		return fmt.Errorf("workers must be non-negative")
	}

	if c.Volatility.PeriodsPerYear <= 0 {
		return fmt.Errorf("periods_per_year must be positive")
	}
	switch c.Volatility.PriceField {
	case "open", "high", "low", "close":
	default:
		return fmt.Errorf("invalid price_field: %s (must be open, high, low or close)", c.Volatility.PriceField)
	}

	if c.Store.Enabled && c.Store.Path == "" {
		return fmt.Errorf("store.path is required when the store is enabled")
	}
	if c.UI.Precision < 0 || c.UI.Precision > 12 {
		return fmt.Errorf("precision must be between 0 and 12")
	}

	return nil
}
