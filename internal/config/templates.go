package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Option Pricer Configuration

[pricing]
# Default option type when --type is not given: "call" or "put"
option_type = "call"
# Default continuously-compounded risk-free rate
rate = 0.05

[montecarlo]
# Terminal-price samples used for the price estimate
num_samples = 1000
# Trajectories generated for path export
num_trajectories = 10000
# Time steps per trajectory
num_steps = 100
# Random seed; 0 picks a fresh seed for every run
seed = 0
# Worker goroutines; 0 uses all CPUs, 1 runs sequentially
workers = 1

[volatility]
# Observations per year used to annualize log-return volatility
periods_per_year = 252
# Column of the price history to use: open, high, low, close
price_field = "high"

[store]
# Record every pricing run in a local SQLite database
enabled = true
# path = "~/.config/option-pricer/pricer.db"

[ui]
# Enable colored output
color_enabled = true
# Decimal places shown for prices and Greeks
precision = 4

[logging]
# Log level: trace, debug, info, warn, error, off
level = "info"
console = true
file = false
max_size = 100
max_backups = 7
max_age = 30
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}
