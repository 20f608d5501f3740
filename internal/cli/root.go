package cli

import (
	"path/filepath"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"option-pricer/internal/config"
	"option-pricer/internal/logging"
	"option-pricer/internal/pricing"
	"option-pricer/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-16"
)

// App holds the application dependencies.
type App struct {
	Config    *config.Config
	ConfigDir string
	Logger    zerolog.Logger
	Store     store.RunStore
	Service   *pricing.Service
}

// NewRootCmd creates the root command for the CLI. When cfg is nil the
// configuration is loaded from --config (or the default directory) before
// any subcommand runs.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "pricer",
		Short: "European option pricer",
		Long: `Prices European call and put options with the Black-Scholes model
and by Monte Carlo simulation of geometric Brownian motion.

Volatility can be given directly or estimated from a CSV price history.
Every pricing run is recorded and can be listed with 'pricer history'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/option-pricer)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addPricingCommands(rootCmd, app)
	addHistoryCommands(rootCmd, app)

	return rootCmd
}

// setup loads configuration if needed and wires the store and pricing service.
func (app *App) setup(cmd *cobra.Command) error {
	app.ConfigDir, _ = cmd.Flags().GetString("config")
	if app.ConfigDir == "" {
		app.ConfigDir = config.DefaultConfigDir()
	}

	if app.Config == nil {
		cfg, err := config.Load(app.ConfigDir)
		if err != nil {
			return err
		}
		app.Config = cfg
		app.Logger = logging.NewLoggerWithConfig(cfg.Logging)
	}

	// Handle debug flag
	debug, _ := cmd.Flags().GetBool("debug")
	if debug {
		logging.SetDebugLevel()
		app.Logger = app.Logger.Level(zerolog.DebugLevel)
	}

	if !app.Config.UI.ColorEnabled {
		color.NoColor = true
	}

	if app.Service != nil {
		return nil
	}

	if app.Config.Store.Enabled && app.Store == nil {
		runStore, err := store.NewSQLiteStore(app.Config.Store.Path)
		if err != nil {
			app.Logger.Warn().Err(err).Msg("Failed to initialize store, run history unavailable")
		} else {
			app.Store = runStore
			app.Logger.Debug().Str("path", app.Config.Store.Path).Msg("SQLite store initialized")
		}
	}

	app.Service = pricing.NewService(app.Logger, app.Store, app.Config.MonteCarlo.Workers)
	return nil
}

// Close releases the run store.
func (app *App) Close() error {
	if app.Store == nil {
		return nil
	}
	err := app.Store.Close()
	app.Store = nil
	app.Service = nil
	return err
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Option Pricer v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := filepath.Join(app.ConfigDir, "config.toml")
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Pricing")
	output.Printf("  Option Type:     %s\n", cfg.Pricing.OptionType)
	output.Printf("  Rate:            %s\n", FormatPercent(cfg.Pricing.Rate, 2))
	output.Println()

	output.Bold("Monte Carlo")
	output.Printf("  Samples:         %d\n", cfg.MonteCarlo.NumSamples)
	output.Printf("  Trajectories:    %d\n", cfg.MonteCarlo.NumTrajectories)
	output.Printf("  Steps:           %d\n", cfg.MonteCarlo.NumSteps)
	if cfg.MonteCarlo.Seed == 0 {
		output.Printf("  Seed:            random\n")
	} else {
		output.Printf("  Seed:            %d\n", cfg.MonteCarlo.Seed)
	}
	output.Printf("  Workers:         %d\n", cfg.MonteCarlo.Workers)
	output.Println()

	output.Bold("Volatility")
	output.Printf("  Periods/Year:    %d\n", cfg.Volatility.PeriodsPerYear)
	output.Printf("  Price Field:     %s\n", cfg.Volatility.PriceField)
	output.Println()

	output.Bold("Run History")
	output.Printf("  Enabled:         %v\n", cfg.Store.Enabled)
	output.Printf("  Path:            %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  File:            %v\n", cfg.Logging.File)
}
