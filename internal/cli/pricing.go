package cli

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"option-pricer/internal/marketdata"
	"option-pricer/internal/models"
	"option-pricer/internal/pricing"
)

// addPricingCommands adds the pricing model commands.
func addPricingCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newBlackScholesCmd(app))
	rootCmd.AddCommand(newMonteCarloCmd(app))
	rootCmd.AddCommand(newPathsCmd(app))
	rootCmd.AddCommand(newVolatilityCmd(app))
}

// marketFlags registers the market parameter flags shared by the pricing commands.
func marketFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("spot", 0, "current price of the underlying (required)")
	cmd.Flags().Float64("strike", 0, "strike price (required)")
	cmd.Flags().Float64("maturity", 0, "time to expiry in years (required)")
	cmd.Flags().Float64("rate", 0, "continuously compounded risk-free rate (default from config)")
	cmd.Flags().Float64("vol", 0, "annualized volatility, e.g. 0.2")
	cmd.MarkFlagRequired("spot")
	cmd.MarkFlagRequired("strike")
	cmd.MarkFlagRequired("maturity")
}

// historyFlags registers the flags that select a price history for volatility estimation.
func historyFlags(cmd *cobra.Command) {
	cmd.Flags().String("history", "", "CSV file with Date,Open,High,Low,Close,Volume columns")
	cmd.Flags().String("field", "", "price column used for volatility: open, high, low, close (default from config)")
	cmd.Flags().Int("periods", 0, "observations per year (default from config)")
}

// marketParams reads the market flags. The volatility is left as given
// (possibly zero) so that pricers report degenerate inputs themselves.
func (app *App) marketParams(cmd *cobra.Command) models.MarketParameters {
	spot, _ := cmd.Flags().GetFloat64("spot")
	strike, _ := cmd.Flags().GetFloat64("strike")
	maturity, _ := cmd.Flags().GetFloat64("maturity")
	vol, _ := cmd.Flags().GetFloat64("vol")

	rate := app.Config.Pricing.Rate
	if cmd.Flags().Changed("rate") {
		rate, _ = cmd.Flags().GetFloat64("rate")
	}

	return models.MarketParameters{
		Spot:       spot,
		Strike:     strike,
		Maturity:   maturity,
		Rate:       rate,
		Volatility: vol,
	}
}

// historyRequest loads the price history named by --history. It returns nil
// when the flag is not set.
func (app *App) historyRequest(cmd *cobra.Command) (*pricing.HistoryRequest, error) {
	path, _ := cmd.Flags().GetString("history")
	if path == "" {
		return nil, nil
	}

	field := models.PriceField(app.Config.Volatility.PriceField)
	if cmd.Flags().Changed("field") {
		name, _ := cmd.Flags().GetString("field")
		field = models.PriceField(strings.ToLower(name))
	}
	periods := intFlag(cmd, "periods", app.Config.Volatility.PeriodsPerYear)

	bars, err := marketdata.LoadCSV(path)
	if err != nil {
		return nil, err
	}
	app.Logger.Debug().
		Str("file", path).
		Str("field", string(field)).
		Int("bars", len(bars)).
		Msg("Loaded price history")

	return &pricing.HistoryRequest{Bars: bars, Field: field, PeriodsPerYear: periods}, nil
}

// optionTypes parses --type, accepting "both" when allowBoth is set.
func (app *App) optionTypes(cmd *cobra.Command, allowBoth bool) ([]models.OptionType, error) {
	name := app.Config.Pricing.OptionType
	if cmd.Flags().Changed("type") {
		name, _ = cmd.Flags().GetString("type")
	}
	if allowBoth && strings.EqualFold(name, "both") {
		return []models.OptionType{models.Call, models.Put}, nil
	}
	ot, err := models.ParseOptionType(name)
	if err != nil {
		return nil, err
	}
	return []models.OptionType{ot}, nil
}

func intFlag(cmd *cobra.Command, name string, fallback int) int {
	if !cmd.Flags().Changed(name) {
		return fallback
	}
	v, _ := cmd.Flags().GetInt(name)
	return v
}

func seedFlag(cmd *cobra.Command, fallback uint64) uint64 {
	if !cmd.Flags().Changed("seed") {
		return fallback
	}
	v, _ := cmd.Flags().GetUint64("seed")
	return v
}

func newBlackScholesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bs",
		Short: "Black-Scholes price and Greeks",
		Long: `Price a European option in closed form and report delta, gamma,
vega, theta and rho. Volatility is taken from --vol or estimated from
--history.`,
		Example: `  pricer bs --spot 100 --strike 110 --maturity 1 --rate 0.05 --vol 0.2
  pricer bs --spot 100 --strike 110 --maturity 1 --history prices.csv --type both`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			types, err := app.optionTypes(cmd, true)
			if err != nil {
				return err
			}
			history, err := app.historyRequest(cmd)
			if err != nil {
				return err
			}
			if history == nil && !cmd.Flags().Changed("vol") {
				return fmt.Errorf("one of --vol or --history is required")
			}

			resp, err := app.Service.BlackScholes(cmd.Context(), pricing.BlackScholesRequest{
				Params:  app.marketParams(cmd),
				Types:   types,
				History: history,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(resp)
			}

			prec := app.Config.UI.Precision
			output.Bold("Black-Scholes")
			printParams(output, resp.Params, prec)
			if history != nil {
				output.Info("Volatility estimated from %d prices: %s", len(history.Bars), FormatPercent(resp.Volatility, 2))
			}
			output.Println()

			table := NewTable(output, "TYPE", "PRICE", "DELTA", "GAMMA", "VEGA", "THETA", "RHO")
			for _, res := range resp.Results {
				table.AddRow(
					res.OptionType.String(),
					FormatValue(res.Price, prec),
					output.Signed(res.Delta, FormatSigned(res.Delta, prec)),
					FormatValue(res.Gamma, prec),
					FormatValue(res.Vega, prec),
					output.Signed(res.Theta, FormatSigned(res.Theta, prec)),
					output.Signed(res.Rho, FormatSigned(res.Rho, prec)),
				)
			}
			table.Render()
			output.Println()
			output.Dim("Put-call parity gap: %.2e", resp.ParityGap)
			return nil
		},
	}

	marketFlags(cmd)
	historyFlags(cmd)
	cmd.Flags().String("type", "", "option type: call, put or both (default from config)")

	return cmd
}

func newMonteCarloCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mc",
		Short: "Monte Carlo price estimate",
		Long: `Estimate a European option price by sampling terminal prices of
geometric Brownian motion. The estimate is reported with its standard error
and compared with the Black-Scholes price.`,
		Example: `  pricer mc --spot 100 --strike 110 --maturity 1 --rate 0.05 --vol 0.2 --samples 1000000 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			types, err := app.optionTypes(cmd, false)
			if err != nil {
				return err
			}
			params := app.marketParams(cmd)
			history, err := app.historyRequest(cmd)
			if err != nil {
				return err
			}
			if history != nil {
				vol, err := app.Service.Volatility(cmd.Context(), *history)
				if err != nil {
					return err
				}
				params = params.WithVolatility(vol)
			}

			resp, err := app.Service.MonteCarlo(cmd.Context(), pricing.MonteCarloRequest{
				Params:     params,
				OptionType: types[0],
				NumSamples: intFlag(cmd, "samples", app.Config.MonteCarlo.NumSamples),
				Seed:       seedFlag(cmd, app.Config.MonteCarlo.Seed),
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(resp)
			}

			prec := app.Config.UI.Precision
			est := resp.Estimate
			output.Bold("Monte Carlo (%s)", resp.OptionType)
			printParams(output, resp.Params, prec)
			output.Println()

			table := NewTable(output, "ESTIMATE", "STD ERROR", "95% CI", "BLACK-SCHOLES", "DIFF")
			diff := est.Price - resp.Analytic
			table.AddRow(
				FormatValue(est.Price, prec),
				FormatValue(est.StdError, prec),
				fmt.Sprintf("[%s, %s]", FormatValue(est.Price-1.96*est.StdError, prec), FormatValue(est.Price+1.96*est.StdError, prec)),
				FormatValue(resp.Analytic, prec),
				FormatSigned(diff, prec),
			)
			table.Render()
			output.Println()

			if est.StdError > 0 && math.Abs(diff) > 3*est.StdError {
				output.Warning("Estimate is more than 3 standard errors from the analytic price")
			}
			output.Dim("Samples: %d  Seed: %d", est.Samples, resp.Seed)
			return nil
		},
	}

	marketFlags(cmd)
	historyFlags(cmd)
	cmd.Flags().String("type", "", "option type: call or put (default from config)")
	cmd.Flags().Int("samples", 0, "number of terminal price samples (default from config)")
	cmd.Flags().Uint64("seed", 0, "random seed; 0 picks a fresh seed (default from config)")

	return cmd
}

func newPathsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Simulate price paths",
		Long: `Simulate geometric Brownian motion price paths on an even time grid.
With --out the paths are written as CSV with one row per time step.`,
		Example: `  pricer paths --spot 100 --strike 110 --maturity 1 --vol 0.2 --trajectories 50 --steps 252 --out paths.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			resp, err := app.Service.Paths(cmd.Context(), pricing.PathsRequest{
				Params:          app.marketParams(cmd),
				NumTrajectories: intFlag(cmd, "trajectories", app.Config.MonteCarlo.NumTrajectories),
				NumSteps:        intFlag(cmd, "steps", app.Config.MonteCarlo.NumSteps),
				Seed:            seedFlag(cmd, app.Config.MonteCarlo.Seed),
			})
			if err != nil {
				return err
			}

			params := app.marketParams(cmd)
			outPath, _ := cmd.Flags().GetString("out")
			if outPath != "" {
				if err := writePathsFile(outPath, resp.Paths, params.Maturity); err != nil {
					return err
				}
			}

			if output.IsJSON() {
				if outPath != "" {
					return output.JSON(map[string]interface{}{
						"file":         outPath,
						"trajectories": len(resp.Paths),
						"steps":        len(resp.Times) - 1,
						"seed":         resp.Seed,
					})
				}
				return output.JSON(resp)
			}

			prec := app.Config.UI.Precision
			steps := len(resp.Times) - 1
			var sum, lo, hi float64
			lo, hi = math.Inf(1), math.Inf(-1)
			for _, path := range resp.Paths {
				last := path[steps]
				sum += last
				lo = math.Min(lo, last)
				hi = math.Max(hi, last)
			}

			output.Bold("Simulated Paths")
			output.Printf("  Trajectories:    %d\n", len(resp.Paths))
			output.Printf("  Steps:           %d\n", steps)
			output.Printf("  Seed:            %d\n", resp.Seed)
			output.Println()

			table := NewTable(output, "TERMINAL", "MEAN", "MIN", "MAX", "FORWARD")
			table.AddRow(
				fmt.Sprintf("t=%s", FormatValue(params.Maturity, 2)),
				FormatValue(sum/float64(len(resp.Paths)), prec),
				FormatValue(lo, prec),
				FormatValue(hi, prec),
				FormatValue(params.Spot*math.Exp(params.Rate*params.Maturity), prec),
			)
			table.Render()

			if outPath != "" {
				output.Println()
				output.Success("✓ Paths written to %s", outPath)
			}
			return nil
		},
	}

	marketFlags(cmd)
	cmd.Flags().Int("trajectories", 0, "number of paths (default from config)")
	cmd.Flags().Int("steps", 0, "time steps per path (default from config)")
	cmd.Flags().Uint64("seed", 0, "random seed; 0 picks a fresh seed (default from config)")
	cmd.Flags().String("out", "", "write paths to this CSV file")

	return cmd
}

func newVolatilityCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vol",
		Short: "Historical volatility from a price file",
		Long:  "Estimate annualized volatility from the log returns of a CSV price history.",
		Example: `  pricer vol --history prices.csv --field close
  pricer vol --history weekly.csv --periods 52`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			history, err := app.historyRequest(cmd)
			if err != nil {
				return err
			}
			if history == nil {
				return fmt.Errorf("--history is required")
			}

			vol, err := app.Service.Volatility(cmd.Context(), *history)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"volatility":       vol,
					"prices":           len(history.Bars),
					"periods_per_year": history.PeriodsPerYear,
				})
			}

			output.Printf("Volatility: %s (%s)\n", FormatValue(vol, app.Config.UI.Precision), FormatPercent(vol, 2))
			output.Dim("%d prices, %d periods per year", len(history.Bars), history.PeriodsPerYear)
			return nil
		},
	}

	historyFlags(cmd)
	return cmd
}

// writePathsFile writes paths as CSV to path. A failed close is reported
// since it can mean the data never reached disk.
func writePathsFile(path string, paths [][]float64, maturity float64) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	if err := marketdata.WritePathsCSV(f, paths, maturity); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func printParams(output *Output, p models.MarketParameters, prec int32) {
	output.Printf("  Spot:            %s\n", FormatValue(p.Spot, prec))
	output.Printf("  Strike:          %s\n", FormatValue(p.Strike, prec))
	output.Printf("  Maturity:        %s years\n", FormatValue(p.Maturity, prec))
	output.Printf("  Rate:            %s\n", FormatPercent(p.Rate, 2))
	output.Printf("  Volatility:      %s\n", FormatPercent(p.Volatility, 2))
}
