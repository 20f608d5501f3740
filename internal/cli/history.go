package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"option-pricer/internal/models"
	"option-pricer/internal/store"
)

// addHistoryCommands adds run history commands.
func addHistoryCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newHistoryCmd(app))
}

func newHistoryCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded pricing runs",
		Example: `  pricer history --model mc --limit 10
  pricer history prune --days 30`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			filter := store.RunFilter{Limit: intFlag(cmd, "limit", 20)}
			if cmd.Flags().Changed("model") {
				name, _ := cmd.Flags().GetString("model")
				model, err := parseModel(name)
				if err != nil {
					return err
				}
				filter.Model = model
			}
			if cmd.Flags().Changed("type") {
				name, _ := cmd.Flags().GetString("type")
				ot, err := models.ParseOptionType(name)
				if err != nil {
					return err
				}
				filter.OptionType = ot
			}
			if cmd.Flags().Changed("days") {
				days, _ := cmd.Flags().GetInt("days")
				filter.StartDate = time.Now().AddDate(0, 0, -days)
			}

			runs, err := app.Service.History(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Info("No runs recorded")
				return nil
			}

			prec := app.Config.UI.Precision
			table := NewTable(output, "TIME", "MODEL", "TYPE", "SPOT", "STRIKE", "T", "VOL", "PRICE", "STD ERR", "SEED")
			for _, run := range runs {
				stdErr, seed := "-", "-"
				if run.Model == models.ModelMonteCarlo {
					stdErr = FormatValue(run.StdError, prec)
					seed = fmt.Sprintf("%d", run.Seed)
				}
				table.AddRow(
					run.Timestamp.Local().Format("2006-01-02 15:04:05"),
					string(run.Model),
					run.OptionType.String(),
					FormatValue(run.Params.Spot, 2),
					FormatValue(run.Params.Strike, 2),
					FormatValue(run.Params.Maturity, 2),
					FormatPercent(run.Params.Volatility, 1),
					FormatValue(run.Price, prec),
					stdErr,
					seed,
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("model", "", "filter by model: bs or mc")
	cmd.Flags().String("type", "", "filter by option type: call or put")
	cmd.Flags().Int("days", 0, "only runs from the last N days")
	cmd.Flags().Int("limit", 20, "maximum number of runs")

	cmd.AddCommand(newHistoryPruneCmd(app))
	return cmd
}

func newHistoryPruneCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs older than --days",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			days, _ := cmd.Flags().GetInt("days")
			if days < 0 {
				return fmt.Errorf("--days must be non-negative")
			}
			n, err := app.Service.Prune(cmd.Context(), time.Now().AddDate(0, 0, -days))
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]int64{"deleted": n})
			}
			output.Success("✓ Deleted %d runs", n)
			return nil
		},
	}

	cmd.Flags().Int("days", 30, "keep runs from the last N days")
	return cmd
}

func parseModel(name string) (models.PricingModel, error) {
	switch strings.ToLower(name) {
	case "bs", "black-scholes":
		return models.ModelBlackScholes, nil
	case "mc", "monte-carlo":
		return models.ModelMonteCarlo, nil
	default:
		return "", fmt.Errorf("unknown model %q (must be bs or mc)", name)
	}
}
