package main

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/csma-simulator/core"
	"github.com/signalsfoundry/csma-simulator/internal/sweep"
	"github.com/signalsfoundry/csma-simulator/model"
)

func (c *cli) newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a scenario at several offered loads and tabulate the results",
		Example: `  csmasim sweep
  csmasim sweep --rates 100,500,1000 --workers 4 --output yaml`,
		Args: cobra.NoArgs,
		RunE: c.runSweep,
	}

	f := cmd.Flags()
	f.StringP("scenario", "s", "", "scenario file (yaml or json); defaults to the hidden-terminal setup")
	f.Float64("duration", core.DefaultDuration, "simulated seconds per point (overrides the scenario)")
	f.Uint64("seed", 1, "run seed (overrides the scenario)")
	f.Float64Slice("rates", model.DefaultArrivalRates, "arrival rates in frames/s, applied to every station")
	f.Int("workers", runtime.GOMAXPROCS(0), "concurrent simulations")
	f.StringP("output", "o", outputTable, "output format: table, json or yaml")
	return cmd
}

func (c *cli) runSweep(cmd *cobra.Command, _ []string) error {
	format := c.v.GetString("output")
	if err := checkOutput(format); err != nil {
		return err
	}

	sc, err := c.scenario()
	if err != nil {
		return err
	}
	rates, err := cmd.Flags().GetFloat64Slice("rates")
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("rates") && c.v.IsSet("rates") {
		if rates, err = parseRates(c.v.GetStringSlice("rates")); err != nil {
			return err
		}
	}

	runner := sweep.NewRunner(nil,
		sweep.WithLogger(c.log),
		sweep.WithWorkers(c.v.GetInt("workers")),
	)
	res, err := runner.Sweep(cmd.Context(), sc, rates)
	if err != nil {
		return err
	}

	if format == outputTable {
		return printSweep(cmd.OutOrStdout(), res)
	}
	return encode(cmd.OutOrStdout(), format, res)
}

// parseRates reads a rate list from a config file or environment value,
// where entries may themselves be comma separated.
func parseRates(raw []string) ([]float64, error) {
	var out []float64
	for _, entry := range raw {
		for _, field := range strings.Split(entry, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			rate, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid arrival rate %q: %w", field, err)
			}
			out = append(out, rate)
		}
	}
	return out, nil
}
