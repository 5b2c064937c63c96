package main

import (
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/csma-simulator/core"
	"github.com/signalsfoundry/csma-simulator/internal/sweep"
)

func (c *cli) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation and print per-station results",
		Example: `  csmasim run
  csmasim run --scenario examples/scenarios/saturated_bss.json --output json
  csmasim run --rate 800 --duration 2 --event-log --log-level debug`,
		Args: cobra.NoArgs,
		RunE: c.runRun,
	}

	f := cmd.Flags()
	f.StringP("scenario", "s", "", "scenario file (yaml or json); defaults to the hidden-terminal setup")
	f.Float64("duration", core.DefaultDuration, "simulated seconds (overrides the scenario)")
	f.Uint64("seed", 1, "run seed (overrides the scenario)")
	f.Float64("rate", 0, "arrival rate in frames/s applied to every station (overrides the scenario)")
	f.StringP("output", "o", outputTable, "output format: table, json or yaml")
	f.Bool("event-log", false, "log every collision, delivery and drop at debug level")
	f.Bool("delays", false, "include per-frame delay samples in json/yaml output")
	return cmd
}

func (c *cli) runRun(cmd *cobra.Command, _ []string) error {
	format := c.v.GetString("output")
	if err := checkOutput(format); err != nil {
		return err
	}

	sc, err := c.scenario()
	if err != nil {
		return err
	}
	if c.v.IsSet("rate") {
		sc = sc.WithArrivalRate(c.v.GetFloat64("rate"))
	}
	cfg, err := core.RunConfigFromScenario(sc)
	if err != nil {
		return err
	}

	runner := sweep.NewRunner(nil,
		sweep.WithLogger(c.log),
		sweep.WithEventLog(c.v.GetBool("event-log")),
		sweep.WithDelaySamples(c.v.GetBool("delays")),
	)
	rec, err := runner.Run(cmd.Context(), sc)
	if err != nil {
		return err
	}

	if format == outputTable {
		return printRun(cmd.OutOrStdout(), rec, cfg.Timing)
	}
	return encode(cmd.OutOrStdout(), format, rec)
}
