package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/signalsfoundry/csma-simulator/core"
	"github.com/signalsfoundry/csma-simulator/internal/logging"
	"github.com/signalsfoundry/csma-simulator/internal/observability"
	"github.com/signalsfoundry/csma-simulator/model"
)

// cli carries the state shared by every subcommand.
type cli struct {
	v        *viper.Viper
	cfgFile  string
	log      logging.Logger
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New(), log: logging.Noop()}

	root := &cobra.Command{
		Use:   "csmasim",
		Short: "CSMA/CA contention simulator",
		Long: `csmasim simulates stations contending for a shared channel with
binary exponential backoff. Stations may be hidden from each other, in
which case their transmissions can collide at the access point.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  c.setup,
		PersistentPostRunE: c.teardown,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file providing flag defaults (yaml, json or toml)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")

	root.AddCommand(c.newRunCmd(), c.newSweepCmd(), c.newServeCmd())
	return root
}

// setup resolves configuration in precedence order flags > CSMASIM_* env >
// config file > defaults, then builds the logger and tracer.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	c.v.SetEnvPrefix("CSMASIM")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()
	if err := c.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %q: %w", c.cfgFile, err)
		}
	}

	c.log = logging.New(logging.Config{
		Level:  c.v.GetString("log-level"),
		Format: c.v.GetString("log-format"),
		Output: cmd.ErrOrStderr(),
	})

	tracing := observability.TracingConfigFromEnv(cmd.Name())
	tracing.Writer = cmd.ErrOrStderr()
	shutdown, err := observability.InitTracing(cmd.Context(), tracing, c.log)
	if err != nil {
		return err
	}
	c.shutdown = shutdown
	return nil
}

func (c *cli) teardown(cmd *cobra.Command, _ []string) error {
	observability.ShutdownWithTimeout(context.Background(), c.shutdown, c.log)
	return nil
}

// scenario loads the --scenario file, or the hidden-terminal default, and
// applies the command-line overrides.
func (c *cli) scenario() (model.Scenario, error) {
	sc := model.DefaultScenario()
	if path := c.v.GetString("scenario"); path != "" {
		loaded, err := core.ScenarioFromFile(path)
		if err != nil {
			return model.Scenario{}, err
		}
		sc = loaded
	}

	if c.v.IsSet("duration") {
		sc.Duration = c.v.GetFloat64("duration")
	}
	if c.v.IsSet("seed") {
		sc.Seed = c.v.GetUint64("seed")
	}
	return sc, nil
}
