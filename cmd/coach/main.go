package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/strum-coach/internal/config"
)

var version = "0.1.0-dev"

// errDiverged marks a replay whose results disagree with its fixture.
var errDiverged = errors.New("replay diverged")

// usageError marks bad invocations; they exit 2 instead of 1.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// #region main

func main() {
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var ue usageError
	if errors.As(err, &ue) {
		return 2
	}
	return 1
}

// #endregion main

// #region root

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coach",
		Short: "Strum coach - replay, inspect and schedule practice sessions",
		Long: `coach drives the strum-coaching core offline.

It replays recorded practice sessions through the take segmenter, objective
resolver, guidance engine and cue scheduler, stores what they decided, and
prints cue envelopes for a given grid.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	rootCmd.PersistentFlags().String("config", "coach.toml", "Config file (.toml, .yaml or .json)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newReplayCmd(),
		newInspectCmd(),
		newScheduleCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "coach version %s\n", version)
			return nil
		},
	}
}

// #endregion root

// #region helpers

// loadConfig reads --config, then validates. A missing file yields the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// #endregion helpers
