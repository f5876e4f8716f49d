package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"os"
	"ulascansenturk/weather-exporter/config"
	"ulascansenturk/weather-exporter/internal/exitcode"
)

// exitError carries the process exit code out of the cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func newRootCommand() *cobra.Command {
	var (
		configFile string
		verbosity  int
	)

	cmd := &cobra.Command{
		Use:           "weather-exporter",
		Short:         "Prometheus exporter for OpenWeatherMap current weather",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configFile, verbosity)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config-file", "c", config.DefaultConfigFile, "path to the YAML configuration file")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v warn, -vv info, -vvv debug)")

	return cmd
}

func main() {
	err := newRootCommand().ExecuteContext(context.Background())
	if err == nil {
		os.Exit(exitcode.Success)
	}

	code := exitcode.StartupError
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		code = exitErr.code
	}

	log.Error().Err(err).Int("exit_code", code).Msg("exporter stopped")
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
}
