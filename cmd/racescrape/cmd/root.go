package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"raceresults/cmd/racescrape/globals"
	"raceresults/internal/components/telemetry"
	"raceresults/pkg/configutil"
	"raceresults/pkg/serviceutil"

	"github.com/spf13/cobra"
)

const defaultConfigName = "racescrape.json5"

var (
	verbose    bool
	configPath string
)

var shutdownTelemetry func(ctx context.Context) error

var rootCmd = &cobra.Command{
	Use:           "racescrape",
	Short:         "racescrape downloads race results into xlsx workbooks.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)

		config, err := readConfig()
		if err != nil {
			return err
		}

		otel, err := telemetry.Setup(cmd.Context(), "racescrape", config.Telemetry)
		if err != nil {
			return err
		}
		shutdownTelemetry = otel.Shutdown

		cmd.SetContext(globals.Set(cmd.Context(), &globals.Value{
			Config:    config,
			Telemetry: telemetry.SlogAPI{},
		}))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdownTelemetry == nil {
			return nil
		}
		return shutdownTelemetry(context.Background())
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file, racescrape.json5 is searched upwards from the cwd by default")
}

// readConfig reads the config file, running without one is allowed unless it
// was given explicitly.
func readConfig() (globals.Config, error) {
	if configPath != "" {
		return configutil.ReadConfig[globals.Config](configPath)
	}

	config, err := configutil.ReadRecursively[globals.Config](defaultConfigName)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file found, using defaults", "name", defaultConfigName)
		return globals.Config{}, nil
	}
	return config, err
}

func Execute() {
	ctx, stop := serviceutil.SignalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		serviceutil.Fatal("racescrape failed", err)
	}
}
