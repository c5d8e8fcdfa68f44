package cmd

import (
	"context"
	"fmt"
	"os"
	"raceresults/cmd/racescrape/globals"
	"raceresults/internal/application"
	"raceresults/internal/cache"
	"raceresults/internal/components/chrono"
	"raceresults/internal/results"
	"raceresults/internal/scrapers/ironman"
	"raceresults/internal/scrapers/rtrt"

	"github.com/spf13/cobra"
)

const defaultCachePath = "racescrape.db"

var ironmanFlags struct {
	trackerUrl     string
	event          string
	keepRelay      bool
	stripFromPoint string
	outputDir      string
	cachePath      string
	chromePath     string
}

func init() {
	flags := ironmanCmd.Flags()
	flags.StringVar(&ironmanFlags.trackerUrl, "url", "", "results page with the tracker, ex. https://www.ironman.com/im703-erkner-results or https://track.rtrt.me/e/<event>")
	flags.StringVar(&ironmanFlags.event, "event", "", "rtrt.me event name, ex. IRM-ERKNER703-2023")
	flags.BoolVar(&ironmanFlags.keepRelay, "keep-relay", false, "keep relay teams in the results")
	flags.StringVar(&ironmanFlags.stripFromPoint, "strip-from-point", "", `removed from point names before matching them to legs, ex. "4184"`)
	flags.StringVarP(&ironmanFlags.outputDir, "output", "o", "", "directory the workbook is written to")
	flags.StringVar(&ironmanFlags.cachePath, "cache", "", "sqlite file fetched documents are cached in")
	flags.StringVar(&ironmanFlags.chromePath, "chrome", "", "chrome binary used to log into the tracker")

	rootCmd.AddCommand(ironmanCmd)
}

var ironmanCmd = &cobra.Command{
	Use:   "ironman",
	Short: "Downloads the results of an IRONMAN tracker event into a workbook.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		value := globals.Get(ctx)
		config := value.Config.Rtrt

		configured := ironman.Session{
			Event: orString(ironmanFlags.event, config.Event),
			Credentials: rtrt.Credentials{
				AppId: config.AppId,
				Token: config.Token,
			},
		}
		trackerUrl := orString(ironmanFlags.trackerUrl, config.TrackerUrl)

		session, err := application.ResolveSession(ctx, configured, trackerUrl,
			func(ctx context.Context, eventUrl string) (ironman.Session, error) {
				return ironman.Login(ctx, eventUrl, ironman.LoginOptions{
					ExecPath: ironmanFlags.chromePath,
				}, value.Telemetry)
			},
		)
		if err != nil {
			return err
		}
		fmt.Printf("Event Name: %s\n", session.Event)

		cachePath := orString(ironmanFlags.cachePath, value.Config.CachePath)
		if cachePath == "" {
			cachePath = defaultCachePath
		}
		store, err := cache.Open(cachePath, chrono.NewStandardImpl())
		if err != nil {
			return err
		}
		defer store.Close()

		client := rtrt.NewClient(rtrt.ClientOptions{
			Event:       session.Event,
			Credentials: session.Credentials,
		}, value.Telemetry)

		path, err := application.Triathlon(ctx, application.TriathlonParams{
			Api:       client,
			Cache:     store,
			OutputDir: orString(ironmanFlags.outputDir, value.Config.OutputDir),
			Report:    os.Stdout,
			KeepRelay: ironmanFlags.keepRelay,
			Normalize: results.NormalizeOptions{
				StripFromPoint: orString(ironmanFlags.stripFromPoint, config.StripFromPoint),
			},
		}, value.Telemetry)
		if err != nil {
			return err
		}
		fmt.Printf(" -> Serialized to %s\n", path)
		return nil
	},
}
