package cmd

import (
	"fmt"
	"raceresults/cmd/racescrape/globals"
	"raceresults/internal/application"
	"raceresults/internal/scrapers/mikatiming"

	"github.com/spf13/cobra"
)

var mikatimingFlags struct {
	baseUrl        string
	year           int
	event          string
	eventMainGroup string
	outputDir      string
}

func init() {
	flags := mikatimingCmd.Flags()
	flags.StringVar(&mikatimingFlags.baseUrl, "base-url", "", "results host, ex. https://berlin.r.mikatiming.com")
	flags.IntVar(&mikatimingFlags.year, "year", 0, "year of the race")
	flags.StringVar(&mikatimingFlags.event, "event", "", `event code, ex. "BML" or "HML"`)
	flags.StringVar(&mikatimingFlags.eventMainGroup, "event-main-group", "", `event main group, ex. "BMW BERLIN MARATHON"`)
	flags.StringVarP(&mikatimingFlags.outputDir, "output", "o", "", "directory the workbook is written to")

	rootCmd.AddCommand(mikatimingCmd)
}

func orString(flag, config string) string {
	if flag != "" {
		return flag
	}
	return config
}

var mikatimingCmd = &cobra.Command{
	Use:   "mikatiming",
	Short: "Scrapes every finisher of a mikatiming results listing into a workbook.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		value := globals.Get(cmd.Context())
		config := value.Config.Mikatiming

		baseUrl := orString(mikatimingFlags.baseUrl, config.BaseUrl)
		opts := mikatiming.ListOptions{
			Year:           config.Year,
			Event:          orString(mikatimingFlags.event, config.Event),
			EventMainGroup: orString(mikatimingFlags.eventMainGroup, config.EventMainGroup),
		}
		if mikatimingFlags.year != 0 {
			opts.Year = mikatimingFlags.year
		}
		if baseUrl == "" || opts.Event == "" || opts.Year == 0 {
			return fmt.Errorf("base url, event and year are required")
		}

		client, err := mikatiming.NewClient(mikatiming.ClientOptions{BaseUrl: baseUrl}, value.Telemetry)
		if err != nil {
			return err
		}

		outputDir := orString(mikatimingFlags.outputDir, value.Config.OutputDir)
		path, err := application.Marathon(cmd.Context(), client, opts, outputDir, value.Telemetry)
		if err != nil {
			return err
		}
		fmt.Printf(" -> Serialized to %s\n", path)
		return nil
	},
}
