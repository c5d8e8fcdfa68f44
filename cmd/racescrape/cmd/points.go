package cmd

import (
	"os"
	"raceresults/cmd/racescrape/utils"
	"raceresults/internal/points"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var pointsAsTable bool

func init() {
	pointsCmd.Flags().BoolVar(&pointsAsTable, "table", false, "render the segments as a table")
	rootCmd.AddCommand(pointsCmd)
}

var pointsCmd = &cobra.Command{
	Use:   "points <file>",
	Short: "Prints the segments of every course of a saved points document.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		waypoints, err := points.Decode(f)
		if err != nil {
			return err
		}
		analysis, err := points.Analyze(waypoints)
		if err != nil {
			return err
		}

		if !pointsAsTable {
			return points.WriteReport(os.Stdout, analysis)
		}

		t := utils.NewTable()
		t.AppendHeader(table.Row{"Course", "Segment", "Distance (km)", "Split Points"})
		for _, course := range analysis.Courses {
			for _, segment := range course.Segments {
				t.AppendRow(table.Row{
					course.Name,
					segment.Name,
					points.FormatKm(segment.Distance),
					strings.Join(segment.SplitPoints, ", "),
				})
			}
			t.AppendSeparator()
		}
		t.Render()
		return nil
	},
}
