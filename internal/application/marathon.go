// Package application wires the scrapers, the cache and the exporter into the
// flows the racescrape commands run.
package application

import (
	"context"
	"fmt"
	"path/filepath"
	"raceresults/internal/components/assert"
	"raceresults/internal/components/telemetry"
	"raceresults/internal/export"
	"raceresults/internal/scrapers/mikatiming"
)

const (
	report_marathon_scrape = "marathon.scrape"
	report_marathon_export = "marathon.export"
)

type ListingScraper interface {
	Scrape(ctx context.Context, opts mikatiming.ListOptions) ([]mikatiming.Result, error)
}

// MarathonFile is the name of the workbook the listing of an event is saved as.
func MarathonFile(opts mikatiming.ListOptions) string {
	return fmt.Sprintf("%d-%s_results.xlsx", opts.Year, opts.Event)
}

// Marathon scrapes every finisher of a mikatiming listing into a single
// sheet workbook within outputDir, it returns the path of the workbook.
func Marathon(ctx context.Context, scraper ListingScraper, opts mikatiming.ListOptions, outputDir string, tel telemetry.API) (string, error) {
	assert.NotNil(scraper)
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("marathon", tel)

	listing, err := scraper.Scrape(ctx, opts)
	if err != nil {
		tel.ReportBroken(report_marathon_scrape, err, opts)
		return "", err
	}
	tel.ReportCount(report_marathon_scrape, int64(len(listing)))

	rows := make([][]any, len(listing))
	for i, r := range listing {
		rows[i] = r.Row()
	}

	wb := export.New()
	defer wb.Close()

	_, err = wb.AddSheet(export.Sheet{
		Name:   fmt.Sprintf("%s %d", opts.Event, opts.Year),
		Header: mikatiming.Header,
		Rows:   rows,
	})
	if err != nil {
		tel.ReportBroken(report_marathon_export, err)
		return "", err
	}

	path := filepath.Join(outputDir, MarathonFile(opts))
	err = wb.SaveAs(path)
	if err != nil {
		tel.ReportBroken(report_marathon_export, err, path)
		return "", err
	}
	return path, nil
}
