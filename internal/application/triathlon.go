package application

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"raceresults/internal/cache"
	"raceresults/internal/components/assert"
	"raceresults/internal/components/telemetry"
	"raceresults/internal/export"
	"raceresults/internal/points"
	"raceresults/internal/results"
	"raceresults/internal/scrapers/rtrt"
	"strings"
)

const (
	report_triathlon_cache  = "triathlon.cache"
	report_triathlon_fetch  = "triathlon.fetch"
	report_triathlon_points = "triathlon.points"
	report_triathlon_splits = "triathlon.splits"
	report_triathlon_export = "triathlon.export"
)

// the key profiles and points are cached under, there is one list per event
const listKey = "all"

type TrackerApi interface {
	Event() string
	Profiles(ctx context.Context) ([]json.RawMessage, error)
	Points(ctx context.Context) ([]json.RawMessage, error)
	Splits(ctx context.Context, pids []string) ([]json.RawMessage, error)
}

type TriathlonParams struct {
	Api       TrackerApi
	Cache     cache.Store
	OutputDir string
	// Report receives the points analysis and a summary of the results.
	Report io.Writer
	// KeepRelay keeps relay teams in the exported results.
	KeepRelay bool
	Normalize results.NormalizeOptions
}

// TriathlonFile is the name of the workbook the results of event are saved as.
func TriathlonFile(event string) string {
	return fmt.Sprintf("race_data_%s.xlsx", strings.ToLower(event))
}

type triathlon struct {
	TriathlonParams
	event string
	tel   telemetry.API
}

// Triathlon downloads the results of a tracker event into a workbook with one
// sheet per course, it returns the path of the workbook. Everything fetched
// is cached so an interrupted run continues where it stopped.
func Triathlon(ctx context.Context, params TriathlonParams, tel telemetry.API) (string, error) {
	assert.NotNil(params.Api)
	assert.NotNil(params.Report)
	assert.NotNil(tel)

	t := triathlon{
		TriathlonParams: params,
		event:           params.Api.Event(),
		tel:             telemetry.NewScopedAPI("triathlon", tel),
	}

	profileList, err := t.cachedList(ctx, cache.KindProfiles, t.Api.Profiles)
	if err != nil {
		return "", err
	}
	profiles, err := rtrt.DecodeProfiles(profileList)
	if err != nil {
		return "", fmt.Errorf("decode profiles: %w", err)
	}
	t.tel.ReportDebug("loaded profiles", len(profiles))

	pointList, err := t.cachedList(ctx, cache.KindPoints, t.Api.Points)
	if err != nil {
		return "", err
	}
	t.tel.ReportDebug("loaded points", len(pointList))
	err = t.reportPoints(pointList)
	if err != nil {
		return "", err
	}

	var pids []string
	for _, p := range profiles {
		if p.Pid == "" {
			continue
		}
		pids = append(pids, p.Pid.String())
	}

	err = t.fetchSplits(ctx, pids)
	if err != nil {
		return "", err
	}
	splits, err := t.loadSplits(ctx, pids)
	if err != nil {
		return "", err
	}

	participants, summary := results.Normalize(profiles, splits, t.Normalize)
	fmt.Fprintf(t.Report, "Unique Divisions: %s\n", strings.Join(summary.Divisions, ", "))
	fmt.Fprintf(t.Report, "Unique Courses: %s\n", strings.Join(summary.Courses, ", "))
	fmt.Fprintf(t.Report, "Unique Legs: %s\n", strings.Join(summary.Legs, ", "))

	return t.export(participants, summary.Courses)
}

// cachedList returns the cached list of kind or fetches and caches it.
func (t triathlon) cachedList(
	ctx context.Context,
	kind cache.Kind,
	fetch func(ctx context.Context) ([]json.RawMessage, error),
) ([]json.RawMessage, error) {
	body, ok, err := t.Cache.Get(ctx, t.event, kind, listKey)
	if err != nil {
		t.tel.ReportBroken(report_triathlon_cache, err, kind)
		return nil, err
	}
	if ok {
		var list []json.RawMessage
		err = json.Unmarshal(body, &list)
		if err != nil {
			return nil, fmt.Errorf("cached %s: %w", kind, err)
		}
		return list, nil
	}

	t.tel.ReportDebug("fetching", kind)
	list, err := fetch(ctx)
	if err != nil {
		t.tel.ReportBroken(report_triathlon_fetch, err, kind)
		return nil, err
	}
	if list == nil {
		list = []json.RawMessage{}
	}

	body, err = json.Marshal(list)
	if err != nil {
		return nil, err
	}
	err = t.Cache.Put(ctx, t.event, kind, listKey, body)
	if err != nil {
		t.tel.ReportBroken(report_triathlon_cache, err, kind)
		return nil, err
	}
	return list, nil
}

func (t triathlon) reportPoints(list []json.RawMessage) error {
	waypoints, err := points.DecodeRecords(list)
	if err == nil {
		var analysis points.Analysis
		analysis, err = points.Analyze(waypoints)
		if err == nil {
			return points.WriteReport(t.Report, analysis)
		}
	}
	// the analysis is informational, the results are exported regardless
	t.tel.ReportWarning(report_triathlon_points, "could not analyze points", err.Error())
	return nil
}

func (t triathlon) fetchSplits(ctx context.Context, pids []string) error {
	missing, err := t.Cache.Missing(ctx, t.event, cache.KindSplits, pids)
	if err != nil {
		t.tel.ReportBroken(report_triathlon_cache, err, cache.KindSplits)
		return err
	}

	groups := rtrt.Chunk(missing, rtrt.SplitGroupSize)
	for i, group := range groups {
		t.tel.ReportDebug("fetching split group", i, len(groups), group)

		raw, err := t.Api.Splits(ctx, group)
		if err != nil {
			t.tel.ReportBroken(report_triathlon_fetch, err, cache.KindSplits, group)
			return err
		}
		_, byPid, err := rtrt.GroupByPid(raw)
		if err != nil {
			return err
		}

		docs := map[string][]byte{}
		for pid, entries := range byPid {
			body, err := json.Marshal(rtrt.SplitDocument{List: entries})
			if err != nil {
				return err
			}
			docs[pid] = body
		}
		// participants without splits (ex. did not start) are stored empty so
		// they are not requested again
		for _, pid := range group {
			if _, ok := docs[pid]; ok {
				continue
			}
			body, err := json.Marshal(rtrt.SplitDocument{List: []json.RawMessage{}})
			if err != nil {
				return err
			}
			docs[pid] = body
		}

		err = t.Cache.PutMany(ctx, t.event, cache.KindSplits, docs)
		if err != nil {
			t.tel.ReportBroken(report_triathlon_cache, err, cache.KindSplits, group)
			return err
		}
	}

	t.tel.ReportCount(report_triathlon_splits, int64(len(missing)))
	return nil
}

func (t triathlon) loadSplits(ctx context.Context, pids []string) (map[string][]rtrt.Split, error) {
	out := map[string][]rtrt.Split{}
	for _, pid := range pids {
		body, ok, err := t.Cache.Get(ctx, t.event, cache.KindSplits, pid)
		if err != nil {
			t.tel.ReportBroken(report_triathlon_cache, err, cache.KindSplits, pid)
			return nil, err
		}
		if !ok {
			continue
		}

		var doc rtrt.SplitDocument
		err = json.Unmarshal(body, &doc)
		if err != nil {
			return nil, fmt.Errorf("cached splits of %s: %w", pid, err)
		}
		splits, err := rtrt.DecodeSplits(doc.List)
		if err != nil {
			return nil, fmt.Errorf("cached splits of %s: %w", pid, err)
		}
		out[pid] = splits
	}
	return out, nil
}

func (t triathlon) export(participants []results.Participant, courses []string) (string, error) {
	wb := export.New()
	defer wb.Close()

	for _, course := range courses {
		rows := results.ForCourse(participants, course, !t.KeepRelay)
		cols := results.Columns(rows)

		values := make([][]any, len(rows))
		for i, p := range rows {
			values[i] = p.Values(cols)
		}

		name, err := wb.AddSheet(export.Sheet{
			Name:   "results_" + course,
			Header: results.Header(cols),
			Rows:   values,
			Table:  "RaceResult" + course,
		})
		if err != nil {
			t.tel.ReportBroken(report_triathlon_export, err, course)
			return "", err
		}
		t.tel.ReportDebug("exported course", name, len(rows))
	}

	path := filepath.Join(t.OutputDir, TriathlonFile(t.event))
	err := wb.SaveAs(path)
	if err != nil {
		t.tel.ReportBroken(report_triathlon_export, err, path)
		return "", err
	}
	return path, nil
}
