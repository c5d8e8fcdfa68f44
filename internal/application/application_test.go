package application

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"raceresults/internal/cache"
	"raceresults/internal/components/chrono"
	"raceresults/internal/components/telemetry"
	"raceresults/internal/results"
	"raceresults/internal/scrapers/ironman"
	"raceresults/internal/scrapers/mikatiming"
	"raceresults/internal/scrapers/rtrt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fakeListing struct {
	results []mikatiming.Result
	err     error
}

func (f fakeListing) Scrape(ctx context.Context, opts mikatiming.ListOptions) ([]mikatiming.Result, error) {
	return f.results, f.err
}

func TestMarathon(t *testing.T) {
	dir := t.TempDir()
	opts := mikatiming.ListOptions{Year: 2024, Event: "HML"}

	path, err := Marathon(context.Background(), fakeListing{results: []mikatiming.Result{
		{Ranking: "1", Name: "Runner One", CountryCode: "KEN", BibNumber: "1", Category: "M30", RunTime: "00:59:30", Sex: "M"},
		{Ranking: "1", Name: "Runner Two", CountryCode: "ETH", BibNumber: "2", Category: "W30", RunTime: "01:05:00", Sex: "F"},
	}}, opts, dir, telemetry.SlogAPI{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "2024-HML_results.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{"HML 2024"}, f.GetSheetList())
	rows, err := f.GetRows("HML 2024")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, mikatiming.Header, rows[0])
	require.Equal(t, "Runner Two", rows[2][1])
	require.Equal(t, "F", rows[2][7])
}

func TestMarathonScrapeError(t *testing.T) {
	_, err := Marathon(
		context.Background(),
		fakeListing{err: errors.New("blocked")},
		mikatiming.ListOptions{Year: 2024, Event: "BML"},
		t.TempDir(),
		telemetry.SlogAPI{},
	)
	require.Error(t, err)
}

type fakeTracker struct {
	profiles    []string
	splits      map[string][]string
	fetched     map[string]int
	splitGroups [][]string
}

func (f *fakeTracker) Event() string {
	return "IRM-TEST-2024"
}

func raw(entries ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		out[i] = json.RawMessage(e)
	}
	return out
}

func (f *fakeTracker) Profiles(ctx context.Context) ([]json.RawMessage, error) {
	f.fetched["profiles"]++
	var entries []string
	for _, pid := range f.profiles {
		entries = append(entries, fmt.Sprintf(`{"pid":"%s"}`, pid))
	}
	return raw(entries...), nil
}

func (f *fakeTracker) Points(ctx context.Context) ([]json.RawMessage, error) {
	f.fetched["points"]++
	return raw(
		`{"course":"olympic","segment":"swim","name":"START","km":0}`,
		`{"course":"olympic","segment":"swim","name":"SWIM","km":1.5}`,
		`{"course":"olympic","segment":"t1","name":"T1","km":1.5}`,
		`{"course":"olympic","segment":"bike","name":"BIKE","km":41.5}`,
		`{"course":"olympic","segment":"t2","name":"T2","km":41.5}`,
		`{"course":"olympic","segment":"run","name":"FINISH","km":51.5}`,
	), nil
}

func (f *fakeTracker) Splits(ctx context.Context, pids []string) ([]json.RawMessage, error) {
	f.splitGroups = append(f.splitGroups, pids)
	var entries []string
	for _, pid := range pids {
		entries = append(entries, f.splits[pid]...)
	}
	return raw(entries...), nil
}

func split(pid, division, point, legTime, netTime string) string {
	return fmt.Sprintf(
		`{"pid":"%s","name":"Athlete %s","sex":"F","division":"%s","course":"olympic","point":"%s","legTime":"%s","netTime":"%s","results":{"course":{"p":"1","t":"3"}}}`,
		pid, pid, division, point, legTime, netTime,
	)
}

func TestTriathlon(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := cache.Open(":memory:", chrono.FixedImpl{At: time.Unix(1700000000, 0)})
	require.NoError(t, err)
	defer store.Close()

	tracker := &fakeTracker{
		fetched: map[string]int{},
		splits: map[string][]string{
			"A": {split("A", "F30", "SWIM", "00:25:00.5", ""), split("A", "F30", "FINISH", "00:45:00", "02:30:00.25")},
			"B": {split("B", "F40", "FINISH", "00:40:00", "02:10:00")},
			"R": {split("R", "RELAY", "FINISH", "00:35:00", "01:59:00")},
		},
	}
	for i := 0; i < 12; i++ {
		tracker.profiles = append(tracker.profiles, fmt.Sprintf("DNS%d", i))
	}
	tracker.profiles = append(tracker.profiles, "A", "B", "R")

	var report bytes.Buffer
	params := TriathlonParams{
		Api:       tracker,
		Cache:     store,
		OutputDir: dir,
		Report:    &report,
	}

	path, err := Triathlon(ctx, params, telemetry.SlogAPI{})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "race_data_irm-test-2024.xlsx"), path)

	require.Len(t, tracker.splitGroups, 2)
	require.Len(t, tracker.splitGroups[0], 10)
	require.Len(t, tracker.splitGroups[1], 5)

	out := report.String()
	require.Contains(t, out, "Course: olympic\n")
	require.Contains(t, out, "  Segment: bike\n    Distance: 40.0 km\n    Split Points: BIKE\n")
	require.Contains(t, out, "Unique Divisions: F30, F40, RELAY\n")
	require.Contains(t, out, "Unique Courses: olympic\n")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	require.Equal(t, []string{"results_olympic"}, f.GetSheetList())
	rows, err := f.GetRows("results_olympic")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Len(t, rows, 3)
	header := rows[0]
	require.Equal(t, "pid", header[0])
	total := -1
	for i, col := range header {
		if col == string(results.ColTotalTime) {
			total = i
		}
	}
	require.NotEqual(t, -1, total)
	require.Equal(t, "B", rows[1][0])
	require.Equal(t, "02:10:00", rows[1][total])
	require.Equal(t, "A", rows[2][0])
	require.Equal(t, "02:30:00", rows[2][total])

	// a second run is served from the cache
	params.KeepRelay = true
	report.Reset()
	_, err = Triathlon(ctx, params, telemetry.SlogAPI{})
	require.NoError(t, err)
	require.Equal(t, 1, tracker.fetched["profiles"])
	require.Equal(t, 1, tracker.fetched["points"])
	require.Len(t, tracker.splitGroups, 2)

	f, err = excelize.OpenFile(path)
	require.NoError(t, err)
	rows, err = f.GetRows("results_olympic")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Len(t, rows, 4)
	require.Equal(t, "R", rows[1][0])
}

func TestTriathlonBadPointsStillExports(t *testing.T) {
	store, err := cache.Open(":memory:", chrono.NewStandardImpl())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	tracker := &fakeTracker{fetched: map[string]int{}}
	err = store.Put(ctx, tracker.Event(), cache.KindPoints, listKey, []byte(`[{"course":"x","name":"SWIM"}]`))
	require.NoError(t, err)

	var report bytes.Buffer
	_, err = Triathlon(ctx, TriathlonParams{
		Api:       tracker,
		Cache:     store,
		OutputDir: t.TempDir(),
		Report:    &report,
	}, telemetry.SlogAPI{})
	require.NoError(t, err)
	require.Equal(t, 0, tracker.fetched["points"])
	require.False(t, strings.Contains(report.String(), "Course:"))
}

func TestResolveSession(t *testing.T) {
	ctx := context.Background()
	complete := ironman.Session{Event: "IRM-X", Credentials: rtrt.Credentials{AppId: "a", Token: "t"}}

	session, err := ResolveSession(ctx, complete, "", func(context.Context, string) (ironman.Session, error) {
		t.Fatal("login should not be needed")
		return ironman.Session{}, nil
	})
	require.NoError(t, err)
	require.Equal(t, complete, session)

	_, err = ResolveSession(ctx, ironman.Session{}, "", nil)
	require.Error(t, err)

	session, err = ResolveSession(ctx, ironman.Session{Event: "IRM-OVERRIDE"}, "https://track.rtrt.me/e/IRM-X",
		func(_ context.Context, url string) (ironman.Session, error) {
			require.Equal(t, "https://track.rtrt.me/e/IRM-X", url)
			return complete, nil
		})
	require.NoError(t, err)
	require.Equal(t, "IRM-OVERRIDE", session.Event)
	require.Equal(t, complete.Credentials, session.Credentials)

	_, err = ResolveSession(ctx, ironman.Session{}, "https://track.rtrt.me/e/IRM-X",
		func(context.Context, string) (ironman.Session, error) {
			return ironman.Session{Event: "IRM-X"}, nil
		})
	require.Error(t, err)
}
