package points

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func triathlon() []Waypoint {
	return []Waypoint{
		{Course: "c1", Segment: "swim", Km: 1.5, Name: "SWIM"},
		{Course: "c1", Segment: "t", Km: 1.8, Name: "T1"},
		{Course: "c1", Segment: "bike", Km: 21.8, Name: "BIKE"},
		{Course: "c1", Segment: "t", Km: 22.0, Name: "T2"},
		{Course: "c1", Segment: "run", Km: 27.0, Name: "FINISH"},
	}
}

func TestAnalyzeTriathlon(t *testing.T) {
	analysis, err := Analyze(triathlon())
	require.NoError(t, err)

	expected := Analysis{Courses: []Course{{
		Name: "c1",
		Segments: []Segment{
			{Name: "swim", Distance: 1.5, SplitPoints: []string{"SWIM"}},
			{Name: "t1", Distance: 0.3, SplitPoints: []string{"T1"}},
			{Name: "bike", Distance: 20.0, SplitPoints: []string{"BIKE"}},
			{Name: "t2", Distance: 0.2, SplitPoints: []string{"T2"}},
			{Name: "run", Distance: 5.0, SplitPoints: []string{"FINISH"}},
			{Name: "total", Distance: 27.0, SplitPoints: []string{"SWIM", "T1", "BIKE", "T2", "FINISH"}},
		},
	}}}

	diff := cmp.Diff(expected, analysis)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	analysis, err := Analyze(nil)
	require.NoError(t, err)
	require.Empty(t, analysis.Courses)

	_, ok := analysis.Course("c1")
	require.False(t, ok)
}

func TestAnalyzeSingleWaypoint(t *testing.T) {
	analysis, err := Analyze([]Waypoint{
		{Course: "5k", Segment: "run", Km: 5.0004, Name: "FINISH"},
	})
	require.NoError(t, err)

	course, ok := analysis.Course("5k")
	require.True(t, ok)
	require.Equal(t, []Segment{
		{Name: "run", Distance: 5.0, SplitPoints: []string{"FINISH"}},
		{Name: "total", Distance: 5.0, SplitPoints: []string{"FINISH"}},
	}, course.Segments)
}

func TestAnalyzeGroupsContiguousRuns(t *testing.T) {
	analysis, err := Analyze([]Waypoint{
		{Course: "703", Segment: "bike", Km: 30, Name: "BIKE1"},
		{Course: "703", Segment: "swim", Km: 1.9, Name: "SWIM"},
		{Course: "703", Segment: "bike", Km: 60, Name: "BIKE2"},
		{Course: "703", Segment: "bike", Km: 92, Name: "BIKE"},
		{Course: "703", Segment: "run", Km: 113, Name: "FINISH"},
		{Course: "703", Segment: "run", Km: 100, Name: "RUN1"},
	})
	require.NoError(t, err)

	course, _ := analysis.Course("703")
	require.Equal(t, []Segment{
		{Name: "swim", Distance: 1.9, SplitPoints: []string{"SWIM"}},
		{Name: "bike", Distance: 90.1, SplitPoints: []string{"BIKE1", "BIKE2", "BIKE"}},
		{Name: "run", Distance: 21, SplitPoints: []string{"RUN1", "FINISH"}},
		{Name: "total", Distance: 113, SplitPoints: []string{"SWIM", "BIKE1", "BIKE2", "BIKE", "RUN1", "FINISH"}},
	}, course.Segments)
}

func TestAnalyzeNumbersRepeatedRuns(t *testing.T) {
	analysis, err := Analyze([]Waypoint{
		{Course: "duathlon", Segment: "run", Km: 5, Name: "RUN1"},
		{Course: "duathlon", Segment: "bike", Km: 25, Name: "BIKE"},
		{Course: "duathlon", Segment: "run", Km: 27, Name: "RUN2A"},
		{Course: "duathlon", Segment: "run", Km: 30, Name: "FINISH"},
	})
	require.NoError(t, err)

	course, _ := analysis.Course("duathlon")
	var names []string
	for _, s := range course.Segments {
		names = append(names, s.Name)
	}
	require.Equal(t, []string{"run1", "bike", "run2", "total"}, names)

	run2, ok := course.Segment("run2")
	require.True(t, ok)
	require.Equal(t, 5.0, run2.Distance)
	require.Equal(t, []string{"RUN2A", "FINISH"}, run2.SplitPoints)
}

func TestAnalyzeStableTies(t *testing.T) {
	analysis, err := Analyze([]Waypoint{
		{Course: "c", Segment: "swim", Km: 1, Name: "SWIM"},
		{Course: "c", Segment: "t", Km: 1, Name: "T1"},
		{Course: "c", Segment: "bike", Km: 2, Name: "BIKE"},
	})
	require.NoError(t, err)

	course, _ := analysis.Course("c")
	require.Equal(t, []string{"SWIM", "T1", "BIKE"}, course.Total().SplitPoints)
	t1, _ := course.Segment("t")
	require.Equal(t, 0.0, t1.Distance)
}

func TestAnalyzeCoursesIndependently(t *testing.T) {
	waypoints := []Waypoint{
		{Course: "sprint", Segment: "swim", Km: 0.75, Name: "SWIM"},
		{Course: "olympic", Segment: "swim", Km: 1.5, Name: "SWIM"},
		{Course: "sprint", Segment: "run", Km: 25.75, Name: "FINISH"},
		{Course: "olympic", Segment: "run", Km: 51.5, Name: "FINISH"},
	}
	analysis, err := Analyze(waypoints)
	require.NoError(t, err)

	require.Len(t, analysis.Courses, 2)
	require.Equal(t, "olympic", analysis.Courses[0].Name)
	require.Equal(t, "sprint", analysis.Courses[1].Name)

	sprint, _ := analysis.Course("sprint")
	require.Equal(t, 25.75, sprint.Total().Distance)
	run, _ := sprint.Segment("run")
	require.Equal(t, 25.0, run.Distance)
}

func TestAnalyzeEmptyLabels(t *testing.T) {
	analysis, err := Analyze([]Waypoint{
		{Km: 1, Name: "A"},
		{Km: 2, Name: "B"},
	})
	require.NoError(t, err)

	course, ok := analysis.Course("")
	require.True(t, ok)
	segment, ok := course.Segment("")
	require.True(t, ok)
	require.Equal(t, []string{"A", "B"}, segment.SplitPoints)
}

func TestAnalyzeInvalidKm(t *testing.T) {
	for _, km := range []float64{-0.5, math.NaN(), math.Inf(1)} {
		_, err := Analyze([]Waypoint{
			{Course: "c", Segment: "swim", Km: 1, Name: "SWIM"},
			{Course: "c", Segment: "bike", Km: km, Name: "BIKE"},
		})
		require.ErrorIs(t, err, ErrInvalidKm)
	}
}

func randomWaypoints(r *rand.Rand) []Waypoint {
	segments := []string{"swim", "t", "bike", "t", "run"}
	var waypoints []Waypoint
	for _, course := range []string{"a", "b", "c"} {
		km := 0.0
		for i, segment := range segments {
			for j := 0; j < 1+r.Intn(3); j++ {
				km += 0.001 + r.Float64()*10
				waypoints = append(waypoints, Waypoint{
					Course:  course,
					Segment: segment,
					Km:      km,
					Name:    strings.ToUpper(segment) + string(rune('A'+i)) + string(rune('a'+j)),
				})
			}
		}
	}
	return waypoints
}

func TestAnalyzeProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for iteration := 0; iteration < 50; iteration++ {
		waypoints := randomWaypoints(r)
		analysis, err := Analyze(waypoints)
		require.NoError(t, err)

		for _, course := range analysis.Courses {
			maxKm := 0.0
			var names []string
			for _, w := range waypoints {
				if w.Course == course.Name {
					maxKm = math.Max(maxKm, w.Km)
					names = append(names, w.Name)
				}
			}

			total := course.Total()
			require.Equal(t, TotalSegment, total.Name)
			require.InDelta(t, maxKm, total.Distance, 0.0005)

			sum := 0.0
			var union []string
			for _, segment := range course.Segments[:len(course.Segments)-1] {
				require.GreaterOrEqual(t, segment.Distance, 0.0)
				require.NotEmpty(t, segment.SplitPoints)
				sum += segment.Distance
				union = append(union, segment.SplitPoints...)
			}
			require.InDelta(t, total.Distance, sum, 0.0005*float64(len(course.Segments)))
			require.Equal(t, total.SplitPoints, union)
			require.ElementsMatch(t, names, union)

			_, ok := course.Segment("t1")
			require.True(t, ok)
			_, ok = course.Segment("t2")
			require.True(t, ok)
			_, ok = course.Segment("t")
			require.False(t, ok)
		}

		shuffled := make([]Waypoint, len(waypoints))
		copy(shuffled, waypoints)
		r.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		reordered, err := Analyze(shuffled)
		require.NoError(t, err)
		diff := cmp.Diff(analysis, reordered)
		if diff != "" {
			t.Fatal(diff)
		}
	}
}
