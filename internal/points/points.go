// Package points turns the flat list of waypoints of a race event into the
// segments of each course, with the distance of every segment and the names of
// the split points it contains.
package points

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// TotalSegment is the name of the synthetic segment spanning the whole course.
const TotalSegment = "total"

var ErrInvalidKm = errors.New("invalid km")

// Waypoint is a single measurement point of a course.
type Waypoint struct {
	Course  string
	Segment string
	// Km is the cumulative distance from the start of the course.
	Km   float64
	Name string
}

type Segment struct {
	Name        string
	Distance    float64
	SplitPoints []string
}

// Course holds the segments of a course in the order they are run, the
// TotalSegment is always last.
type Course struct {
	Name     string
	Segments []Segment
}

func (c Course) Segment(name string) (Segment, bool) {
	for _, s := range c.Segments {
		if s.Name == name {
			return s, true
		}
	}
	return Segment{}, false
}

// Total returns the TotalSegment of the course.
func (c Course) Total() Segment {
	if len(c.Segments) == 0 {
		return Segment{Name: TotalSegment}
	}
	return c.Segments[len(c.Segments)-1]
}

// Analysis holds one entry per course, ordered by course name.
type Analysis struct {
	Courses []Course
}

func (a Analysis) Course(name string) (Course, bool) {
	for _, c := range a.Courses {
		if c.Name == name {
			return c, true
		}
	}
	return Course{}, false
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func validate(waypoints []Waypoint) error {
	for i, w := range waypoints {
		if math.IsNaN(w.Km) || math.IsInf(w.Km, 0) || w.Km < 0 {
			return fmt.Errorf("%w: waypoint %d (%q): %v", ErrInvalidKm, i, w.Name, w.Km)
		}
	}
	return nil
}

// runs splits the sorted waypoints into maximal runs sharing the same segment.
func runs(sorted []Waypoint) [][]Waypoint {
	var out [][]Waypoint
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].Segment != sorted[i-1].Segment {
			out = append(out, sorted[start:i])
			start = i
		}
	}
	return out
}

func analyzeCourse(name string, waypoints []Waypoint) Course {
	sorted := slices.Clone(waypoints)
	slices.SortStableFunc(sorted, func(a, b Waypoint) int {
		switch {
		case a.Km < b.Km:
			return -1
		case a.Km > b.Km:
			return 1
		}
		return 0
	})

	segmentRuns := runs(sorted)

	// a label only gets numbered if it labels more than one run
	runCounts := map[string]int{}
	for _, run := range segmentRuns {
		runCounts[run[0].Segment]++
	}
	seen := map[string]int{}

	course := Course{Name: name}
	previousKm := 0.0
	for _, run := range segmentRuns {
		label := run[0].Segment
		seen[label]++
		if runCounts[label] > 1 {
			label = fmt.Sprintf("%s%d", label, seen[label])
		}

		lastKm := round3(run[len(run)-1].Km)
		splitPoints := make([]string, len(run))
		for i, w := range run {
			splitPoints[i] = w.Name
		}

		course.Segments = append(course.Segments, Segment{
			Name:        label,
			Distance:    round3(lastKm - previousKm),
			SplitPoints: splitPoints,
		})
		previousKm = lastKm
	}

	all := make([]string, len(sorted))
	for i, w := range sorted {
		all[i] = w.Name
	}
	course.Segments = append(course.Segments, Segment{
		Name:        TotalSegment,
		Distance:    round3(previousKm),
		SplitPoints: all,
	})

	return course
}

// Analyze groups waypoints by course and computes the segments of every course.
//
// Within a course, waypoints are ordered by km (ties keep their input order) and
// consecutive waypoints with the same segment label form one segment. A label that
// labels more than one such run gets the 1-based run number appended ("bike1",
// "bike2"). The distance of a segment is the km of its last waypoint minus the km
// of the last waypoint of the previous segment, rounded to 3 decimals.
func Analyze(waypoints []Waypoint) (Analysis, error) {
	err := validate(waypoints)
	if err != nil {
		return Analysis{}, err
	}

	byCourse := map[string][]Waypoint{}
	var names []string
	for _, w := range waypoints {
		if _, ok := byCourse[w.Course]; !ok {
			names = append(names, w.Course)
		}
		byCourse[w.Course] = append(byCourse[w.Course], w)
	}
	slices.SortFunc(names, strings.Compare)

	analysis := Analysis{Courses: make([]Course, 0, len(names))}
	for _, name := range names {
		analysis.Courses = append(analysis.Courses, analyzeCourse(name, byCourse[name]))
	}
	return analysis, nil
}
