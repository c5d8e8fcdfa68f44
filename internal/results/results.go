// Package results turns the per point splits of the rtrt.me api into one
// row per participant.
package results

import (
	"raceresults/internal/scrapers/rtrt"
	"regexp"
	"slices"
	"sort"
	"strings"
)

type Column string

const (
	ColPid       Column = "pid"
	ColName      Column = "name"
	ColSex       Column = "sex"
	ColDivision  Column = "division"
	ColCourse    Column = "course"
	ColCountry   Column = "country"
	ColCity      Column = "city"
	ColBib       Column = "bib"
	ColStartTime Column = "startTime"

	ColSwimTime             Column = "swimTime"
	ColSwimPace             Column = "swimPace"
	ColT1Time               Column = "t1Time"
	ColBikeTime             Column = "bikeTime"
	ColBikePace             Column = "bikePace"
	ColT2Time               Column = "t2Time"
	ColRunTime              Column = "runTime"
	ColRunPace              Column = "runPace"
	ColTotalTime            Column = "totalTime"
	ColOverallRank          Column = "overallRank"
	ColOverallParticipants  Column = "overallParticipants"
	ColGenderRank           Column = "genderRank"
	ColGenderParticipants   Column = "genderParticipants"
	ColAgeGroupRank         Column = "ageGroupRank"
	ColAgeGroupParticipants Column = "ageGroupParticipants"
)

// AllColumns is the order columns are exported in.
var AllColumns = []Column{
	ColPid, ColName, ColSex, ColDivision, ColCourse, ColCountry, ColCity, ColBib, ColStartTime,
	ColSwimTime, ColSwimPace,
	ColT1Time,
	ColBikeTime, ColBikePace,
	ColT2Time,
	ColRunTime, ColRunPace, ColTotalTime,
	ColOverallRank, ColOverallParticipants,
	ColGenderRank, ColGenderParticipants,
	ColAgeGroupRank, ColAgeGroupParticipants,
}

const RelayDivision = "RELAY"

// missingTotalTime sorts participants without a finish after everyone else
const missingTotalTime = "99:99:99"

type rankField struct {
	group string
	total bool
}

type legField struct {
	column Column
	// exactly one of these is set
	value func(rtrt.Split) rtrt.Text
	rank  *rankField
}

func legTime(s rtrt.Split) rtrt.Text { return s.LegTime }
func paceAvg(s rtrt.Split) rtrt.Text { return s.PaceAvg }
func netTime(s rtrt.Split) rtrt.Text { return s.NetTime }

var legMap = map[string][]legField{
	"SWIM": {
		{column: ColSwimTime, value: legTime},
		{column: ColSwimPace, value: paceAvg},
	},
	"T1": {
		{column: ColT1Time, value: legTime},
	},
	"BIKE": {
		{column: ColBikeTime, value: legTime},
		{column: ColBikePace, value: paceAvg},
	},
	"T2": {
		{column: ColT2Time, value: legTime},
	},
	"FINISH": {
		{column: ColRunTime, value: legTime},
		{column: ColRunPace, value: paceAvg},
		{column: ColTotalTime, value: netTime},
		{column: ColOverallRank, rank: &rankField{group: "course"}},
		{column: ColOverallParticipants, rank: &rankField{group: "course", total: true}},
		{column: ColGenderRank, rank: &rankField{group: "course-sex"}},
		{column: ColGenderParticipants, rank: &rankField{group: "course-sex", total: true}},
		{column: ColAgeGroupRank, rank: &rankField{group: "course-sex-division"}},
		{column: ColAgeGroupParticipants, rank: &rankField{group: "course-sex-division", total: true}},
	},
}

func (f legField) read(s rtrt.Split) string {
	if f.rank == nil {
		return StripMilliseconds(f.value(s).String())
	}
	rank, ok := s.Results[f.rank.group]
	if !ok {
		return ""
	}
	if f.rank.total {
		return rank.T.String()
	}
	return rank.P.String()
}

// Participant holds the columns known about a single participant.
type Participant struct {
	fields map[Column]string
}

func newParticipant(s rtrt.Split) *Participant {
	return &Participant{fields: map[Column]string{
		ColPid:       s.Pid.String(),
		ColName:      s.Name.String(),
		ColSex:       s.Sex.String(),
		ColDivision:  s.Division.String(),
		ColCourse:    s.Course.String(),
		ColCountry:   s.Country.String(),
		ColCity:      s.City.String(),
		ColBib:       s.Bib.String(),
		ColStartTime: s.StartTime.String(),
	}}
}

// Get returns the value of col, false if it was never set.
func (p Participant) Get(col Column) (string, bool) {
	v, ok := p.fields[col]
	return v, ok
}

func (p Participant) Pid() string       { return p.fields[ColPid] }
func (p Participant) Course() string    { return p.fields[ColCourse] }
func (p Participant) Division() string  { return p.fields[ColDivision] }
func (p Participant) TotalTime() string { return p.fields[ColTotalTime] }

// Values returns the row of p for cols, unset columns are nil.
func (p Participant) Values(cols []Column) []any {
	out := make([]any, len(cols))
	for i, col := range cols {
		v, ok := p.fields[col]
		if ok {
			out[i] = v
		}
	}
	return out
}

func (p Participant) sortKey() string {
	total := p.TotalTime()
	if total == "" {
		return missingTotalTime
	}
	return total
}

var millisRegex = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2})\.\d{1,3}$`)

// StripMilliseconds turns "01:02:03.456" into "01:02:03", other values are
// returned unchanged.
func StripMilliseconds(t string) string {
	match := millisRegex.FindStringSubmatch(t)
	if match == nil {
		return t
	}
	return match[1]
}

type NormalizeOptions struct {
	// StripFromPoint is removed from point names before they are matched to
	// a leg, some events suffix them with a course id (ex. "SWIM4184").
	StripFromPoint string
}

type Summary struct {
	Divisions []string
	Courses   []string
	Legs      []string
}

type firstSeen struct {
	seen  map[string]struct{}
	order []string
}

func (f *firstSeen) add(v string) {
	if f.seen == nil {
		f.seen = map[string]struct{}{}
	}
	if _, ok := f.seen[v]; ok {
		return
	}
	f.seen[v] = struct{}{}
	f.order = append(f.order, v)
}

// Normalize merges the splits of every profile into participants sorted by
// total time. splits is keyed by pid.
func Normalize(profiles []rtrt.Profile, splits map[string][]rtrt.Split, opts NormalizeOptions) ([]Participant, Summary) {
	var divisions, courses, legs firstSeen
	byPid := map[string]*Participant{}
	var order []string

	for _, profile := range profiles {
		for _, split := range splits[profile.Pid.String()] {
			pid := split.Pid.String()
			participant, ok := byPid[pid]
			if !ok {
				participant = newParticipant(split)
				byPid[pid] = participant
				order = append(order, pid)
			}

			leg := split.Point.String()
			if opts.StripFromPoint != "" {
				leg = strings.ReplaceAll(leg, opts.StripFromPoint, "")
			}
			for _, field := range legMap[leg] {
				participant.fields[field.column] = field.read(split)
			}

			divisions.add(split.Division.String())
			courses.add(split.Course.String())
			legs.add(leg)
		}
	}

	participants := make([]Participant, len(order))
	for i, pid := range order {
		participants[i] = *byPid[pid]
	}
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].sortKey() < participants[j].sortKey()
	})

	sortedDivisions := slices.Clone(divisions.order)
	slices.Sort(sortedDivisions)

	return participants, Summary{
		Divisions: sortedDivisions,
		Courses:   courses.order,
		Legs:      legs.order,
	}
}

// ForCourse returns the participants of course, without relay teams if
// removeRelay is set.
func ForCourse(participants []Participant, course string, removeRelay bool) []Participant {
	var out []Participant
	for _, p := range participants {
		if p.Course() != course {
			continue
		}
		if removeRelay && p.Division() == RelayDivision {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Columns returns every column set on at least one participant.
func Columns(participants []Participant) []Column {
	var out []Column
	for _, col := range AllColumns {
		for _, p := range participants {
			if _, ok := p.fields[col]; ok {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

func Header(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = string(c)
	}
	return out
}
