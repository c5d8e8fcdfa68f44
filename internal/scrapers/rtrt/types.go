package rtrt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Text is a json value the api sends either as a string or as a number.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		if err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	err := json.Unmarshal(data, &n)
	if err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string {
	return string(t)
}

// Int parses the value as an integer, false if it is empty or not an integer.
func (t Text) Int() (int, bool) {
	if t == "" {
		return 0, false
	}
	n, err := strconv.Atoi(string(t))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Credentials are the app id and token the web tracker uses to authenticate.
type Credentials struct {
	AppId string `json:"app_id"`
	Token string `json:"token"`
}

func (c Credentials) Valid() bool {
	return c.AppId != "" && c.Token != ""
}

// Profile is a registered participant of an event.
type Profile struct {
	Pid      Text `json:"pid"`
	Name     Text `json:"name"`
	Sex      Text `json:"sex"`
	Division Text `json:"division"`
	Course   Text `json:"course"`
	Country  Text `json:"country"`
	City     Text `json:"city"`
	Bib      Text `json:"bib"`
}

// Rank is a placing within a result group, P is the place and T the number of
// participants in the group.
type Rank struct {
	P Text `json:"p"`
	T Text `json:"t"`
}

// Split is the time of one participant at one point of the course.
type Split struct {
	Pid       Text            `json:"pid"`
	Name      Text            `json:"name"`
	Sex       Text            `json:"sex"`
	Division  Text            `json:"division"`
	Course    Text            `json:"course"`
	Country   Text            `json:"country"`
	City      Text            `json:"city"`
	Bib       Text            `json:"bib"`
	StartTime Text            `json:"startTime"`
	Point     Text            `json:"point"`
	LegTime   Text            `json:"legTime"`
	PaceAvg   Text            `json:"paceAvg"`
	NetTime   Text            `json:"netTime"`
	Results   map[string]Rank `json:"results"`
}

type apiError struct {
	Type Text `json:"type"`
	Msg  Text `json:"msg"`
}

type pageInfo struct {
	First Text `json:"first"`
	Last  Text `json:"last"`
}

type pageResponse struct {
	List  []json.RawMessage `json:"list"`
	Info  *pageInfo         `json:"info"`
	Error *apiError         `json:"error"`
}

func decodeList[T any](raw []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(raw))
	for i, r := range raw {
		var v T
		err := json.Unmarshal(r, &v)
		if err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func DecodeProfiles(raw []json.RawMessage) ([]Profile, error) {
	return decodeList[Profile](raw)
}

func DecodeSplits(raw []json.RawMessage) ([]Split, error) {
	return decodeList[Split](raw)
}

// SplitDocument is the document the splits of a single participant are stored as.
type SplitDocument struct {
	List []json.RawMessage `json:"list"`
}

// GroupByPid groups raw split entries by their pid, pids keep the order they
// first appear in.
func GroupByPid(raw []json.RawMessage) ([]string, map[string][]json.RawMessage, error) {
	var order []string
	groups := map[string][]json.RawMessage{}
	for i, r := range raw {
		var entry struct {
			Pid Text `json:"pid"`
		}
		err := json.Unmarshal(r, &entry)
		if err != nil {
			return nil, nil, fmt.Errorf("decode split %d: %w", i, err)
		}
		pid := entry.Pid.String()
		if _, ok := groups[pid]; !ok {
			order = append(order, pid)
		}
		groups[pid] = append(groups[pid], r)
	}
	return order, groups, nil
}

// Chunk splits pids into groups of at most size.
func Chunk(pids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(pids); start += size {
		end := min(start+size, len(pids))
		out = append(out, pids[start:end])
	}
	return out
}
