package points

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type record struct {
	Course  string          `json:"course"`
	Segment string          `json:"segment"`
	Km      json.RawMessage `json:"km"`
	Name    string          `json:"name"`
}

type document struct {
	List []json.RawMessage `json:"list"`
}

// parseKm accepts a json number or a string holding a number, the rtrt api
// sends km as strings.
func parseKm(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("missing km")
	}

	text := string(raw)
	if raw[0] == '"' {
		err := json.Unmarshal(raw, &text)
		if err != nil {
			return 0, err
		}
		text = strings.TrimSpace(text)
	}

	return strconv.ParseFloat(text, 64)
}

// DecodeRecords converts raw waypoint records into waypoints, fields other than
// course, segment, km and name are ignored.
func DecodeRecords(raw []json.RawMessage) ([]Waypoint, error) {
	waypoints := make([]Waypoint, 0, len(raw))
	for i, r := range raw {
		var rec record
		err := json.Unmarshal(r, &rec)
		if err != nil {
			return nil, fmt.Errorf("decode waypoint %d: %w", i, err)
		}
		km, err := parseKm(rec.Km)
		if err != nil {
			return nil, fmt.Errorf("%w: waypoint %d (%q): %s", ErrInvalidKm, i, rec.Name, err.Error())
		}
		waypoints = append(waypoints, Waypoint{
			Course:  rec.Course,
			Segment: rec.Segment,
			Km:      km,
			Name:    rec.Name,
		})
	}
	return waypoints, nil
}

// Decode reads waypoints from a json document that is either an object with a
// top-level "list" array or a bare array of records.
func Decode(r io.Reader) ([]Waypoint, error) {
	contents, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	contents = bytes.TrimSpace(contents)
	if len(contents) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if contents[0] == '[' {
		err = json.Unmarshal(contents, &raw)
	} else {
		var doc document
		err = json.Unmarshal(contents, &doc)
		raw = doc.List
	}
	if err != nil {
		return nil, fmt.Errorf("decode points document: %w", err)
	}

	return DecodeRecords(raw)
}
