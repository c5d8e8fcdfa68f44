package points

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatKm renders a distance the way the report prints it, whole numbers keep
// one decimal ("20.0").
func FormatKm(km float64) string {
	text := strconv.FormatFloat(km, 'f', -1, 64)
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	return text
}

// WriteReport prints every course followed by its segments in run order.
func WriteReport(w io.Writer, a Analysis) error {
	for _, course := range a.Courses {
		_, err := fmt.Fprintf(w, "Course: %s\n", course.Name)
		if err != nil {
			return err
		}
		for _, segment := range course.Segments {
			_, err = fmt.Fprintf(
				w,
				"  Segment: %s\n    Distance: %s km\n    Split Points: %s\n",
				segment.Name,
				FormatKm(segment.Distance),
				strings.Join(segment.SplitPoints, ", "),
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
