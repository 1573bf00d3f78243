package xblock

import (
	"strings"
	"time"
)

// Studio renders schedule dates for display as "Jan 02, 2014 at 15:04 UTC".
const (
	displayDateLayout = "Jan 02, 2006"
	displayTimeLayout = "15:04"
	displaySep        = " at "
)

// FormatDisplayDate renders t (converted to UTC) in Studio's display form.
func FormatDisplayDate(t time.Time) string {
	t = t.UTC()
	return t.Format(displayDateLayout) + displaySep + t.Format(displayTimeLayout) + " UTC"
}

// ParseDisplayDate parses Studio's display form. The " at <time> UTC" part
// is optional; a missing time means midnight UTC.
func ParseDisplayDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	datePart, timePart, hasTime := strings.Cut(s, displaySep)
	d, err := time.Parse(displayDateLayout, strings.TrimSpace(datePart))
	if err != nil {
		// Single-digit days ("Jan 2, 2014") show up in older payloads.
		d, err = time.Parse("Jan 2, 2006", strings.TrimSpace(datePart))
		if err != nil {
			return time.Time{}, err
		}
	}
	if !hasTime {
		return d.UTC(), nil
	}
	timePart = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(timePart), "UTC"))
	tm, err := time.Parse(displayTimeLayout, timePart)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), tm.Hour(), tm.Minute(), 0, 0, time.UTC), nil
}
