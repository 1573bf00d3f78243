package sectionmodal

import (
	"fmt"
	"strings"
	"time"

	"studio-cli/internal/xblock"
)

// Picker layouts.
const (
	dateLayout     = "01/02/06"
	longDateLayout = "01/02/2006"
	timeLayout     = "15:04"
)

// SplitDateTime splits a "<date> at <time> UTC" display string into the
// picker strings (MM/DD/YY, HH:MM). Empty or unparseable input yields two
// empty strings.
func SplitDateTime(display string) (date, clock string) {
	display = strings.TrimSpace(display)
	if display == "" {
		return "", ""
	}
	t, err := xblock.ParseDisplayDate(display)
	if err != nil {
		return "", ""
	}
	return t.Format(dateLayout), t.Format(timeLayout)
}

// ResolveDateTime combines picker strings into a UTC instant. A blank date
// means "no date" (nil). A blank time means midnight.
func ResolveDateTime(date, clock string) (*time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return nil, nil
	}
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		d, err = time.Parse(longDateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q (want MM/DD/YY)", date)
		}
	}
	hh, mm := 0, 0
	if clock != "" {
		tm, err := time.Parse(timeLayout, clock)
		if err != nil {
			return nil, fmt.Errorf("invalid time %q (want HH:MM)", clock)
		}
		hh, mm = tm.Hour(), tm.Minute()
	}
	out := time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, time.UTC)
	return &out, nil
}
