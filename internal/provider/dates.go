package provider

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/nhle/circuit-janitor/internal/model"
)

// DaysBetween returns every calendar date from start's date through end's
// date, both read in start's location, as UTC-midnight dates.
func DaysBetween(start, end time.Time) []time.Time {
	end = end.In(start.Location())
	first := model.Day(start)
	last := model.Day(end)
	if last.Before(first) {
		last = first
	}

	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

var zoneSuffix = regexp.MustCompile(`^(.*\d)\s+\(?\s*([A-Za-z][A-Za-z0-9_/+\-]*)\s*\)?$`)

// ParseZoned parses "<datetime> <zone>" where zone is an IANA name or an
// abbreviation. The datetime part is tried against layouts in order and
// then handed to dateparse. It returns the instant and the canonical zone.
func ParseZoned(s string, layouts ...string) (time.Time, string, error) {
	s = CleanLine(s)
	m := zoneSuffix.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, "", fmt.Errorf("no timezone in %q", s)
	}
	stamp, zone := m[1], model.CanonicalZone(m[2])

	loc, err := model.LoadLocation(zone)
	if err != nil {
		return time.Time{}, "", err
	}
	t, err := ParseLocal(stamp, loc, layouts...)
	if err != nil {
		return time.Time{}, "", err
	}
	return t, zone, nil
}

// ParseLocal parses a zone-less datetime in loc.
func ParseLocal(s string, loc *time.Location, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing datetime %q: %w", s, err)
	}
	return t, nil
}
