package model

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// abbreviations maps zone abbreviations seen in provider mail to locations.
// time.Parse fabricates a zero-offset zone for unknown abbreviations, so
// parsers resolve the abbreviation here instead.
var abbreviations = map[string]string{
	"UTC":  "UTC",
	"GMT":  "UTC",
	"Z":    "UTC",
	"EST":  "America/New_York",
	"EDT":  "America/New_York",
	"CST":  "America/Chicago",
	"CDT":  "America/Chicago",
	"MST":  "America/Denver",
	"MDT":  "America/Denver",
	"PST":  "America/Los_Angeles",
	"PDT":  "America/Los_Angeles",
	"CET":  "Europe/Paris",
	"CEST": "Europe/Paris",
	"BST":  "Europe/London",
}

// LoadLocation resolves an IANA zone name or a common abbreviation.
// An empty name is UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	if iana, ok := abbreviations[strings.ToUpper(name)]; ok {
		name = iana
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

// CanonicalZone returns the name stored for a zone, resolving abbreviations.
func CanonicalZone(name string) string {
	if iana, ok := abbreviations[strings.ToUpper(strings.TrimSpace(name))]; ok {
		return iana
	}
	return strings.TrimSpace(name)
}
