package normalizer

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// CoerceOptions control timestamp parsing.
type CoerceOptions struct {
	// Location interprets values without a zone. Nil means UTC.
	Location *time.Location
	// Layouts are tried before the built-in ones.
	Layouts []string
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
}

var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006 15:04",
	"2006-01-02",
	"02/01/2006",
	// Month-first slash dates only match when the day-first reading fails.
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// spreadsheet serial dates count days from 1899-12-30
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const (
	minExcelSerial = 20000
	maxExcelSerial = 80000
)

// ParseTimestamp parses a cell into a timestamp. The boolean is false for
// empty or unparsable input.
func ParseTimestamp(value string, opts CoerceOptions) (time.Time, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, false
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range opts.Layouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}

	for _, layout := range zonedLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}

	for _, layout := range localLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}

	return parseNumeric(s, loc)
}

func parseNumeric(s string, loc *time.Location) (time.Time, bool) {
	if len(s) == 10 && isAllDigits(s) {
		secs, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}

		return time.Unix(secs, 0).In(loc), true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || f < minExcelSerial || f > maxExcelSerial {
		return time.Time{}, false
	}

	days := math.Floor(f)
	// round to the second to drop binary fraction noise
	secs := math.Round((f - days) * 86400)
	wall := excelEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)

	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc), true
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return s != ""
}
