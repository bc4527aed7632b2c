package facts

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date extraction is best-effort: a date fact whose text has no recognizable
// pattern simply keeps a nil fact_date, it never fails the save. Patterns
// follow UK legal drafting: day-first numerics and written month names.
var (
	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{4})\b`)
	writtenDatePattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{4})\b`)
)

var monthsByName = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

// ExtractDate finds the first recognizable date in text and returns it at
// midnight UTC, or nil when no valid date is present.
func ExtractDate(text string) *time.Time {
	if m := numericDatePattern.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if d := buildDate(year, time.Month(month), day); d != nil {
			return d
		}
	}
	if m := writtenDatePattern.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := monthsByName[strings.ToLower(m[2])]
		year, _ := strconv.Atoi(m[3])
		if ok {
			if d := buildDate(year, month, day); d != nil {
				return d
			}
		}
	}
	return nil
}

// buildDate validates the components by round-trip: time.Date normalizes
// overflow (31 February becomes 2-3 March), so a changed day or month means
// the input was not a real calendar date.
func buildDate(year int, month time.Month, day int) *time.Time {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return nil
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return nil
	}
	return &d
}
