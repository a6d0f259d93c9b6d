package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// nowFunc is swappable in tests.
var nowFunc = time.Now

// DateCandidate is one date-shaped pattern a provider (or the generic
// tier) knows how to interpret. When the pattern captures a second
// group it is treated as an attached clock time and joined to the date
// before parsing. Layouts are tried in order; an empty list means the
// match is a numeric slash/dash/dot form disambiguated by DayFirst.
type DateCandidate struct {
	Pattern  *regexp.Regexp
	Layouts  []string
	DayFirst bool
}

// genericDateCandidates in priority order. ISO first: an ISO-shaped
// string is parsed as ISO unconditionally and never reinterpreted
// day-first.
var genericDateCandidates = []DateCandidate{
	{Pattern: regexp.MustCompile(`(\d{4}-\d{1,2}-\d{1,2})(?:[ T](\d{1,2}:\d{2}))?`),
		Layouts: []string{"2006-1-2 15:04", "2006-1-2"}},
	{Pattern: regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`), DayFirst: true},
	{Pattern: regexp.MustCompile(`(\d{4}/\d{1,2}/\d{1,2})`),
		Layouts: []string{"2006/1/2"}},
	{Pattern: regexp.MustCompile(`(?i)(\d{1,2}\s+[A-Za-z]{3,9},?\s+\d{4})`),
		Layouts: []string{"2 January 2006", "2 Jan 2006", "2 January, 2006", "2 Jan, 2006"}},
	{Pattern: regexp.MustCompile(`(?i)([A-Za-z]{3,9}\s+\d{1,2},?\s+\d{4})`),
		Layouts: []string{"January 2, 2006", "Jan 2, 2006", "January 2 2006", "Jan 2 2006"}},
	{Pattern: regexp.MustCompile(`(\d{1,2}-\d{1,2}-\d{4})`), DayFirst: true},
	{Pattern: regexp.MustCompile(`(\d{4}\.\d{1,2}\.\d{1,2})`),
		Layouts: []string{"2006.1.2"}},
	{Pattern: regexp.MustCompile(`(\d{1,2}\.\d{1,2}\.\d{4})`), DayFirst: true},
}

// Date resolves a session timestamp from text using the generic
// candidate list.
func Date(text string) (time.Time, bool) {
	return DateFrom(text, nil)
}

// DateFrom tries the provider-supplied candidates first, then the
// generic list. A parsed date is rejected as implausible when its year
// is before 2020 or more than a year in the future; rejection moves on
// to the next candidate. Returns false when nothing plausible matched.
func DateFrom(text string, own []DateCandidate) (time.Time, bool) {
	candidates := make([]DateCandidate, 0, len(own)+len(genericDateCandidates))
	candidates = append(candidates, own...)
	candidates = append(candidates, genericDateCandidates...)

	for _, candidate := range candidates {
		for _, match := range candidate.Pattern.FindAllStringSubmatch(text, -1) {
			value := strings.TrimSpace(match[1])
			if len(match) > 2 && match[2] != "" {
				value += " " + strings.TrimSpace(match[2])
			}
			value = stripTimezoneAbbrev(value)

			parsed, err := parseCandidate(value, candidate)
			if err != nil {
				continue
			}
			if !plausible(parsed) {
				continue
			}
			return parsed, true
		}
	}
	return time.Time{}, false
}

// trailing timezone abbreviations (AEST, AEDT, ...) are dropped rather
// than resolved; the minute-level hash does not need the offset.
var tzAbbrevRE = regexp.MustCompile(`\s+[A-Z]{3,4}$`)

func stripTimezoneAbbrev(value string) string {
	return tzAbbrevRE.ReplaceAllString(value, "")
}

func parseCandidate(value string, candidate DateCandidate) (time.Time, error) {
	if len(candidate.Layouts) > 0 {
		for _, layout := range candidate.Layouts {
			if parsed, err := time.Parse(layout, value); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("no layout matched %q", value)
	}
	return parseNumeric(value, candidate.DayFirst)
}

var numericSepRE = regexp.MustCompile(`[/.\-]`)

// parseNumeric handles two-number-plus-year forms. The primary
// interpretation follows dayFirst; when it produces an impossible
// calendar date the alternate locale is tried before giving up.
func parseNumeric(value string, dayFirst bool) (time.Time, error) {
	datePart := value
	timePart := ""
	if idx := strings.IndexByte(value, ' '); idx > 0 {
		datePart, timePart = value[:idx], value[idx+1:]
	}

	fields := numericSepRE.Split(datePart, -1)
	if len(fields) != 3 {
		return time.Time{}, fmt.Errorf("not a numeric date: %q", value)
	}
	a, err1 := strconv.Atoi(fields[0])
	b, err2 := strconv.Atoi(fields[1])
	year, err3 := strconv.Atoi(fields[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, fmt.Errorf("not a numeric date: %q", value)
	}

	day, month := a, b
	if !dayFirst {
		day, month = b, a
	}

	parsed, err := makeDate(year, month, day, timePart)
	if err == nil {
		return parsed, nil
	}
	// Alternate-locale fallback.
	return makeDate(year, day, month, timePart)
}

func makeDate(year, month, day int, timePart string) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("impossible date %d-%d-%d", year, month, day)
	}
	hour, minute, second := 0, 0, 0
	if timePart != "" {
		clock, err := parseClock(timePart)
		if err != nil {
			return time.Time{}, err
		}
		hour, minute, second = clock.Hour(), clock.Minute(), clock.Second()
	}
	parsed := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if parsed.Day() != day || parsed.Month() != time.Month(month) {
		return time.Time{}, fmt.Errorf("impossible date %d-%d-%d", year, month, day)
	}
	return parsed, nil
}

var clockLayouts = []string{"3:04:05 PM", "3:04 PM", "15:04:05", "15:04"}

func parseClock(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range clockLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable clock %q", value)
}

// plausible rejects years before 2020 and dates more than a year out.
func plausible(t time.Time) bool {
	return t.Year() >= 2020 && !t.After(nowFunc().AddDate(1, 0, 0))
}
