// Package extract holds the provider-agnostic field extraction
// cascades: ordered pattern lists tried until one yields a value that
// passes a sanity check. Provider parsers layer their own
// higher-precision patterns ahead of these.
package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// maxLocationLen bounds extracted locations; anything longer is noise.
const maxLocationLen = 200

// costPatterns, most specific first. Values are accepted when > 0.
var costPatterns = compile([]string{
	`\*\*Total\s+Cost\*\*[^\d]*\*\*([0-9]+\.[0-9]{2})\s+AUD\*\*`,
	`\*\*Total\s+Sales\s+Amount\*\*[^\d]*\*\*([0-9]+\.[0-9]{2})\s+AUD\*\*`,
	`Total\s+Cost[:\s]*\*\*([0-9]+\.[0-9]{2})\s+AUD\*\*`,
	`Sale\s+Amount[:\s]*([0-9]+\.[0-9]{2})\s+AUD`,
	`Energy\s+Cost[:\s]*([0-9]+\.[0-9]{2})\s+AUD`,
	`\*\*([0-9]+\.[0-9]{2})\s+AUD\*\*`,
	`\*\*\$([0-9]+\.[0-9]{2})\*\*\s+for\s+EV\s+charging`,
	`Total\s+Amount\s+including\s+GST[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Payments[:\s]*Amount[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Total\s+Amount[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Amount\s+Due[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Amount\s+Charged[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Session\s+Cost[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Charging\s+Cost[:\s]*\$([0-9]+\.[0-9]{2})`,
	`You\s+paid[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Payment[:\s]*\$([0-9]+\.[0-9]{2})`,
	`GST\s+Inclusive[:\s]*\$([0-9]+\.[0-9]{2})`,
	`EV\s+charging[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Charging\s+fee[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Supercharging[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Total[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Amount[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Final\s+Amount[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Invoice\s+Total[:\s]*\$([0-9]+\.[0-9]{2})`,
	`([0-9]+\.[0-9]{2})\s*AUD`,
	`AUD\s*\$?([0-9]+\.[0-9]{2})`,
	`Total\s*\$([0-9]+\.[0-9]{2})\s+AUD`,
	`\$([0-9]+\.[0-9]{2})`,
})

// energyPatterns accept only values in (0, 200) kWh.
var energyPatterns = compile([]string{
	`Total\s+Energy[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Energy\s+Distributed[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Energy\s+Consumed[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Energy\s+Delivered[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`kWh\s+Delivered[:\s]*([0-9]+\.[0-9]+)`,
	`Charging\s+for\s+\d+mins?,\s+([0-9]+\.[0-9]+)kWh`,
	`([0-9]+\.[0-9]+)kWh\s+@\s+\$[0-9]+\.[0-9]+/kWh`,
	`Energy\s+delivered[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`kWh\s+consumed[:\s]*([0-9]+\.[0-9]+)`,
	`([0-9]+\.[0-9]+)\s*kWh\s+delivered`,
	`([0-9]+\.[0-9]+)\s*kWh\s+charged`,
	`Charged[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Session\s+energy[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Power\s+delivered[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`(\d+\.\d+)\s*kWh`,
	`(\d+)\s*kWh`,
	`Energy[:\s]*(\d+\.?\d*)`,
	`kWh[:\s]*([0-9]+\.[0-9]+)`,
	`([0-9]+\.[0-9]+)\s+kilowatt.hours?`,
})

// locationPatterns: labeled fields first, then structured address
// shapes. Multi-group matches are joined with a single space.
var locationPatterns = compile([]string{
	`Location[:\s]*([^\n\r]+)`,
	`Site[:\s]*([^\n\r]+)`,
	`Station[:\s]*([^\n\r]+)`,
	`Address[:\s]*([^\n\r]+)`,
	`Charging\s+station[:\s]*([^\n\r]+)`,
	`Venue[:\s]*([^\n\r]+)`,
	`(\d+-\d+\s+[A-Za-z\s]+(?:Street|St|Road|Rd|Avenue|Ave|Drive|Dr|Highway|Hwy|Lane|Ln)[^\n\r,]*,\s*[A-Za-z\s]+,\s*[A-Z]{2,3}\s*\d{4})`,
	`(\d+\s+[A-Za-z\s]+(?:Street|St|Road|Rd|Avenue|Ave|Drive|Dr|Highway|Hwy|Lane|Ln)[^\n\r,]*,\s*[A-Za-z\s]+,\s*[A-Z]{2,3}\s*\d{4})`,
	`(\d+\s+[A-Za-z\s]+(?:Street|St|Road|Rd|Avenue|Ave|Drive|Dr|Highway|Hwy|Lane|Ln)[^\n\r,]*,\s*[A-Z]{2,3}\s*\d{4})`,
	`([A-Za-z\s]+,\s*[A-Z]{2,3}\s*\d{4})`,
})

// durationPatterns, labeled and clock-shaped forms.
var durationPatterns = compile([]string{
	`Charging\s+Time[:\s]*(\d+)m`,
	`Session\s+[Dd]uration[:\s]*(\d+:\d+(?::\d+)?)`,
	`Duration[:\s]*(\d{2}:\d{2}:\d{2})`,
	`Duration[:\s]*(\d+\s+minutes?)`,
	`Charging\s+for\s+(\d+mins?)`,
	`Duration[:\s]*(\d+:\d+(?::\d+)?)`,
	`Time[:\s]*(\d+:\d+(?::\d+)?)`,
	`(\d+)\s*minutes?\s+charging`,
	`(\d+)\s*mins?\s+session`,
	`Charged\s+for[:\s]*(\d+)\s*minutes?`,
	`Session\s+time[:\s]*(\d+)\s*minutes?`,
	`(\d+)\s*hours?\s*(\d+)?\s*minutes?`,
	`(\d+)h\s*(\d+)?m`,
	`(\d+m(?:\s*\d+s)?)`,
	`Duration[:\s]*([^\n\r]+)`,
	`(\d+)\s*minutes?`,
})

func compile(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(`(?i)` + p)
	}
	return compiled
}

// Cost returns the first positive amount matched by the generic cost
// cascade.
func Cost(text string) (float64, bool) {
	return CostFrom(text, nil)
}

// chain yields the provider tier followed by the generic tier without
// sharing backing arrays.
func chain(own, generic []*regexp.Regexp) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(own)+len(generic))
	out = append(out, own...)
	return append(out, generic...)
}

// CostFrom tries the provider-specific patterns first, then the
// generic cascade.
func CostFrom(text string, own []*regexp.Regexp) (float64, bool) {
	for _, re := range chain(own, costPatterns) {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil || value <= 0 {
			continue
		}
		return value, true
	}
	return 0, false
}

// Energy returns the first plausible session energy in kWh.
func Energy(text string) (float64, bool) {
	return EnergyFrom(text, nil)
}

// EnergyFrom tries the provider-specific patterns first, then the
// generic cascade. Values outside (0, 200) kWh are not a plausible
// session and are skipped.
func EnergyFrom(text string, own []*regexp.Regexp) (float64, bool) {
	for _, re := range chain(own, energyPatterns) {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value, err := strconv.ParseFloat(match[1], 64)
		if err != nil || value <= 0 || value >= 200 {
			continue
		}
		return value, true
	}
	return 0, false
}

// Location returns the first acceptable charging site description.
func Location(text string) (string, bool) {
	return LocationFrom(text, nil)
}

// LocationFrom tries the provider-specific patterns first, then the
// generic cascade. Multi-group matches are joined with a space; the
// result is whitespace-normalized, truncated to 200 characters, and
// must exceed 5 characters.
func LocationFrom(text string, own []*regexp.Regexp) (string, bool) {
	for _, re := range chain(own, locationPatterns) {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if location, ok := cleanLocation(match[1:]); ok {
			return location, true
		}
	}
	return "", false
}

// CleanLocation normalizes captured location groups into a single
// bounded string, reporting false when the result is too short to be
// meaningful.
func CleanLocation(groups []string) (string, bool) {
	return cleanLocation(groups)
}

func cleanLocation(groups []string) (string, bool) {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		if g = strings.TrimSpace(g); g != "" {
			parts = append(parts, g)
		}
	}

	location := strings.Join(parts, " ")
	location = strings.NewReplacer("\n", " ", "\r", " ").Replace(location)
	location = whitespaceRE.ReplaceAllString(location, " ")
	location = strings.TrimSpace(location)
	if len(location) > maxLocationLen {
		location = location[:maxLocationLen]
	}
	if len(location) <= 5 {
		return "", false
	}
	return location, true
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// Duration returns the first matched session length as free text.
func Duration(text string) (string, bool) {
	return DurationFrom(text, nil)
}

// DurationFrom tries the provider-specific patterns first, then the
// generic cascade. Two-group matches are hour+minute pairs rendered as
// "Xh Ym"; single-group forms keep their own units.
func DurationFrom(text string, own []*regexp.Regexp) (string, bool) {
	for _, re := range chain(own, durationPatterns) {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		if len(match) > 2 && match[2] != "" {
			return match[1] + "h " + match[2] + "m", true
		}
		return strings.TrimSpace(match[1]), true
	}
	return "", false
}
