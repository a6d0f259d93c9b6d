package normalize

import (
	"regexp"
	"strings"
)

// boilerplateMarkers flag footer and marketing lines that never carry
// receipt fields.
var boilerplateMarkers = []string{
	"unsubscribe",
	"privacy policy",
	"terms and conditions",
	"view this email",
	"download our app",
	"follow us",
	"social media",
	"customer service",
	"help center",
}

var (
	urlOnlyRE   = regexp.MustCompile(`^https?://\S+$`)
	emailOnlyRE = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

// cleanLines drops boilerplate, bare URLs, lone email addresses and
// near-empty lines. Permissive mode keeps single-character lines that
// table-heavy HTML tends to produce.
func cleanLines(text string, permissive bool) string {
	minLen := 2
	if permissive {
		minLen = 1
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < minLen {
			continue
		}
		if urlOnlyRE.MatchString(line) || emailOnlyRE.MatchString(line) {
			continue
		}
		lower := strings.ToLower(line)
		skip := false
		for _, marker := range boilerplateMarkers {
			if strings.Contains(lower, marker) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
