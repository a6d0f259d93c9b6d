package providers

import (
	"strings"
	"unicode"
)

// providerTokens maps sender substrings to canonical provider names.
// Order matters: "bppulse" must match before the generic "bp".
var providerTokens = []struct {
	token string
	name  string
}{
	{"chargefox", "Chargefox"},
	{"evie", "EVIE Networks"},
	{"goevie", "EVIE Networks"},
	{"bppulse", "BP Pulse"},
	{"bp", "BP Pulse"},
	{"tesla", "Tesla"},
	{"chargepoint", "ChargePoint"},
	{"nrma", "NRMA"},
	{"ampcharge", "Ampol"},
	{"ampol", "Ampol"},
	{"exploren", "Exploren"},
	{"shell", "Shell Recharge"},
	{"tritium", "Tritium"},
	{"jetcharge", "JET Charge"},
	{"schneider", "Schneider Electric"},
	{"agl", "AGL"},
	{"origin", "Origin Energy"},
	{"energex", "Energex"},
	{"ausgrid", "Ausgrid"},
}

// IdentifyProvider maps an email sender to a canonical provider name.
// Unknown senders fall back to a title-cased domain name, then to
// "Unknown".
func IdentifyProvider(sender string) string {
	lower := strings.ToLower(sender)
	for _, entry := range providerTokens {
		if strings.Contains(lower, entry.token) {
			return entry.name
		}
	}

	if at := strings.LastIndexByte(sender, '@'); at >= 0 && at < len(sender)-1 {
		domain := strings.TrimSuffix(sender[at+1:], ">")
		parts := strings.Split(domain, ".")
		for _, part := range parts {
			partLower := strings.ToLower(part)
			for _, entry := range providerTokens {
				if strings.Contains(partLower, entry.token) {
					return entry.name
				}
			}
		}
		if len(parts) > 0 && parts[0] != "" {
			return titleCase(parts[0])
		}
	}
	return "Unknown"
}

// IsHomeCharging reports whether the provider name denotes a home
// charging session rather than a public network.
func IsHomeCharging(provider string) bool {
	switch strings.ToUpper(provider) {
	case "EVCC (HOME)", "HOME", "EVCC":
		return true
	}
	return false
}

func titleCase(s string) string {
	runes := []rune(strings.ToLower(s))
	if len(runes) > 0 {
		runes[0] = unicode.ToUpper(runes[0])
	}
	return string(runes)
}
