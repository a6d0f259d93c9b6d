package providers

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ghodgson/ev-charge-ledger/internal/extract"
	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// maxExcerptLen bounds the stored source excerpt.
const maxExcerptLen = 2000

// fieldSet carries a parser's pattern tiers. The *Fn overrides replace
// the default cascade when a provider needs its own acceptance rules.
type fieldSet struct {
	cost       []*regexp.Regexp
	costFn     func(string) (float64, bool)
	energy     []*regexp.Regexp
	energyFn   func(string) (float64, bool)
	location   []*regexp.Regexp
	duration   []*regexp.Regexp
	durationFn func(string) (string, bool)
	dates      []extract.DateCandidate
}

// buildReceipt assembles a receipt from a normalized document. The
// cost is the admission ticket: without one there is no receipt. Every
// other field degrades to a fallback so a thin email still produces a
// row the validity gate can judge.
func buildReceipt(doc *normalize.Document, provider, currency string, fields fieldSet) *receipt.Receipt {
	text := doc.Text
	if strings.TrimSpace(text) == "" {
		return nil
	}

	costFn := fields.costFn
	if costFn == nil {
		costFn = func(t string) (float64, bool) { return extract.CostFrom(t, fields.cost) }
	}
	cost, ok := costFn(text)
	if !ok || cost <= 0 {
		slog.Debug("No valid cost found", "provider", provider)
		return nil
	}

	timestamp, ok := extract.DateFrom(text, fields.dates)
	if !ok {
		timestamp = time.Now()
	}

	location, ok := extract.LocationFrom(text, fields.location)
	if !ok {
		location = "Unknown"
	}

	energy, _ := extractEnergy(text, fields)
	duration := ""
	if fields.durationFn != nil {
		duration, _ = fields.durationFn(text)
	} else {
		duration, _ = extract.DurationFrom(text, fields.duration)
	}

	excerpt := text
	if len(excerpt) > maxExcerptLen {
		excerpt = excerpt[:maxExcerptLen]
	}

	return &receipt.Receipt{
		Provider:      provider,
		Timestamp:     timestamp,
		Location:      location,
		Cost:          cost,
		Currency:      currency,
		EnergyKWh:     energy,
		Duration:      duration,
		SourceExcerpt: excerpt,
		OriginSubject: doc.Subject,
		SourceType:    receipt.SourceEmail,
	}
}

func extractEnergy(text string, fields fieldSet) (float64, bool) {
	if fields.energyFn != nil {
		return fields.energyFn(text)
	}
	return extract.EnergyFrom(text, fields.energy)
}

func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

func compilePatterns(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(`(?i)` + p)
	}
	return compiled
}
