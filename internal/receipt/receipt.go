package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Source types recorded against each receipt. Home sessions are
// aggregated separately from everything else.
const (
	SourceEmail = "email"
	SourcePDF   = "pdf"
	SourceHome  = "home"
)

// Receipt represents one normalized charging session
type Receipt struct {
	ID            uint64    `json:"id"`
	Provider      string    `json:"provider"`
	Timestamp     time.Time `json:"timestamp"`
	Location      string    `json:"location"`
	Cost          float64   `json:"cost"`
	Currency      string    `json:"currency"`
	EnergyKWh     float64   `json:"energy_kwh,omitempty"` // 0 means unknown
	Duration      string    `json:"duration,omitempty"`
	SourceExcerpt string    `json:"source_excerpt,omitempty"`
	OriginSubject string    `json:"origin_subject,omitempty"`
	SourceType    string    `json:"source_type"`
	Hash          string    `json:"hash"`
	CreatedAt     time.Time `json:"created_at"`
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// canonical lowercases, trims, and collapses whitespace runs so that
// cosmetic differences between documents do not change the hash.
func canonical(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(strings.ToLower(s)), " ")
}

// GenerateHash returns the canonical fingerprint of the receipt for the
// given source type: a SHA-256 over the defining fields, truncated to 16
// hex characters. Two receipts with the same hash are the same
// real-world session no matter which document produced them. The
// timestamp is truncated to the minute and energy participates only
// when known.
func (r *Receipt) GenerateHash(sourceType string) string {
	components := []string{
		canonical(r.Provider),
		r.Timestamp.Format("2006-01-02 15:04"),
		canonical(r.Location),
		fmt.Sprintf("%.2f", r.Cost),
		strings.ToUpper(r.Currency),
		sourceType,
	}
	if r.EnergyKWh > 0 {
		components = append(components, fmt.Sprintf("%.2f", r.EnergyKWh))
	}

	sum := sha256.Sum256([]byte(strings.Join(components, "|")))
	return hex.EncodeToString(sum[:])[:16]
}

// IsValid reports whether the receipt is worth persisting: a known
// provider, a cost above the configured floor, a non-empty location,
// and a real timestamp.
func (r *Receipt) IsValid(minimumCost float64) bool {
	return r.Provider != "" && r.Provider != "Unknown" &&
		r.Cost > minimumCost &&
		strings.TrimSpace(r.Location) != "" &&
		!r.Timestamp.IsZero()
}

// String returns a short human-readable summary for logging
func (r *Receipt) String() string {
	return fmt.Sprintf("%s: $%.2f at %s on %s",
		r.Provider, r.Cost, r.Location, r.Timestamp.Format("2006-01-02"))
}

// ContentHash fingerprints raw document bytes. It keys the
// processed-document ledgers.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
