// Package maintenance holds explicitly invoked repair operations. They
// never run as part of a normal extraction pass.
package maintenance

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ghodgson/ev-charge-ledger/internal/extract"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// Store is the slice of the receipt store the date fixer needs.
type Store interface {
	AllReceipts() []*receipt.Receipt
	UpdateTimestamp(hash string, timestamp time.Time) error
}

// FixResult summarizes one correction pass.
type FixResult struct {
	Examined  int      `json:"examined"`
	Corrected int      `json:"corrected"`
	Errors    []string `json:"errors,omitempty"`
}

// CorrectDefaultedDates finds receipts whose session date defaulted to
// the ingestion date (the date-extraction fallback) and re-resolves the
// real date from the stored source excerpt. Rows where no better date
// can be found are left alone.
func CorrectDefaultedDates(store Store) *FixResult {
	result := &FixResult{}

	for _, r := range store.AllReceipts() {
		if !looksDefaulted(r) {
			continue
		}
		result.Examined++

		resolved, ok := extract.Date(r.SourceExcerpt)
		if !ok || sameDay(resolved, r.Timestamp) {
			continue
		}

		if err := store.UpdateTimestamp(r.Hash, resolved); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.Hash, err))
			continue
		}
		slog.Info("Corrected defaulted session date",
			"provider", r.Provider,
			"old", r.Timestamp.Format("2006-01-02"),
			"new", resolved.Format("2006-01-02"))
		result.Corrected++
	}
	return result
}

var nowFunc = time.Now

// looksDefaulted flags rows whose session date equals both the row's
// creation date and today: the signature of the fallback-to-now path
// rather than an extracted date. Rows from earlier days are left
// alone even when their session and creation dates coincide, so a
// later pass cannot rewrite a genuinely same-day session.
func looksDefaulted(r *receipt.Receipt) bool {
	return sameDay(r.Timestamp, r.CreatedAt) && sameDay(r.Timestamp, nowFunc())
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
