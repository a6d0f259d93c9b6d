// Package providers implements the per-network receipt parsers and the
// ordered registry that dispatches normalized documents to them. Each
// parser claims an email from its sender and subject, then extracts
// receipt fields with provider-specific patterns layered over the
// generic cascades.
package providers

import (
	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// Parser handles one charging network's emails.
type Parser interface {
	// Provider returns the canonical provider name.
	Provider() string
	// CanHandle reports whether this parser claims the email. Claims
	// are conservative: an unclaimed email is recorded and skipped,
	// a wrongly claimed one produces garbage rows.
	CanHandle(sender, subject string) bool
	// Extract parses the document into zero or more receipts.
	Extract(doc *normalize.Document) []*receipt.Receipt
}
