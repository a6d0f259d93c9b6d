package providers

import (
	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// Registry dispatches documents to parsers in a fixed order. The
// first parser that claims a sender/subject wins, so more specific
// claims sit ahead of broader ones.
type Registry struct {
	parsers []Parser
	tesla   *TeslaParser
}

func NewRegistry(currency string, pdf normalize.PDFExtractor) *Registry {
	tesla := NewTeslaParser(currency, pdf)
	return &Registry{
		parsers: []Parser{
			NewBPPulseParser(currency),
			NewEVIEParser(currency),
			NewChargefoxParser(currency),
			NewAmpolParser(currency),
			tesla,
		},
		tesla: tesla,
	}
}

// FindParser returns the first parser claiming the email.
func (r *Registry) FindParser(sender, subject string) (Parser, bool) {
	for _, parser := range r.parsers {
		if parser.CanHandle(sender, subject) {
			return parser, true
		}
	}
	return nil, false
}

// Parsers returns the dispatch order.
func (r *Registry) Parsers() []Parser {
	return r.parsers
}

// ExtractPDF parses a standalone PDF file through the Tesla parser,
// the only provider that issues PDF invoices.
func (r *Registry) ExtractPDF(name string, data []byte) []*receipt.Receipt {
	return r.tesla.ExtractPDF(name, data)
}
