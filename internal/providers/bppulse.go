package providers

import (
	"strings"

	"github.com/ghodgson/ev-charge-ledger/internal/extract"
	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// BPPulseParser handles BP Pulse receipts, which arrive as
// markdown-flavoured text with bold AUD amounts.
type BPPulseParser struct {
	currency string
}

func NewBPPulseParser(currency string) *BPPulseParser {
	return &BPPulseParser{currency: currency}
}

func (p *BPPulseParser) Provider() string { return "BP Pulse" }

var bpSubjectKeywords = []string{"charging", "receipt", "session", "invoice"}

// CanHandle requires both a bp sender token and a charging-related
// subject: the bare "bp" token is too generic to stand alone.
func (p *BPPulseParser) CanHandle(sender, subject string) bool {
	senderLower := strings.ToLower(sender)
	if !strings.Contains(senderLower, "bppulse.com.au") && !strings.Contains(senderLower, "bp") {
		return false
	}
	return containsAny(strings.ToLower(subject), bpSubjectKeywords)
}

var bpCostPatterns = compilePatterns([]string{
	`\*\*Total\s+Cost\*\*[^\d]*\*\*([0-9]+\.[0-9]{2})\s+AUD\*\*`,
	`\*\*Total\s+Sales\s+Amount\*\*[^\d]*\*\*([0-9]+\.[0-9]{2})\s+AUD\*\*`,
	`Total\s+Cost[:\s]*\*\*([0-9]+\.[0-9]{2})\s+AUD\*\*`,
	`Total\s+Sales\s+Amount[:\s]*\*\*([0-9]+\.[0-9]{2})\s+AUD\*\*`,
	`Sale\s+Amount[:\s]*([0-9]+\.[0-9]{2})\s+AUD`,
	`Energy\s+Cost[:\s]*([0-9]+\.[0-9]{2})\s+AUD`,
})

var bpLocationPatterns = compilePatterns([]string{
	`Location\s+bp\s+pulse\s+([A-Za-z\s]+)\s+([^\n\r]+Drive[^\n\r,]*,\s*[A-Za-z\s]+,?\s*\d{4})`,
	`bp\s+pulse\s+([A-Za-z\s]+)[^\n\r]*([A-Za-z\s]+Drive[^\n\r,]*,\s*[A-Za-z\s]+,?\s*\d{4})`,
	`Location[:\s]*([^\n\r]+bp\s+pulse[^\n\r]+)`,
})

var bpEnergyPatterns = compilePatterns([]string{
	`Total\s+Energy[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Energy\s+Distributed[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
})

var bpDurationPatterns = compilePatterns([]string{
	`Charging\s+Time[:\s]*(\d+)m`,
	`(\d+)m(?:\s*\d+s)?`,
})

func (p *BPPulseParser) Extract(doc *normalize.Document) []*receipt.Receipt {
	r := buildReceipt(doc, p.Provider(), p.currency, fieldSet{
		cost:     bpCostPatterns,
		energy:   bpEnergyPatterns,
		location: bpLocationPatterns,
		durationFn: func(text string) (string, bool) {
			for _, re := range bpDurationPatterns {
				if match := re.FindStringSubmatch(text); match != nil {
					return strings.TrimSpace(match[1]), true
				}
			}
			return extract.Duration(text)
		},
	})
	if r == nil {
		return nil
	}
	return []*receipt.Receipt{r}
}
