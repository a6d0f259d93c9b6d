package providers

import (
	"regexp"
	"strings"

	"github.com/ghodgson/ev-charge-ledger/internal/extract"
	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// ChargefoxParser handles Chargefox receipts. Their summary line
// carries location and an ISO date in one sentence, which must never
// be reinterpreted day-first.
type ChargefoxParser struct {
	currency string
}

func NewChargefoxParser(currency string) *ChargefoxParser {
	return &ChargefoxParser{currency: currency}
}

func (p *ChargefoxParser) Provider() string { return "Chargefox" }

var chargefoxSubjectKeywords = []string{
	"charging receipt",
	"payment receipt",
	"charging session",
	"ev charging",
	"charge complete",
	"invoice",
	"receipt",
}

func (p *ChargefoxParser) CanHandle(sender, subject string) bool {
	return strings.Contains(strings.ToLower(sender), "chargefox.com") &&
		containsAny(strings.ToLower(subject), chargefoxSubjectKeywords)
}

var chargefoxCostPatterns = compilePatterns([]string{
	`Total\s+Amount\s+including\s+GST[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Payments[:\s]*Amount[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Total\s+Amount[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Amount\s+Charged[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Session\s+Cost[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Charging\s+Cost[:\s]*\$([0-9]+\.[0-9]{2})`,
	`You\s+paid[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Payment[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Total[:\s]*\$([0-9]+\.[0-9]{2})\s+AUD`,
	`AUD\s*\$([0-9]+\.[0-9]{2})`,
	`GST\s+Inclusive[:\s]*\$([0-9]+\.[0-9]{2})`,
	`EV\s+charging[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Charging\s+fee[:\s]*\$([0-9]+\.[0-9]{2})`,
})

var chargefoxLocationPatterns = compilePatterns([]string{
	`EV\s+charging\s+at\s+([^,\n\r]+,\s*[A-Z]{2,3},?\s*\d{4})\s+on`,
	`charging\s+at\s+([^\n\r]+)\s+on\s+\d{4}`,
	`Station[:\s]*([^\n\r]+)`,
	`Location[:\s]*([^\n\r]+)`,
	`Charging\s+station[:\s]*([^\n\r]+)`,
	`Address[:\s]*([^\n\r]+)`,
	`Site[:\s]*([^\n\r]+)`,
	`([A-Za-z\s]+(?:Shopping Centre|Center|Mall|Plaza))[^\n\r]*([A-Za-z\s]+,\s*[A-Z]{2,3}\s*\d{4})`,
	`([A-Za-z\s]+(?:Service Centre|Station))[^\n\r]*([A-Za-z\s]+,\s*[A-Z]{2,3}\s*\d{4})`,
	`(\d+\s+[A-Za-z\s]+(?:Street|St|Road|Rd|Avenue|Ave|Drive|Dr|Highway|Hwy|Lane|Ln)[^\n\r,]*,\s*[A-Za-z\s]+,\s*[A-Z]{2,3}\s*\d{4})`,
	`([A-Za-z\s]+,\s*[A-Z]{2,3}\s*\d{4})`,
})

var chargefoxEnergyPatterns = compilePatterns([]string{
	`Charging\s+for\s+\d+mins?,\s+([0-9]+\.[0-9]+)kWh`,
	`([0-9]+\.[0-9]+)kWh\s+@\s+\$[0-9]+\.[0-9]+/kWh`,
	`Energy\s+delivered[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Total\s+energy[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`kWh\s+consumed[:\s]*([0-9]+\.[0-9]+)`,
})

var chargefoxDurationPatterns = compilePatterns([]string{
	`Charging\s+for\s+(\d+mins?)`,
	`Session\s+duration[:\s]*(\d+:\d+(?::\d+)?)`,
	`Duration[:\s]*(\d+:\d+(?::\d+)?)`,
	`(\d+)\s*minutes?\s+charging`,
	`Charged\s+for[:\s]*(\d+)\s*minutes?`,
})

var chargefoxDateCandidates = []extract.DateCandidate{
	{Pattern: regexp.MustCompile(`(?i)EV\s+charging\s+at[^\n]*on\s+(\d{4}-\d{2}-\d{2})`),
		Layouts: []string{"2006-01-02"}},
	{Pattern: regexp.MustCompile(`(?i)Date[:\s]*(\d{1,2}\s+[A-Za-z]{3,9},\s+\d{4})`),
		Layouts: []string{"2 January, 2006", "2 Jan, 2006"}},
	{Pattern: regexp.MustCompile(`(?i)Charged\s+on[:\s]*([A-Za-z]{3,9}\s+\d{1,2},\s+\d{4})`),
		Layouts: []string{"January 2, 2006", "Jan 2, 2006"}},
	{Pattern: regexp.MustCompile(`(?i)Session\s+date[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{4})`),
		DayFirst: true},
	{Pattern: regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{4})\s+at\s+(\d{1,2}:\d{2})`),
		DayFirst: true},
}

func (p *ChargefoxParser) Extract(doc *normalize.Document) []*receipt.Receipt {
	r := buildReceipt(doc, p.Provider(), p.currency, fieldSet{
		cost:     chargefoxCostPatterns,
		energy:   chargefoxEnergyPatterns,
		location: chargefoxLocationPatterns,
		duration: chargefoxDurationPatterns,
		dates:    chargefoxDateCandidates,
	})
	if r == nil {
		return nil
	}
	return []*receipt.Receipt{r}
}
