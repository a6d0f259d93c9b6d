package providers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ghodgson/ev-charge-ledger/internal/extract"
	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// EVIEParser handles EVIE Networks receipts. EVIE emails are
// HTML-heavy and full of dollar rates, so its own cost tier only
// accepts session-sized amounts.
type EVIEParser struct {
	currency string
}

func NewEVIEParser(currency string) *EVIEParser {
	return &EVIEParser{currency: currency}
}

func (p *EVIEParser) Provider() string { return "EVIE Networks" }

var evieSenderTokens = []string{
	"goevie.com.au",
	"evie.com.au",
	"noreply@evie.com.au",
	"no-reply@goevie.com.au",
	"receipts@goevie.com.au",
}

var evieSubjectKeywords = []string{
	"evie networks receipt",
	"receipt",
	"invoice",
	"charging session",
	"tax invoice",
	"payment confirmation",
}

func (p *EVIEParser) CanHandle(sender, subject string) bool {
	return containsAny(strings.ToLower(sender), evieSenderTokens) &&
		containsAny(strings.ToLower(subject), evieSubjectKeywords)
}

var evieCostPatterns = compilePatterns([]string{
	`Total\s+Amount[:\s]*\$?([0-9]+\.[0-9]{2})`,
	`Amount\s+Due[:\s]*\$?([0-9]+\.[0-9]{2})`,
	`Final\s+Amount[:\s]*\$?([0-9]+\.[0-9]{2})`,
	`Total[:\s]*\$?([0-9]+\.[0-9]{2})`,
	`\$([0-9]+\.[0-9]{2})\s+AUD`,
	`([0-9]+\.[0-9]{2})\s*AUD`,
	`AUD\s*\$?([0-9]+\.[0-9]{2})`,
	`Payment\s+of\s+\$?([0-9]+\.[0-9]{2})`,
	`Charged\s+\$?([0-9]+\.[0-9]{2})`,
	`You\s+paid\s+\$?([0-9]+\.[0-9]{2})`,
	`Invoice\s+Total[:\s]*\$?([0-9]+\.[0-9]{2})`,
	`Session\s+Cost[:\s]*\$?([0-9]+\.[0-9]{2})`,
	`Charging\s+Cost[:\s]*\$?([0-9]+\.[0-9]{2})`,
	`Energy\s+Cost[:\s]*\$?([0-9]+\.[0-9]{2})`,
})

// evieCostRange: anything under a dollar is a rate, anything over 500
// is not a charging session.
const (
	evieMinCost = 1.0
	evieMaxCost = 500.0
)

func evieCost(text string) (float64, bool) {
	for _, re := range evieCostPatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			value, err := strconv.ParseFloat(match[1], 64)
			if err == nil && value >= evieMinCost && value <= evieMaxCost {
				return value, true
			}
		}
	}
	return extract.Cost(text)
}

var evieLocationPatterns = compilePatterns([]string{
	`([A-Za-z\s]+Service\s+Centre)[^<\n]*([0-9-]+\s+[A-Za-z\s]+(?:Drive|Road|Street|Ave|Avenue|Highway|Hwy)[^<\n,]*,\s*[A-Z]{2,3}\s*[0-9]{4})`,
	`Location[:\s]*([^<\n]+Service\s+Centre[^<\n]*[0-9]+[^<\n]*,\s*[A-Z]{2,3}\s*[0-9]{4})`,
	`Station[:\s]*([^<\n]+)`,
	`Location[:\s]*([^<\n\r]+)`,
	`Site[:\s]*([^<\n\r]+)`,
	`Address[:\s]*([^<\n\r]+)`,
	`([0-9-]+\s+[A-Za-z\s]+(?:Street|St|Road|Rd|Avenue|Ave|Drive|Dr|Highway|Hwy|Lane|Ln)[^<\n,]*,\s*[A-Za-z\s]+,\s*[A-Z]{2,3}\s*[0-9]{4})`,
	`([A-Za-z\s]+,\s*[A-Z]{2,3}\s*[0-9]{4})`,
	`([A-Za-z\s]+Service\s+Centre)`,
})

var evieEnergyPatterns = compilePatterns([]string{
	`Total\s+Energy[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Energy\s+Consumed[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Energy\s+Delivered[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`kWh\s+Delivered[:\s]*([0-9]+\.[0-9]+)`,
	`Session\s+Energy[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`([0-9]+\.[0-9]+)\s*kWh\s*(?:delivered|consumed|charged)`,
	`([0-9]+\.[0-9]+)\s*kWh\s*@\s*\$[0-9]+\.[0-9]+`,
	`([0-9]+\.[0-9]{3,4})\s*kWh`,
})

var evieDurationPatterns = compilePatterns([]string{
	`Charging\s+Time[:\s]*(\d+)m(?:in(?:ute)?s?)?`,
	`Session\s+Duration[:\s]*(\d+:\d+(?::\d+)?)`,
	`Duration[:\s]*(\d+\s+minutes?)`,
	`Total\s+Time[:\s]*(\d+:\d+(?::\d+)?)`,
	`(\d{2}:\d{2}:\d{2})`,
})

var evieDateCandidates = []extract.DateCandidate{
	{Pattern: regexp.MustCompile(`(?i)([A-Za-z]{3,9}\s+\d{1,2},\s+\d{4})\s+at\s+(\d{1,2}:\d{2}:\d{2}\s*[AP]M(?:\s*[A-Z]{3,4})?)`),
		Layouts: []string{"January 2, 2006 3:04:05 PM", "Jan 2, 2006 3:04:05 PM"}},
	{Pattern: regexp.MustCompile(`(?i)Session\s+Date[:\s]*([A-Za-z]{3,9}\s+\d{1,2},\s+\d{4})`),
		Layouts: []string{"January 2, 2006", "Jan 2, 2006"}},
	{Pattern: regexp.MustCompile(`(?i)(?:Receipt|Invoice|Charging)\s+Date[:\s]*([A-Za-z]{3,9}\s+\d{1,2},\s+\d{4})`),
		Layouts: []string{"January 2, 2006", "Jan 2, 2006"}},
	{Pattern: regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]\d{4})\s+at\s+(\d{1,2}:\d{2})`),
		DayFirst: true},
}

func (p *EVIEParser) Extract(doc *normalize.Document) []*receipt.Receipt {
	r := buildReceipt(doc, p.Provider(), p.currency, fieldSet{
		costFn:   evieCost,
		energy:   evieEnergyPatterns,
		location: evieLocationPatterns,
		duration: evieDurationPatterns,
		dates:    evieDateCandidates,
	})
	if r == nil {
		return nil
	}
	return []*receipt.Receipt{r}
}
