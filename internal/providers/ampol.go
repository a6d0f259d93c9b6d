package providers

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ghodgson/ev-charge-ledger/internal/extract"
	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// AmpolParser handles AmpCharge tax invoices. Ampol lays its receipts
// out as a table where the label and value land on lines several rows
// apart, so the labeled patterns are backed by a systematic search
// below each label.
type AmpolParser struct {
	currency string
}

func NewAmpolParser(currency string) *AmpolParser {
	return &AmpolParser{currency: currency}
}

func (p *AmpolParser) Provider() string { return "Ampol" }

var ampolSenderTokens = []string{
	"ampcharge.com.au",
	"ampol.com.au",
}

var ampolSubjectKeywords = []string{
	"tax invoice",
	"charging receipt",
	"ev charging",
	"ampcharge",
	"invoice",
	"receipt",
}

func (p *AmpolParser) CanHandle(sender, subject string) bool {
	senderLower := strings.ToLower(sender)
	if containsAny(senderLower, ampolSenderTokens) {
		return true
	}
	hasToken := strings.Contains(senderLower, "ampcharge") || strings.Contains(senderLower, "ampol")
	return hasToken && containsAny(strings.ToLower(subject), ampolSubjectKeywords)
}

var ampolCostPatterns = compilePatterns([]string{
	`\*\*\$([0-9]+\.[0-9]{2})\*\*\s+for\s+EV\s+charging`,
	`\*\*Total\s+Cost\*\*[^\d]*\*\*\$([0-9]+\.[0-9]{2})\*\*`,
	`Total\s+Cost[:\s]*\*\*\$([0-9]+\.[0-9]{2})\*\*`,
	`Total[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Amount[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Cost[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Charged[:\s]*\$([0-9]+\.[0-9]{2})`,
	`Tax\s+Invoice[^\$]*\$([0-9]+\.[0-9]{2})`,
	`Invoice\s+Total[:\s]*\$([0-9]+\.[0-9]{2})`,
	`\$([0-9]+\.[0-9]{2})\s+for\s+EV`,
	`EV\s+charging[:\s]*\$([0-9]+\.[0-9]{2})`,
})

// ampolMinCost filters out the GST line, which matches the same dollar
// patterns as the total but is always a few dollars.
const ampolMinCost = 5.0

func ampolCost(text string) (float64, bool) {
	for _, re := range ampolCostPatterns {
		for _, match := range re.FindAllStringSubmatch(text, -1) {
			value, err := strconv.ParseFloat(match[1], 64)
			if err == nil && value > ampolMinCost {
				return value, true
			}
		}
	}
	return extract.Cost(text)
}

var ampolLocationPatterns = compilePatterns([]string{
	`Ampol\s+Foodary\s+([A-Za-z\s]+)\s*-\s*[a-z0-9\-]+`,
	`(Ampol\s+Foodary\s+[A-Za-z\s]+)`,
	`([A-Za-z\s]+Road\s+\d+,\s+[A-Za-z\s]+\s+\d{4})`,
	`(\d+\s+[A-Za-z\s]+Road,\s+[A-Za-z\s]+\s+\d{4})`,
	`Station[:\s]*([^\n\r]+)`,
	`Location[:\s]*([^\n\r]+)`,
	`Site[:\s]*([^\n\r]+)`,
	`(\d+\s+[A-Za-z\s]+(?:Street|St|Road|Rd|Avenue|Ave|Drive|Dr)[^\n\r,]*,\s*[A-Za-z\s]+\s*\d{4})`,
	`([A-Za-z\s]+,\s*[A-Z]{2,3}\s*\d{4})`,
})

var ampolEnergyPatterns = compilePatterns([]string{
	`Energy\s+Delivered[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Total\s+Energy[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`kWh\s+Delivered[:\s]*([0-9]+\.[0-9]+)`,
	`Delivered[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`Session\s+Energy[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
})

var (
	ampolEnergyLabelRE = regexp.MustCompile(`(?i)Energy\s+Delivered`)
	kwhValueRE         = regexp.MustCompile(`(?i)([0-9]+\.[0-9]+)\s*kWh`)
)

func ampolEnergy(text string) (float64, bool) {
	for _, re := range ampolEnergyPatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			value, err := strconv.ParseFloat(match[1], 64)
			if err == nil && value > 0.1 && value < 200 {
				return value, true
			}
		}
	}

	// Tabular layout: the value sits a few lines below the label.
	if label := ampolEnergyLabelRE.FindStringIndex(text); label != nil {
		remaining := text[label[1]:]
		for _, match := range kwhValueRE.FindAllStringSubmatchIndex(remaining, -1) {
			value, err := strconv.ParseFloat(remaining[match[2]:match[3]], 64)
			if err != nil || value <= 0.1 || value >= 200 {
				continue
			}
			if strings.Count(remaining[:match[0]], "\n") >= 2 {
				return value, true
			}
		}
	}
	return extract.Energy(text)
}

var ampolDurationPatterns = compilePatterns([]string{
	`(?:Charge\s+|Session\s+|Charging\s+)?Duration[:\s]*(\d{2}:\d{2}:\d{2})`,
	`Total\s+Time[:\s]*(\d{2}:\d{2}:\d{2})`,
	`Time[:\s]*(\d{2}:\d{2}:\d{2})`,
	`Duration[:\s]*(\d+)\s*minutes?`,
	`Charging\s+Time[:\s]*(\d+)\s*minutes?`,
})

var (
	ampolDurationLabelRE = regexp.MustCompile(`(?i)Duration`)
	clockValueRE         = regexp.MustCompile(`\d{2}:\d{2}:\d{2}`)
	timestampContextRE   = regexp.MustCompile(`(?i)\d{1,2}/\d{1,2}/\d{4}|[AP]M`)
)

func ampolDuration(text string) (string, bool) {
	for _, re := range ampolDurationPatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			return strings.TrimSpace(match[1]), true
		}
	}

	// Tabular layout fallback, skipping clock values that belong to a
	// start/end timestamp.
	if label := ampolDurationLabelRE.FindStringIndex(text); label != nil {
		remaining := text[label[1]:]
		for _, match := range clockValueRE.FindAllStringIndex(remaining, -1) {
			before := remaining[:match[0]]
			contextEnd := match[1] + 20
			if contextEnd > len(remaining) {
				contextEnd = len(remaining)
			}
			if timestampContextRE.MatchString(before + remaining[match[0]:contextEnd]) {
				continue
			}
			if strings.Count(before, "\n") >= 2 {
				return remaining[match[0]:match[1]], true
			}
		}
	}
	return extract.Duration(text)
}

var ampolDateCandidates = []extract.DateCandidate{
	{Pattern: regexp.MustCompile(`(?i)Start\s+Time[:\s]*(\d{1,2}/\d{1,2}/\d{4})\s+(\d{1,2}:\d{2}:\d{2}\s*[AP]M)`),
		DayFirst: true},
	{Pattern: regexp.MustCompile(`(?i)(?:Session\s+|Invoice\s+)?Date[:\s]*(\d{1,2}/\d{1,2}/\d{4})`),
		DayFirst: true},
	{Pattern: regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})\s+(\d{1,2}:\d{2})`),
		DayFirst: true},
	{Pattern: regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`),
		DayFirst: true},
}

func (p *AmpolParser) Extract(doc *normalize.Document) []*receipt.Receipt {
	r := buildReceipt(doc, p.Provider(), p.currency, fieldSet{
		costFn:     ampolCost,
		energyFn:   ampolEnergy,
		location:   ampolLocationPatterns,
		durationFn: ampolDuration,
		dates:      ampolDateCandidates,
	})
	if r == nil {
		return nil
	}
	return []*receipt.Receipt{r}
}
