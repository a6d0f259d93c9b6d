package providers

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// TeslaParser handles Tesla Supercharging invoices. Tesla receipts
// live in PDF attachments rather than the email body, one invoice per
// PDF, so extraction runs per attachment and the resulting rows carry
// the pdf source type.
type TeslaParser struct {
	currency string
	pdf      normalize.PDFExtractor
}

func NewTeslaParser(currency string, pdf normalize.PDFExtractor) *TeslaParser {
	return &TeslaParser{currency: currency, pdf: pdf}
}

func (p *TeslaParser) Provider() string { return "Tesla" }

func (p *TeslaParser) CanHandle(sender, subject string) bool {
	senderLower := strings.ToLower(sender)
	subjectLower := strings.ToLower(subject)
	if strings.Contains(senderLower, "tesla.com") && strings.Contains(subjectLower, "supercharg") {
		return true
	}
	// Forwarded Tesla receipts keep the attachments but lose the
	// original sender.
	return strings.Contains(subjectLower, "tesla charging")
}

// Extract pulls every PDF attachment out of the email and parses each
// one as a standalone invoice.
func (p *TeslaParser) Extract(doc *normalize.Document) []*receipt.Receipt {
	if p.pdf == nil {
		slog.Warn("No PDF extractor configured, skipping Tesla attachments")
		return nil
	}
	attachments, err := normalize.PDFAttachments(doc.RawEmail)
	if err != nil {
		slog.Warn("Error extracting Tesla attachments", "error", err)
		return nil
	}
	if len(attachments) == 0 {
		slog.Warn("No PDF attachments found in Tesla email", "subject", doc.Subject)
		return nil
	}

	var receipts []*receipt.Receipt
	for _, attachment := range attachments {
		r := p.parsePDF(attachment.Name, attachment.Data,
			fmt.Sprintf("From: %s, Subject: %s, PDF: %s", doc.Sender, doc.Subject, attachment.Name))
		if r != nil {
			receipts = append(receipts, r)
		}
	}
	slog.Info("Processed Tesla email", "attachments", len(attachments), "receipts", len(receipts))
	return receipts
}

// ExtractPDF parses a standalone PDF file that was dropped in the
// watch directory rather than attached to an email.
func (p *TeslaParser) ExtractPDF(name string, data []byte) []*receipt.Receipt {
	if p.pdf == nil {
		return nil
	}
	r := p.parsePDF(name, data, "PDF: "+name)
	if r == nil {
		return nil
	}
	return []*receipt.Receipt{r}
}

// maxPDFExcerptLen leaves room for the origin line ahead of the text.
const maxPDFExcerptLen = 1800

func (p *TeslaParser) parsePDF(name string, data []byte, origin string) *receipt.Receipt {
	pages, err := p.pdf.ExtractPages(data)
	if err != nil {
		slog.Warn("Error extracting Tesla PDF", "name", name, "error", err)
		return nil
	}
	text := strings.TrimSpace(strings.Join(pages, "\n"))
	if text == "" {
		slog.Warn("Empty Tesla PDF", "name", name)
		return nil
	}

	timestamp, ok := teslaDate(text)
	if !ok {
		slog.Warn("No date found in Tesla PDF", "name", name)
		return nil
	}
	location, ok := teslaLocation(text)
	if !ok {
		slog.Warn("No location found in Tesla PDF", "name", name)
		return nil
	}
	cost, ok := teslaCost(text)
	if !ok {
		slog.Warn("No cost found in Tesla PDF", "name", name)
		return nil
	}
	energy, _ := teslaEnergy(text)

	subject := "Tesla Supercharging Receipt - " + teslaInvoiceNumber(text)
	if unitPrice, ok := teslaUnitPrice(text); ok {
		subject += fmt.Sprintf(" @$%.3f/kWh", unitPrice)
	}

	excerpt := text
	if len(excerpt) > maxPDFExcerptLen {
		excerpt = excerpt[:maxPDFExcerptLen]
	}

	return &receipt.Receipt{
		Provider:      p.Provider(),
		Timestamp:     timestamp,
		Location:      location,
		Cost:          cost,
		Currency:      p.currency,
		EnergyKWh:     energy,
		SourceExcerpt: origin + "\n\n" + excerpt,
		OriginSubject: subject,
		SourceType:    receipt.SourcePDF,
	}
}

var teslaInvoicePatterns = compilePatterns([]string{
	`Invoice\s+Number\s+([A-Z0-9]+)`,
	`Invoice\s+Number:\s*([A-Z0-9]+)`,
	`Invoice\s*#\s*([A-Z0-9]+)`,
	`Receipt\s+#\s*([A-Z0-9]+)`,
	`Transaction\s+ID[:\s]*([A-Z0-9]+)`,
})

func teslaInvoiceNumber(text string) string {
	for _, re := range teslaInvoicePatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			return strings.TrimSpace(match[1])
		}
	}
	return "Unknown"
}

var teslaDatePatterns = []struct {
	re      *regexp.Regexp
	layouts []string
}{
	{regexp.MustCompile(`(?i)Invoice\s+date\s+(\d{4}/\d{1,2}/\d{1,2})`), []string{"2006/1/2"}},
	{regexp.MustCompile(`(?i)Date\s+of\s+Event[^\n]*(\d{4}/\d{1,2}/\d{1,2})`), []string{"2006/1/2"}},
	{regexp.MustCompile(`(?i)(?:Session|Charging)\s+Date[:\s]*(\d{4}/\d{1,2}/\d{1,2})`), []string{"2006/1/2"}},
	{regexp.MustCompile(`(\d{4}/\d{1,2}/\d{1,2})`), []string{"2006/1/2"}},
	{regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`), []string{"1/2/2006", "2/1/2006"}},
}

func teslaDate(text string) (time.Time, bool) {
	for _, candidate := range teslaDatePatterns {
		for _, match := range candidate.re.FindAllStringSubmatch(text, -1) {
			for _, layout := range candidate.layouts {
				if parsed, err := time.Parse(layout, match[1]); err == nil {
					return parsed, true
				}
			}
		}
	}
	return time.Time{}, false
}

var teslaLocationPatterns = compilePatterns([]string{
	`Charging\s+Location\s*\n\s*([^\n]+)\s*\n\s*([^\n]+)\s*\n\s*([^\n]+)`,
	`Supercharger\s+Location[:\s]*([^\n]+)`,
	`Location[:\s]*([^\n]+)`,
	`Site[:\s]*([^\n]+)`,
	`Station[:\s]*([^\n]+)`,
	`(\d+\s+[A-Za-z\s]+(?:Street|St|Road|Rd|Avenue|Ave|Drive|Dr|Highway|Hwy|Lane|Ln)[^\n\r,]*,\s*[A-Za-z\s]+,\s*[A-Z]{2,3}\s*\d{4})`,
	`([A-Za-z\s]+,\s*[A-Z]{2,3}\s*\d{4})`,
})

func teslaLocation(text string) (string, bool) {
	for _, re := range teslaLocationPatterns {
		match := re.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		parts := make([]string, 0, len(match)-1)
		for _, group := range match[1:] {
			if group = strings.TrimSpace(group); group != "" {
				parts = append(parts, group)
			}
		}
		location := strings.Join(parts, ", ")
		location = whitespaceRE.ReplaceAllString(location, " ")
		if len(location) > 200 {
			location = location[:200]
		}
		if len(location) > 5 {
			return location, true
		}
	}
	return "", false
}

var whitespaceRE = regexp.MustCompile(`\s+`)

var teslaCostPatterns = compilePatterns([]string{
	`Total\s+Amount\s+\(AUD\)\s+([0-9]+\.[0-9]{2})`,
	`Total\s+Amount[:\s]*\$?([0-9]+\.[0-9]{2})`,
	`Total[:\s]*\$?([0-9]+\.[0-9]{2})\s*AUD`,
	`Total[:\s]*([0-9]+\.[0-9]{2})`,
	`Amount\s+Due[:\s]*\$?([0-9]+\.[0-9]{2})`,
	`Supercharging[:\s]*\$?([0-9]+\.[0-9]{2})`,
})

func teslaCost(text string) (float64, bool) {
	for _, re := range teslaCostPatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			value, err := strconv.ParseFloat(match[1], 64)
			if err == nil && value > 0 {
				return value, true
			}
		}
	}
	return 0, false
}

var teslaEnergyPatterns = compilePatterns([]string{
	`Energy\s+fee[^\n]*?([0-9]+\.[0-9]+)\s*kWh`,
	`Energy\s+Delivered[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`kWh\s+Consumed[:\s]*([0-9]+\.[0-9]+)`,
	`Session\s+Energy[:\s]*([0-9]+\.[0-9]+)\s*kWh`,
	`([0-9]+\.[0-9]+)\s*kWh`,
})

func teslaEnergy(text string) (float64, bool) {
	for _, re := range teslaEnergyPatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			value, err := strconv.ParseFloat(match[1], 64)
			if err == nil && value > 0 && value < 200 {
				return value, true
			}
		}
	}
	return 0, false
}

var teslaUnitPricePatterns = compilePatterns([]string{
	`Energy\s+fee\s+([0-9]+\.[0-9]+)\s*/\s*kWh`,
	`([0-9]+\.[0-9]+)\s*/\s*kWh`,
	`\$([0-9]+\.[0-9]+)\s*per\s*kWh`,
	`Rate[:\s]*\$?([0-9]+\.[0-9]+)\s*/?\s*kWh`,
})

func teslaUnitPrice(text string) (float64, bool) {
	for _, re := range teslaUnitPricePatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			value, err := strconv.ParseFloat(match[1], 64)
			if err == nil && value > 0 && value < 5 {
				return value, true
			}
		}
	}
	return 0, false
}
