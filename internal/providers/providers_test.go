package providers

import (
	"encoding/base64"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

func TestProviders(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	RegisterFailHandler(Fail)
	RunSpecs(t, "Providers Suite")
}

type stubExtractor struct {
	text string
}

func (s stubExtractor) ExtractPages(data []byte) ([]string, error) {
	return []string{s.text}, nil
}

func doc(sender, subject, text string) *normalize.Document {
	return &normalize.Document{Sender: sender, Subject: subject, Text: text}
}

var _ = Describe("IdentifyProvider", func() {
	It("maps known sender tokens", func() {
		Expect(IdentifyProvider("noreply@chargefox.com")).To(Equal("Chargefox"))
		Expect(IdentifyProvider("no-reply@goevie.com.au")).To(Equal("EVIE Networks"))
		Expect(IdentifyProvider("DoNotReply@bppulse.com.au")).To(Equal("BP Pulse"))
		Expect(IdentifyProvider("accounts@ampcharge.com.au")).To(Equal("Ampol"))
		Expect(IdentifyProvider("no-reply@tesla.com")).To(Equal("Tesla"))
	})

	It("prefers the specific token over the generic one", func() {
		Expect(IdentifyProvider("support@bppulse.com.au")).To(Equal("BP Pulse"))
	})

	It("falls back to a title-cased domain", func() {
		Expect(IdentifyProvider("hello@mycharger.net")).To(Equal("Mycharger"))
	})

	It("returns Unknown for unrecognizable senders", func() {
		Expect(IdentifyProvider("just a name")).To(Equal("Unknown"))
	})
})

var _ = Describe("IsHomeCharging", func() {
	It("recognizes home charging provider names", func() {
		Expect(IsHomeCharging("EVCC (Home)")).To(BeTrue())
		Expect(IsHomeCharging("evcc")).To(BeTrue())
		Expect(IsHomeCharging("Home")).To(BeTrue())
		Expect(IsHomeCharging("Chargefox")).To(BeFalse())
	})
})

var _ = Describe("Registry", func() {
	var registry *Registry

	BeforeEach(func() {
		registry = NewRegistry("AUD", stubExtractor{})
	})

	It("dispatches to the matching parser", func() {
		parser, ok := registry.FindParser("noreply@chargefox.com", "Your EV charging receipt")
		Expect(ok).To(BeTrue())
		Expect(parser.Provider()).To(Equal("Chargefox"))
	})

	It("claims nothing for an unknown sender", func() {
		_, ok := registry.FindParser("newsletter@example.com", "Weekly specials")
		Expect(ok).To(BeFalse())
	})

	It("resolves ambiguous senders by registration order", func() {
		// "bp" appears in the goevie address, so order decides.
		parser, ok := registry.FindParser("bp-accounts@goevie.com.au", "Your receipt")
		Expect(ok).To(BeTrue())
		Expect(parser.Provider()).To(Equal("BP Pulse"))
	})

	It("dispatches deterministically", func() {
		first, _ := registry.FindParser("no-reply@goevie.com.au", "Your EVIE Networks receipt")
		second, _ := registry.FindParser("no-reply@goevie.com.au", "Your EVIE Networks receipt")
		Expect(first.Provider()).To(Equal(second.Provider()))
	})
})

var _ = Describe("ChargefoxParser", func() {
	parser := NewChargefoxParser("AUD")

	It("requires both sender and subject evidence", func() {
		Expect(parser.CanHandle("noreply@chargefox.com", "Your charging receipt")).To(BeTrue())
		Expect(parser.CanHandle("noreply@chargefox.com", "New stations near you")).To(BeFalse())
		Expect(parser.CanHandle("other@example.com", "Your charging receipt")).To(BeFalse())
	})

	It("extracts the receipt summary line", func() {
		text := "EV charging at Example Street, NSW, 2000 on 2025-04-11\n" +
			"Charging for 8mins, 16.37kWh\n" +
			"Total Amount including GST: $10.46\n"
		receipts := parser.Extract(doc("noreply@chargefox.com", "Your charging receipt", text))
		Expect(receipts).To(HaveLen(1))

		r := receipts[0]
		Expect(r.Provider).To(Equal("Chargefox"))
		Expect(r.Cost).To(BeNumerically("~", 10.46, 0.001))
		Expect(r.Timestamp.Year()).To(Equal(2025))
		Expect(r.Timestamp.Month()).To(Equal(time.April))
		Expect(r.Timestamp.Day()).To(Equal(11))
		Expect(r.Location).To(ContainSubstring("Example Street"))
		Expect(r.EnergyKWh).To(BeNumerically("~", 16.37, 0.001))
		Expect(r.Duration).To(Equal("8mins"))
		Expect(r.SourceType).To(Equal(receipt.SourceEmail))
		Expect(r.OriginSubject).To(Equal("Your charging receipt"))
	})

	It("returns nothing without a cost", func() {
		receipts := parser.Extract(doc("noreply@chargefox.com", "Your charging receipt",
			"Thanks for charging with Chargefox today"))
		Expect(receipts).To(BeEmpty())
	})
})

var _ = Describe("BPPulseParser", func() {
	parser := NewBPPulseParser("AUD")

	It("needs a charging-related subject next to the generic sender token", func() {
		Expect(parser.CanHandle("DoNotReply@bppulse.com.au", "Your charging session")).To(BeTrue())
		Expect(parser.CanHandle("news@bp.com", "Fuel discounts this week")).To(BeFalse())
	})

	It("extracts markdown-bold amounts", func() {
		text := "**Total Cost** **14.50 AUD**\n" +
			"Total Energy: 26.4047 kWh\n" +
			"Charging Time: 34m\n" +
			"Location: bp pulse Marsden Park Drive Through\n"
		receipts := parser.Extract(doc("DoNotReply@bppulse.com.au", "Your charging receipt", text))
		Expect(receipts).To(HaveLen(1))

		r := receipts[0]
		Expect(r.Cost).To(BeNumerically("~", 14.50, 0.001))
		Expect(r.EnergyKWh).To(BeNumerically("~", 26.4047, 0.0001))
		Expect(r.Duration).To(Equal("34"))
		Expect(r.Location).To(ContainSubstring("bp pulse Marsden Park"))
	})

	It("falls back to the current time when no date appears", func() {
		text := "**Total Cost** **14.50 AUD**\nTotal Energy: 26.4047 kWh\n"
		receipts := parser.Extract(doc("DoNotReply@bppulse.com.au", "Your receipt", text))
		Expect(receipts).To(HaveLen(1))
		Expect(receipts[0].Timestamp).To(BeTemporally("~", time.Now(), time.Minute))
	})
})

var _ = Describe("EVIEParser", func() {
	parser := NewEVIEParser("AUD")

	It("claims EVIE receipt emails", func() {
		Expect(parser.CanHandle("no-reply@goevie.com.au", "Your EVIE Networks receipt")).To(BeTrue())
		Expect(parser.CanHandle("no-reply@goevie.com.au", "Welcome to EVIE")).To(BeFalse())
	})

	It("skips per-kWh rates when picking the cost", func() {
		text := "Rate $0.55 per kWh\n" +
			"Total Amount: $19.54\n" +
			"Total Energy: 26.4047 kWh\n" +
			"Taree South Service Centre\n" +
			"July 4, 2025 at 7:54:13 PM AEST\n"
		receipts := parser.Extract(doc("no-reply@goevie.com.au", "Your EVIE Networks receipt", text))
		Expect(receipts).To(HaveLen(1))

		r := receipts[0]
		Expect(r.Cost).To(BeNumerically("~", 19.54, 0.001))
		Expect(r.Timestamp.Month()).To(Equal(time.July))
		Expect(r.Timestamp.Day()).To(Equal(4))
		Expect(r.Timestamp.Hour()).To(Equal(19))
		Expect(r.Location).To(ContainSubstring("Service Centre"))
	})
})

var _ = Describe("AmpolParser", func() {
	parser := NewAmpolParser("AUD")

	It("claims AmpCharge invoices", func() {
		Expect(parser.CanHandle("accounts@ampcharge.com.au", "Your AmpCharge Tax Invoice")).To(BeTrue())
		Expect(parser.CanHandle("other@example.com", "Tax invoice")).To(BeFalse())
	})

	It("skips the GST line when picking the cost", func() {
		text := "Total: $2.79\n" +
			"Amount: $30.72\n" +
			"Start Time: 18/07/2025 09:13:42 PM\n"
		receipts := parser.Extract(doc("accounts@ampcharge.com.au", "Tax Invoice", text))
		Expect(receipts).To(HaveLen(1))
		Expect(receipts[0].Cost).To(BeNumerically("~", 30.72, 0.001))
	})

	It("reads the tabular layout where values trail their labels", func() {
		text := "Ampol Foodary Marsden Park - t184-hu1\n" +
			"**$30.72** for EV charging\n" +
			"Start Time: 18/07/2025 09:13:42 PM\n" +
			"Energy Delivered\n" +
			"DC Fast\n" +
			"Session\n" +
			"40.967 kWh\n" +
			"Duration\n" +
			"Charger\n" +
			"Bay 2\n" +
			"00:21:05\n"
		receipts := parser.Extract(doc("accounts@ampcharge.com.au", "Tax Invoice", text))
		Expect(receipts).To(HaveLen(1))

		r := receipts[0]
		Expect(r.Cost).To(BeNumerically("~", 30.72, 0.001))
		Expect(r.EnergyKWh).To(BeNumerically("~", 40.967, 0.001))
		Expect(r.Duration).To(Equal("00:21:05"))
		Expect(r.Timestamp.Day()).To(Equal(18))
		Expect(r.Timestamp.Month()).To(Equal(time.July))
		Expect(r.Location).To(ContainSubstring("Marsden Park"))
	})
})

var _ = Describe("TeslaParser", func() {
	invoiceText := "Tesla, Inc.\n" +
		"Invoice Number INV123456\n" +
		"Invoice date 2025/02/09\n" +
		"Charging Location\n" +
		"Tesla Supercharger\n" +
		"123 Example Street\n" +
		"Sydney, NSW 2000\n" +
		"Energy fee 19.3930 kWh 0.70 / kWh\n" +
		"Total Amount (AUD) 14.93\n"

	var parser *TeslaParser

	BeforeEach(func() {
		parser = NewTeslaParser("AUD", stubExtractor{text: invoiceText})
	})

	It("claims supercharging and forwarded Tesla emails", func() {
		Expect(parser.CanHandle("no-reply@tesla.com", "Supercharging Invoice")).To(BeTrue())
		Expect(parser.CanHandle("me@example.com", "Fwd: Tesla Charging receipts")).To(BeTrue())
		Expect(parser.CanHandle("no-reply@tesla.com", "Software update available")).To(BeFalse())
	})

	It("parses each PDF attachment as its own receipt", func() {
		raw := teslaEmail("no-reply@tesla.com", []byte("%PDF-1.4 one"), []byte("%PDF-1.4 two"))
		document := &normalize.Document{
			Sender:   "no-reply@tesla.com",
			Subject:  "Supercharging Invoice",
			Text:     "See attached invoices.",
			HasPDF:   true,
			RawEmail: raw,
		}
		receipts := parser.Extract(document)
		Expect(receipts).To(HaveLen(2))

		r := receipts[0]
		Expect(r.Provider).To(Equal("Tesla"))
		Expect(r.SourceType).To(Equal(receipt.SourcePDF))
		Expect(r.Cost).To(BeNumerically("~", 14.93, 0.001))
		Expect(r.EnergyKWh).To(BeNumerically("~", 19.3930, 0.0001))
		Expect(r.Timestamp.Year()).To(Equal(2025))
		Expect(r.Timestamp.Month()).To(Equal(time.February))
		Expect(r.Timestamp.Day()).To(Equal(9))
		Expect(r.Location).To(ContainSubstring("Supercharger"))
		Expect(r.OriginSubject).To(Equal("Tesla Supercharging Receipt - INV123456 @$0.700/kWh"))
	})

	It("parses a standalone PDF file", func() {
		receipts := parser.ExtractPDF("invoice.pdf", []byte("%PDF-1.4 fake"))
		Expect(receipts).To(HaveLen(1))
		Expect(receipts[0].SourceExcerpt).To(HavePrefix("PDF: invoice.pdf"))
	})

	It("skips invoices missing a date", func() {
		parser = NewTeslaParser("AUD", stubExtractor{text: "Total Amount (AUD) 14.93\nLocation: Sydney Supercharger"})
		Expect(parser.ExtractPDF("invoice.pdf", []byte("x"))).To(BeEmpty())
	})
})

func teslaEmail(from string, pdfs ...[]byte) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("Subject: Supercharging Invoice\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"sep\"\r\n\r\n")
	b.WriteString("--sep\r\nContent-Type: text/plain\r\n\r\nSee attached invoices.\r\n")
	for _, pdf := range pdfs {
		b.WriteString("--sep\r\nContent-Type: application/pdf; name=\"invoice.pdf\"\r\n")
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString(pdf) + "\r\n")
	}
	b.WriteString("--sep--\r\n")
	return []byte(b.String())
}
