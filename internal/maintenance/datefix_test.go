package maintenance

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

func TestMaintenance(t *testing.T) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	RegisterFailHandler(Fail)
	RunSpecs(t, "Maintenance Suite")
}

var _ = Describe("CorrectDefaultedDates", func() {
	var store *receipt.Store

	BeforeEach(func() {
		var err error
		store, err = receipt.NewStore(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		store.Close()
	})

	save := func(timestamp time.Time, excerpt string) {
		GinkgoHelper()
		saved := store.SaveReceipt(&receipt.Receipt{
			Provider:      "Chargefox",
			Timestamp:     timestamp,
			Location:      "Example Street, NSW, 2000",
			Cost:          10.46,
			Currency:      "AUD",
			SourceExcerpt: excerpt,
		}, receipt.SourceEmail, 0.10)
		Expect(saved).To(BeTrue())
	}

	It("re-resolves dates that defaulted to the ingestion day", func() {
		save(time.Now(), "EV charging at Example Street, NSW, 2000 on 2025-04-11")

		result := CorrectDefaultedDates(store)
		Expect(result.Examined).To(Equal(1))
		Expect(result.Corrected).To(Equal(1))
		Expect(result.Errors).To(BeEmpty())

		rows := store.AllReceipts()
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Timestamp.Year()).To(Equal(2025))
		Expect(rows[0].Timestamp.Month()).To(Equal(time.April))
		Expect(rows[0].Timestamp.Day()).To(Equal(11))
	})

	It("leaves rows with a real session date alone", func() {
		save(time.Date(2025, 4, 11, 14, 30, 0, 0, time.UTC),
			"EV charging at Example Street, NSW, 2000 on 2025-04-11")

		result := CorrectDefaultedDates(store)
		Expect(result.Examined).To(BeZero())
		Expect(result.Corrected).To(BeZero())
	})

	It("leaves defaulted rows whose excerpt has no date", func() {
		save(time.Now(), "Total Amount including GST: $10.46")

		result := CorrectDefaultedDates(store)
		Expect(result.Examined).To(Equal(1))
		Expect(result.Corrected).To(BeZero())
	})

	It("only considers rows created today", func() {
		save(time.Now(), "EV charging at Example Street, NSW, 2000 on 2025-04-11")

		nowFunc = func() time.Time { return time.Now().AddDate(0, 0, 2) }
		defer func() { nowFunc = time.Now }()

		result := CorrectDefaultedDates(store)
		Expect(result.Examined).To(BeZero())
		Expect(result.Corrected).To(BeZero())
	})
})
