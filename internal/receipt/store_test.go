package receipt

import (
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Store", func() {
	var store *Store

	newReceipt := func() *Receipt {
		return &Receipt{
			Provider:  "EVIE Networks",
			Timestamp: time.Now().Add(-24 * time.Hour).Truncate(time.Hour),
			Location:  "Taree South Service Centre, NSW 2430",
			Cost:      19.54,
			Currency:  "AUD",
			EnergyKWh: 26.40,
		}
	}

	BeforeEach(func() {
		var err error
		store, err = NewStore(filepath.Join(GinkgoT().TempDir(), "test.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("SaveReceipt", func() {
		It("persists a valid receipt", func() {
			Expect(store.SaveReceipt(newReceipt(), SourceEmail, 0.10)).To(BeTrue())
			Expect(store.AllReceipts()).To(HaveLen(1))
		})

		It("fills in id, hash, source type and creation time", func() {
			store.SaveReceipt(newReceipt(), SourceEmail, 0.10)

			rows := store.AllReceipts()
			Expect(rows[0].ID).To(Equal(uint64(1)))
			Expect(rows[0].Hash).To(HaveLen(16))
			Expect(rows[0].SourceType).To(Equal(SourceEmail))
			Expect(rows[0].CreatedAt).NotTo(BeZero())
		})

		It("rejects the same receipt a second time", func() {
			Expect(store.SaveReceipt(newReceipt(), SourceEmail, 0.10)).To(BeTrue())
			Expect(store.SaveReceipt(newReceipt(), SourceEmail, 0.10)).To(BeFalse())
			Expect(store.AllReceipts()).To(HaveLen(1))
		})

		It("rejects an invalid receipt", func() {
			r := newReceipt()
			r.Cost = 0
			Expect(store.SaveReceipt(r, SourceEmail, 0)).To(BeFalse())
			Expect(store.AllReceipts()).To(BeEmpty())
		})

		It("accepts the same session from a different source type", func() {
			Expect(store.SaveReceipt(newReceipt(), SourceEmail, 0.10)).To(BeTrue())
			Expect(store.SaveReceipt(newReceipt(), SourceHome, 0.10)).To(BeTrue())
		})
	})

	Describe("processed-document ledgers", func() {
		It("starts with nothing processed", func() {
			Expect(store.IsEmailProcessed("abc")).To(BeFalse())
			Expect(store.IsPDFProcessed("abc")).To(BeFalse())
		})

		It("remembers processed emails", func() {
			store.MarkEmailProcessed("abc", "Your receipt")
			Expect(store.IsEmailProcessed("abc")).To(BeTrue())
			Expect(store.IsPDFProcessed("abc")).To(BeFalse())
		})

		It("remembers processed PDFs", func() {
			store.MarkPDFProcessed("def", "invoice.pdf")
			Expect(store.IsPDFProcessed("def")).To(BeTrue())
		})

		It("tolerates re-marking the same document", func() {
			store.MarkEmailProcessed("abc", "Your receipt")
			store.MarkEmailProcessed("abc", "Your receipt")
			Expect(store.IsEmailProcessed("abc")).To(BeTrue())
		})
	})

	Describe("Aggregate", func() {
		It("returns an empty snapshot for an empty store", func() {
			snapshot := store.Aggregate()
			Expect(snapshot.TotalSessions).To(BeZero())
			Expect(snapshot.AverageCostPerKWh).To(BeZero())
			Expect(snapshot.LastSession).To(BeNil())
		})

		It("computes totals and the provider leaderboard", func() {
			store.SaveReceipt(newReceipt(), SourceEmail, 0.10)

			second := newReceipt()
			second.Cost = 10.00
			second.EnergyKWh = 10.00
			second.Timestamp = time.Now().Add(-48 * time.Hour)
			store.SaveReceipt(second, SourceEmail, 0.10)

			tesla := newReceipt()
			tesla.Provider = "Tesla"
			tesla.Cost = 14.93
			store.SaveReceipt(tesla, SourcePDF, 0.10)

			snapshot := store.Aggregate()
			Expect(snapshot.TotalSessions).To(Equal(3))
			Expect(snapshot.TotalCost).To(BeNumerically("~", 44.01, 0.001))
			Expect(snapshot.TopProvider).To(Equal("EVIE Networks"))
		})

		It("splits the last 30 days between home and public", func() {
			store.SaveReceipt(newReceipt(), SourceEmail, 0.10)

			home := newReceipt()
			home.Provider = "EVCC (Home)"
			home.Location = "Home Charging (garage)"
			home.Cost = 5.25
			home.EnergyKWh = 21.0
			store.SaveReceipt(home, SourceHome, 0.10)

			old := newReceipt()
			old.Timestamp = time.Now().AddDate(0, 0, -60)
			old.Cost = 33.00
			store.SaveReceipt(old, SourceEmail, 0.10)

			snapshot := store.Aggregate()
			Expect(snapshot.MonthlySessions).To(Equal(2))
			Expect(snapshot.HomeMonthlySessions).To(Equal(1))
			Expect(snapshot.HomeMonthlyCost).To(BeNumerically("~", 5.25, 0.001))
			Expect(snapshot.PublicMonthlySessions).To(Equal(1))
			Expect(snapshot.TotalSessions).To(Equal(3))
		})

		It("computes the average cost per kWh", func() {
			r := newReceipt()
			r.Cost = 20
			r.EnergyKWh = 40
			store.SaveReceipt(r, SourceEmail, 0.10)

			Expect(store.Aggregate().AverageCostPerKWh).To(BeNumerically("~", 0.5, 0.001))
		})

		It("reports the most recent session", func() {
			older := newReceipt()
			older.Timestamp = time.Now().Add(-72 * time.Hour)
			store.SaveReceipt(older, SourceEmail, 0.10)

			newest := newReceipt()
			newest.Cost = 7.77
			store.SaveReceipt(newest, SourceEmail, 0.10)

			Expect(store.Aggregate().LastSession.Cost).To(BeNumerically("~", 7.77, 0.001))
		})
	})

	Describe("Reset", func() {
		BeforeEach(func() {
			store.SaveReceipt(newReceipt(), SourceEmail, 0.10)
			store.MarkEmailProcessed("abc", "Your receipt")
			store.MarkPDFProcessed("def", "invoice.pdf")
		})

		It("reports the cleared row counts", func() {
			counts, err := store.Reset()
			Expect(err).NotTo(HaveOccurred())
			Expect(counts.Receipts).To(Equal(1))
			Expect(counts.Emails).To(Equal(1))
			Expect(counts.PDFs).To(Equal(1))
		})

		It("empties all three tables", func() {
			_, err := store.Reset()
			Expect(err).NotTo(HaveOccurred())
			Expect(store.AllReceipts()).To(BeEmpty())
			Expect(store.IsEmailProcessed("abc")).To(BeFalse())
			Expect(store.IsPDFProcessed("def")).To(BeFalse())
		})

		It("restarts the identity counter", func() {
			_, err := store.Reset()
			Expect(err).NotTo(HaveOccurred())

			store.SaveReceipt(newReceipt(), SourceEmail, 0.10)
			Expect(store.AllReceipts()[0].ID).To(Equal(uint64(1)))
		})
	})

	Describe("UpdateTimestamp", func() {
		It("re-keys the row under its corrected hash", func() {
			store.SaveReceipt(newReceipt(), SourceEmail, 0.10)
			row := store.AllReceipts()[0]

			corrected := time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC)
			Expect(store.UpdateTimestamp(row.Hash, corrected)).To(Succeed())

			rows := store.AllReceipts()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Timestamp.Equal(corrected)).To(BeTrue())
			Expect(rows[0].Hash).NotTo(Equal(row.Hash))
			Expect(rows[0].ID).To(Equal(row.ID))
		})

		It("fails for an unknown hash", func() {
			Expect(store.UpdateTimestamp("nope", time.Now())).To(HaveOccurred())
		})
	})
})
