package receipt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucket     = "receipts"
	emailLedgerBucket = "processed_emails"
	pdfLedgerBucket   = "processed_pdfs"
)

// Store is the durable ledger: receipts keyed by canonical hash plus
// the two processed-document ledgers keyed by content hash. The hash
// key is the uniqueness constraint that makes ingestion idempotent.
type Store struct {
	db *bbolt.DB
}

// ledgerEntry records one processed source document
type ledgerEntry struct {
	Label       string    `json:"label"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NewStore opens or creates the database at path. An open failure is
// fatal to the caller; nothing useful can happen without storage.
func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{receiptBucket, emailLedgerBucket, pdfLedgerBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReceipt is the single idempotency gate for the whole pipeline.
// It returns false without writing when the receipt fails the validity
// check or a row with the same canonical hash already exists, and true
// after inserting a new row. Storage failures are logged and reported
// as false so one bad row never aborts a batch.
func (s *Store) SaveReceipt(r *Receipt, sourceType string, minimumCost float64) bool {
	if !r.IsValid(minimumCost) {
		slog.Debug("Skipping invalid receipt", "provider", r.Provider, "cost", r.Cost)
		return false
	}

	hash := r.GenerateHash(sourceType)
	var saved *Receipt
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucket))
		if bucket.Get([]byte(hash)) != nil {
			return nil
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating receipt id: %w", err)
		}

		row := *r
		row.ID = seq
		row.SourceType = sourceType
		row.Hash = hash
		row.CreatedAt = time.Now()

		data, err := json.Marshal(&row)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		if err := bucket.Put([]byte(hash), data); err != nil {
			return err
		}
		saved = &row
		return nil
	})
	if err != nil {
		slog.Error("Error saving receipt", "provider", r.Provider, "error", err)
		return false
	}
	if saved == nil {
		slog.Debug("Duplicate receipt skipped", "hash", hash, "provider", r.Provider)
		return false
	}

	slog.Info("Saved receipt", "receipt", saved.String(), "source", sourceType)
	return true
}

// MarkEmailProcessed records an email in the processed ledger so it is
// never re-evaluated. Insert-or-ignore semantics.
func (s *Store) MarkEmailProcessed(contentHash, subject string) {
	s.markProcessed(emailLedgerBucket, contentHash, subject)
}

// IsEmailProcessed reports whether an email has already been through
// the pipeline.
func (s *Store) IsEmailProcessed(contentHash string) bool {
	return s.isProcessed(emailLedgerBucket, contentHash)
}

// MarkPDFProcessed records a standalone PDF in the processed ledger
func (s *Store) MarkPDFProcessed(contentHash, filename string) {
	s.markProcessed(pdfLedgerBucket, contentHash, filename)
}

// IsPDFProcessed reports whether a standalone PDF has already been
// through the pipeline.
func (s *Store) IsPDFProcessed(contentHash string) bool {
	return s.isProcessed(pdfLedgerBucket, contentHash)
}

func (s *Store) markProcessed(bucketName, contentHash, label string) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		if bucket.Get([]byte(contentHash)) != nil {
			return nil
		}
		data, err := json.Marshal(&ledgerEntry{Label: label, ProcessedAt: time.Now()})
		if err != nil {
			return fmt.Errorf("marshaling ledger entry: %w", err)
		}
		return bucket.Put([]byte(contentHash), data)
	})
	if err != nil {
		slog.Error("Error marking document processed", "ledger", bucketName, "error", err)
	}
}

func (s *Store) isProcessed(bucketName, contentHash string) bool {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(bucketName)).Get([]byte(contentHash)) != nil
		return nil
	})
	if err != nil {
		slog.Error("Error checking processed ledger", "ledger", bucketName, "error", err)
		return false
	}
	return found
}

// AllReceipts returns every persisted receipt
func (s *Store) AllReceipts() []*Receipt {
	receipts := make([]*Receipt, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptBucket)).ForEach(func(k, v []byte) error {
			var r Receipt
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshaling receipt: %w", err)
			}
			receipts = append(receipts, &r)
			return nil
		})
	})
	if err != nil {
		slog.Error("Error listing receipts", "error", err)
		return nil
	}
	return receipts
}

// Aggregate recomputes the statistics snapshot from the receipt ledger.
// Failures yield an empty snapshot rather than an error; the ledger
// remains the source of truth.
func (s *Store) Aggregate() *Snapshot {
	snapshot := &Snapshot{}
	cutoff := time.Now().AddDate(0, 0, -30)
	providerCounts := make(map[string]int)

	for _, r := range s.AllReceipts() {
		snapshot.TotalSessions++
		snapshot.TotalCost += r.Cost
		snapshot.TotalEnergy += r.EnergyKWh
		providerCounts[r.Provider]++

		if snapshot.LastSession == nil || r.Timestamp.After(snapshot.LastSession.Timestamp) {
			snapshot.LastSession = r
		}

		if r.Timestamp.Before(cutoff) {
			continue
		}
		snapshot.MonthlySessions++
		snapshot.MonthlyCost += r.Cost
		snapshot.MonthlyEnergy += r.EnergyKWh
		if r.SourceType == SourceHome {
			snapshot.HomeMonthlySessions++
			snapshot.HomeMonthlyCost += r.Cost
			snapshot.HomeMonthlyEnergy += r.EnergyKWh
		} else {
			snapshot.PublicMonthlySessions++
			snapshot.PublicMonthlyCost += r.Cost
			snapshot.PublicMonthlyEnergy += r.EnergyKWh
		}
	}

	if snapshot.TotalEnergy > 0 {
		snapshot.AverageCostPerKWh = snapshot.TotalCost / snapshot.TotalEnergy
	}

	best := 0
	for provider, count := range providerCounts {
		if count > best || (count == best && provider < snapshot.TopProvider) {
			best = count
			snapshot.TopProvider = provider
		}
	}

	return snapshot
}

// Reset drops every row from all three tables and resets the identity
// counters, returning the deleted counts for reporting.
func (s *Store) Reset() (ResetCounts, error) {
	var counts ResetCounts
	err := s.db.Update(func(tx *bbolt.Tx) error {
		buckets := []struct {
			name  string
			count *int
		}{
			{receiptBucket, &counts.Receipts},
			{emailLedgerBucket, &counts.Emails},
			{pdfLedgerBucket, &counts.PDFs},
		}
		for _, b := range buckets {
			*b.count = tx.Bucket([]byte(b.name)).Stats().KeyN
			if err := tx.DeleteBucket([]byte(b.name)); err != nil {
				return fmt.Errorf("dropping bucket %s: %w", b.name, err)
			}
			if _, err := tx.CreateBucket([]byte(b.name)); err != nil {
				return fmt.Errorf("recreating bucket %s: %w", b.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return ResetCounts{}, fmt.Errorf("resetting store: %w", err)
	}

	slog.Info("Store reset", "receipts", counts.Receipts, "emails", counts.Emails, "pdfs", counts.PDFs)
	return counts, nil
}

// UpdateTimestamp rewrites the timestamp of a persisted receipt. The
// timestamp participates in the canonical hash, so the row is re-keyed
// under its new hash; id and creation time are preserved.
func (s *Store) UpdateTimestamp(hash string, ts time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucket))
		data := bucket.Get([]byte(hash))
		if data == nil {
			return fmt.Errorf("receipt not found: %s", hash)
		}

		var r Receipt
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unmarshaling receipt: %w", err)
		}

		r.Timestamp = ts
		newHash := r.GenerateHash(r.SourceType)
		if newHash != hash && bucket.Get([]byte(newHash)) != nil {
			// The corrected session already exists under another row.
			return bucket.Delete([]byte(hash))
		}
		r.Hash = newHash

		updated, err := json.Marshal(&r)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		if err := bucket.Delete([]byte(hash)); err != nil {
			return err
		}
		return bucket.Put([]byte(newHash), updated)
	})
}
