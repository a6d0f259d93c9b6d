// Package pipeline orchestrates one extraction run: pull raw
// documents, skip the ones already in the processed ledgers, dispatch
// the rest through the provider registry, and fold home charging
// sessions in from evcc. Runs are idempotent; re-running over the same
// inputs inserts nothing new.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ghodgson/ev-charge-ledger/internal/evcc"
	"github.com/ghodgson/ev-charge-ledger/internal/normalize"
	"github.com/ghodgson/ev-charge-ledger/internal/providers"
	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// SessionFetcher is the part of the evcc client the pipeline needs.
type SessionFetcher interface {
	Sessions(ctx context.Context) ([]evcc.Session, error)
}

// Pipeline wires the stages together. One instance serves the whole
// process; concurrent Run calls are serialized.
type Pipeline struct {
	store       *receipt.Store
	normalizer  *normalize.Normalizer
	registry    *providers.Registry
	source      DocumentSource
	evcc        SessionFetcher
	adapter     *evcc.Adapter
	minimumCost float64
	lookback    time.Duration

	mu sync.Mutex
}

// Config carries the pipeline's wiring. EVCC is optional: a nil
// Sessions fetcher disables the home charging pass.
type Config struct {
	Store        *receipt.Store
	Normalizer   *normalize.Normalizer
	Registry     *providers.Registry
	Source       DocumentSource
	EVCC         SessionFetcher
	Adapter      *evcc.Adapter
	MinimumCost  float64
	LookbackDays int
}

func New(cfg Config) *Pipeline {
	return &Pipeline{
		store:       cfg.Store,
		normalizer:  cfg.Normalizer,
		registry:    cfg.Registry,
		source:      cfg.Source,
		evcc:        cfg.EVCC,
		adapter:     cfg.Adapter,
		minimumCost: cfg.MinimumCost,
		lookback:    time.Duration(cfg.LookbackDays) * 24 * time.Hour,
	}
}

// RunResult summarizes one extraction run.
type RunResult struct {
	RunID            string    `json:"run_id"`
	StartedAt        time.Time `json:"started_at"`
	NewEmailReceipts int       `json:"new_email_receipts"`
	NewPDFReceipts   int       `json:"new_pdf_receipts"`
	NewHomeSessions  int       `json:"new_home_sessions"`
	Errors           []string  `json:"errors"`
}

// Run executes one full extraction pass over the configured lookback
// window. Individual document failures are collected in the result,
// never aborting the run.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	return p.run(ctx, p.lookback)
}

// RunWithLookback is Run with a per-invocation lookback window in
// days. Zero or negative days fall back to the configured window.
func (p *Pipeline) RunWithLookback(ctx context.Context, days int) (*RunResult, error) {
	if days <= 0 {
		return p.run(ctx, p.lookback)
	}
	return p.run(ctx, time.Duration(days)*24*time.Hour)
}

func (p *Pipeline) run(ctx context.Context, lookback time.Duration) (*RunResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	slog.Info("Starting extraction run", "run_id", result.RunID, "lookback", lookback)

	since := time.Now().Add(-lookback)
	docs, err := p.source.Documents(ctx, since)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("document source: %v", err))
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		switch doc.Kind {
		case KindEmail:
			p.processEmail(doc, result)
		case KindPDF:
			p.processPDF(doc, result)
		}
	}

	p.processHomeSessions(ctx, result)

	slog.Info("Extraction run complete",
		"run_id", result.RunID,
		"new_email_receipts", result.NewEmailReceipts,
		"new_pdf_receipts", result.NewPDFReceipts,
		"new_home_sessions", result.NewHomeSessions,
		"errors", len(result.Errors))
	return result, nil
}

// processEmail runs one saved email through parser dispatch. The
// email is marked processed regardless of the outcome so a permanently
// broken or unmatched message is never evaluated again; only the
// canonical receipt hash decides duplicates.
func (p *Pipeline) processEmail(doc RawDocument, result *RunResult) {
	contentHash := receipt.ContentHash(doc.Data)
	if p.store.IsEmailProcessed(contentHash) {
		return
	}

	parsed, err := p.normalizer.ParseEmail(doc.Data)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", doc.Name, err))
		p.store.MarkEmailProcessed(contentHash, doc.Name)
		return
	}

	parser, ok := p.registry.FindParser(parsed.Sender, parsed.Subject)
	if !ok {
		provider := providers.IdentifyProvider(parsed.Sender)
		slog.Debug("No parser claimed email",
			"sender", parsed.Sender, "subject", parsed.Subject, "provider", provider)
		p.store.MarkEmailProcessed(contentHash, provider+": "+parsed.Subject)
		return
	}

	for _, r := range parser.Extract(parsed) {
		if p.store.SaveReceipt(r, r.SourceType, p.minimumCost) {
			if r.SourceType == receipt.SourcePDF {
				result.NewPDFReceipts++
			} else {
				result.NewEmailReceipts++
			}
		}
	}
	p.store.MarkEmailProcessed(contentHash, parsed.Subject)
}

func (p *Pipeline) processPDF(doc RawDocument, result *RunResult) {
	contentHash := receipt.ContentHash(doc.Data)
	if p.store.IsPDFProcessed(contentHash) {
		return
	}

	for _, r := range p.registry.ExtractPDF(doc.Name, doc.Data) {
		if p.store.SaveReceipt(r, r.SourceType, p.minimumCost) {
			result.NewPDFReceipts++
		}
	}
	p.store.MarkPDFProcessed(contentHash, doc.Name)
}

func (p *Pipeline) processHomeSessions(ctx context.Context, result *RunResult) {
	if p.evcc == nil {
		return
	}
	sessions, err := p.evcc.Sessions(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("evcc: %v", err))
		return
	}
	for _, session := range sessions {
		r := p.adapter.Receipt(session)
		if r == nil {
			continue
		}
		if p.store.SaveReceipt(r, receipt.SourceHome, p.minimumCost) {
			result.NewHomeSessions++
		}
	}
}

// ResetAndRerun wipes the receipts and both processed ledgers, then
// immediately re-extracts everything still on disk.
func (p *Pipeline) ResetAndRerun(ctx context.Context) (receipt.ResetCounts, *RunResult, error) {
	counts, err := p.store.Reset()
	if err != nil {
		return counts, nil, fmt.Errorf("resetting store: %w", err)
	}
	slog.Info("Store reset",
		"receipts", counts.Receipts, "emails", counts.Emails, "pdfs", counts.PDFs)

	result, err := p.Run(ctx)
	return counts, result, err
}

// DebugReceipt is one would-be receipt with its dedup identity.
type DebugReceipt struct {
	Receipt *receipt.Receipt `json:"receipt"`
	Hash    string           `json:"hash"`
	Valid   bool             `json:"valid"`
}

// DebugResult traces extraction for one email without persisting
// anything. IdentifiedProvider is the sender-mapping guess, reported
// even when no parser claims the email.
type DebugResult struct {
	Sender             string          `json:"sender"`
	Subject            string          `json:"subject"`
	IdentifiedProvider string          `json:"identified_provider"`
	HomeCharging       bool            `json:"home_charging,omitempty"`
	Parser             string          `json:"parser,omitempty"`
	Matched            bool            `json:"matched"`
	TextPreview        string          `json:"text_preview"`
	Receipts           []*DebugReceipt `json:"receipts"`
}

const debugPreviewLen = 500

// DebugExtract runs the full extraction path over one raw email and
// reports what would be stored. Nothing is written.
func (p *Pipeline) DebugExtract(raw []byte) (*DebugResult, error) {
	parsed, err := p.normalizer.ParseEmail(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing email: %w", err)
	}

	identified := providers.IdentifyProvider(parsed.Sender)
	result := &DebugResult{
		Sender:             parsed.Sender,
		Subject:            parsed.Subject,
		IdentifiedProvider: identified,
		HomeCharging:       providers.IsHomeCharging(identified),
		TextPreview:        parsed.Text,
	}
	if len(result.TextPreview) > debugPreviewLen {
		result.TextPreview = result.TextPreview[:debugPreviewLen]
	}

	parser, ok := p.registry.FindParser(parsed.Sender, parsed.Subject)
	if !ok {
		return result, nil
	}
	result.Matched = true
	result.Parser = parser.Provider()

	for _, r := range parser.Extract(parsed) {
		result.Receipts = append(result.Receipts, &DebugReceipt{
			Receipt: r,
			Hash:    r.GenerateHash(r.SourceType),
			Valid:   r.IsValid(p.minimumCost),
		})
	}
	return result, nil
}
