package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ghodgson/ev-charge-ledger/internal/receipt"
)

// maxDebugBodySize caps the raw email accepted by the debug endpoint.
const maxDebugBodySize = 10 << 20

// setCORSHeaders sets CORS headers for cross-origin requests
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// corsError writes an error response with CORS headers
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

func writeJSON(w http.ResponseWriter, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// handleRun triggers one extraction pass over the configured sources.
// An optional lookback_days query parameter overrides the configured
// window for this run only.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	lookbackDays := 0
	if raw := r.URL.Query().Get("lookback_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			corsError(w, "Invalid lookback_days", http.StatusBadRequest)
			return
		}
		lookbackDays = days
	}

	result, err := s.pipeline.RunWithLookback(r.Context(), lookbackDays)
	if err != nil {
		slog.Error("Extraction run failed", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

// handleResetRerun wipes the store and re-extracts everything on disk.
func (s *Server) handleResetRerun(w http.ResponseWriter, r *http.Request) {
	counts, result, err := s.pipeline.ResetAndRerun(r.Context())
	if err != nil {
		slog.Error("Reset and rerun failed", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"reset": counts,
		"run":   result,
	})
}

// handleDebugExtract traces extraction for a raw email posted as the
// request body. Nothing is persisted.
func (s *Server) handleDebugExtract(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxDebugBodySize))
	if err != nil {
		corsError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(raw) == 0 {
		corsError(w, "Request body is empty", http.StatusBadRequest)
		return
	}

	result, err := s.pipeline.DebugExtract(raw)
	if err != nil {
		corsError(w, "Failed to parse email: "+err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, result)
}

// handleStats returns the aggregated spending snapshot.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Aggregate())
}

// handleListReceipts returns every stored receipt.
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	receipts := s.store.AllReceipts()
	if receipts == nil {
		receipts = []*receipt.Receipt{}
	}
	writeJSON(w, receipts)
}
