package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"marketlens/internal/earnings"
	"marketlens/internal/marketdata"
	"marketlens/internal/snapshot"
)

type server struct {
	snapshots  *snapshot.Service
	summarizer *earnings.Summarizer
	timeout    time.Duration
	llmTimeout time.Duration
	log        zerolog.Logger
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// GET /snapshot?ticker=AAPL[&refresh=true]
func (s *server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()

	ticker := r.URL.Query().Get("ticker")
	refresh := r.URL.Query().Get("refresh") == "1"

	snap, err := s.snapshots.Get(ctx, ticker, refresh)
	if err != nil {
		s.writeSnapshotError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *server) writeSnapshotError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, marketdata.ErrInvalidTicker) {
		writeError(w, http.StatusBadRequest, "invalid ticker", nil)
		return
	}
	kind := marketdata.KindOf(err)
	s.log.Warn().Err(err).Str("kind", string(kind)).Str("path", r.URL.Path).Msg("snapshot failed")
	switch kind {
	case marketdata.KindNotFound:
		writeError(w, http.StatusNotFound, "ticker not found", nil)
	case marketdata.KindRateLimited:
		writeError(w, http.StatusTooManyRequests, "provider rate limit reached, try again shortly", nil)
	case marketdata.KindTransport, marketdata.KindUpstream:
		writeError(w, http.StatusBadGateway, upstreamMessage(err, "market data provider unavailable"), nil)
	default:
		writeError(w, http.StatusInternalServerError, upstreamMessage(err, "failed to build snapshot"), nil)
	}
}

// upstreamMessage surfaces the provider's human-readable failure text when
// the error carries one.
func upstreamMessage(err error, fallback string) string {
	var me *marketdata.Error
	if errors.As(err, &me) && me.Message != "" {
		return me.Message
	}
	return fallback
}

type earningsRequest struct {
	Ticker string `json:"ticker"`
	Text   string `json:"text"`
}

// POST /earnings-summary {"ticker":"AAPL","text":"..."}
func (s *server) handleEarningsSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}
	// Completions routinely outlive the market-data timeout.
	ctx, cancel := context.WithTimeout(r.Context(), s.llmTimeout)
	defer cancel()

	var req earningsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", nil)
		return
	}
	// Ticker is optional context for the prompt; only normalize it when the
	// client supplied one.
	ticker := ""
	if strings.TrimSpace(req.Ticker) != "" {
		t, err := marketdata.ValidateTicker(req.Ticker)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid ticker", nil)
			return
		}
		ticker = t
	}

	brief, err := s.summarizer.Summarize(ctx, ticker, req.Text)
	if err != nil {
		s.writeEarningsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, brief)
}

func (s *server) writeEarningsError(w http.ResponseWriter, err error) {
	var schemaErr *earnings.SchemaError
	switch {
	case errors.Is(err, earnings.ErrTextTooShort):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, earnings.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
	case errors.As(err, &schemaErr):
		s.log.Warn().Err(err).Msg("brief failed validation")
		writeError(w, http.StatusInternalServerError, "model output failed validation", schemaErr.Violations)
	default:
		s.log.Warn().Err(err).Msg("summarize failed")
		writeError(w, http.StatusInternalServerError, "failed to summarize earnings text", nil)
	}
}

func (s *server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return r.Context(), func() {}
	}
	return context.WithTimeout(r.Context(), s.timeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details []string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}
