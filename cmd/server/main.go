package main

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"marketlens/internal/cache"
	"marketlens/internal/config"
	"marketlens/internal/earnings"
	"marketlens/internal/httpx"
	"marketlens/internal/logging"
	"marketlens/internal/marketdata"
	"marketlens/internal/marketdata/alphavantage"
	"marketlens/internal/marketdata/twelvedata"
	"marketlens/internal/snapshot"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		boot := logging.New(logging.Default())
		boot.Fatal().Err(err).Msg("config")
	}

	log := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Console:    cfg.Logging.Console,
		File:       cfg.Logging.File,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	httpClient := httpx.New(timeout)

	adapter := newAdapter(cfg, httpClient, log)
	snapshots := &snapshot.Service{
		Adapter:    adapter,
		Cache:      cache.New[*snapshot.Snapshot](cfg.MarketData.CacheMaxItems),
		TTL:        time.Duration(cfg.MarketData.SnapshotCacheTTLSec) * time.Second,
		MinHistory: cfg.MarketData.MinHistoryPoints,
		Log:        log.With().Str("component", "snapshot").Logger(),
	}

	summarizer := newSummarizer(cfg, log)

	srv := &server{
		snapshots:  snapshots,
		summarizer: summarizer,
		timeout:    timeout,
		llmTimeout: 60 * time.Second,
		log:        log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/snapshot", srv.handleSnapshot)
	mux.HandleFunc("/earnings-summary", srv.handleEarningsSummary)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withRequestID(withJSONHeaders(withGzip(recoverPanic(limitBody(mux), log))), log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("provider", adapter.Name()).Msg("server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// newAdapter picks the one active provider for this deployment. A missing
// API key is not fatal here: every call through the adapter fails with a
// config-kind error until the key appears.
func newAdapter(cfg config.Config, hc *httpx.Client, log zerolog.Logger) marketdata.Adapter {
	switch cfg.MarketData.Provider {
	case "alphavantage":
		if cfg.AlphaVantage.APIKey == "" {
			log.Warn().Msg("ALPHAVANTAGE_API_KEY not set; snapshot requests will fail")
		}
		return alphavantage.New(alphavantage.Config{
			APIKey:  cfg.AlphaVantage.APIKey,
			BaseURL: cfg.AlphaVantage.Endpoint,
		}, hc)
	default:
		if cfg.TwelveData.APIKey == "" {
			log.Warn().Msg("TWELVE_DATA_API_KEY not set; snapshot requests will fail")
		}
		opts := []twelvedata.ClientOption{twelvedata.WithHTTPClient(hc.HTTP)}
		if cfg.TwelveData.Endpoint != "" {
			opts = append(opts, twelvedata.WithBaseURL(cfg.TwelveData.Endpoint))
		}
		return twelvedata.NewAdapter(cfg.TwelveData.APIKey, opts...)
	}
}

func newSummarizer(cfg config.Config, log zerolog.Logger) *earnings.Summarizer {
	s := &earnings.Summarizer{
		Cache:    cache.New[*earnings.Brief](cfg.LLM.CacheMaxItems),
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		TTL:      time.Duration(cfg.LLM.BriefTTLHours) * time.Hour,
		MaxChars: cfg.LLM.MaxInputChars,
		MinChars: cfg.LLM.MinInputChars,
		Log:      log.With().Str("component", "earnings").Logger(),
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey != "" {
		s.Client = earnings.NewOpenAIClient(cfg.LLM.APIKey, cfg.LLM.Model)
	} else {
		log.Warn().Str("provider", cfg.LLM.Provider).Msg("LLM not configured; earnings summaries will fail")
	}
	return s
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRequestID tags every request with an id and logs its outcome.
func withRequestID(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		next.ServeHTTP(gzipResponseWriter{ResponseWriter: w, Writer: gz}, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// limitBody caps request body size to avoid memory abuse. Earnings text is
// capped at 40k chars downstream, so 1MB is generous.
func limitBody(next http.Handler) http.Handler {
	const maxBody = 1 << 20
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler, log zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Any("panic", rec).Str("path", r.URL.Path).Msg("handler panic")
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
