package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"marketlens/internal/cache"
	"marketlens/internal/config"
	"marketlens/internal/format"
	"marketlens/internal/httpx"
	"marketlens/internal/logging"
	"marketlens/internal/marketdata"
	"marketlens/internal/marketdata/alphavantage"
	"marketlens/internal/marketdata/twelvedata"
	"marketlens/internal/snapshot"
)

// One-shot fetch for inspection and smoke testing:
//
//	go run ./cmd/fetch -tickers AAPL,MSFT -provider twelvedata
func main() {
	var tickersCSV string
	var providerName string
	var timeout int
	var configPath string
	var full bool

	flag.StringVar(&tickersCSV, "tickers", getenv("TICKERS", "AAPL"), "comma-separated tickers")
	flag.StringVar(&providerName, "provider", getenv("MARKETDATA_PROVIDER", ""), "twelvedata or alphavantage (default from config)")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "request timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.BoolVar(&full, "full", false, "print the full snapshot JSON instead of a one-line summary")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if providerName != "" {
		cfg.MarketData.Provider = providerName
	}
	if timeout != 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}

	log := logging.New(logging.Config{Level: cfg.Logging.Level, Console: true})
	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	var adapter marketdata.Adapter
	switch cfg.MarketData.Provider {
	case "alphavantage":
		adapter = alphavantage.New(alphavantage.Config{
			APIKey:  cfg.AlphaVantage.APIKey,
			BaseURL: cfg.AlphaVantage.Endpoint,
		}, httpClient)
	default:
		opts := []twelvedata.ClientOption{twelvedata.WithHTTPClient(httpClient.HTTP)}
		if cfg.TwelveData.Endpoint != "" {
			opts = append(opts, twelvedata.WithBaseURL(cfg.TwelveData.Endpoint))
		}
		adapter = twelvedata.NewAdapter(cfg.TwelveData.APIKey, opts...)
	}

	svc := &snapshot.Service{
		Adapter:    adapter,
		Cache:      cache.New[*snapshot.Snapshot](16),
		TTL:        time.Minute,
		MinHistory: cfg.MarketData.MinHistoryPoints,
		Log:        log,
	}

	tickers := splitCSV(tickersCSV)
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "no tickers provided")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.RequestTimeoutSec+5)*time.Second)
	defer cancel()

	failed := 0
	for _, t := range tickers {
		snap, err := svc.Get(ctx, t, true)
		if err != nil {
			log.Error().Err(err).Str("ticker", t).Msg("fetch failed")
			failed++
			continue
		}
		if full {
			b, _ := json.MarshalIndent(snap, "", "  ")
			fmt.Println(string(b))
			continue
		}
		fmt.Printf("%s  %s  price=%s  change=%s  mcap=%s  history=%d\n",
			snap.Ticker,
			deref(snap.Profile.Name),
			format.Money(snap.Price.Price, deref(snap.Profile.Currency)),
			format.Percent(snap.Price.ChangePercent, 2),
			format.BigMoney(snap.Profile.MarketCap, deref(snap.Profile.Currency)),
			len(snap.PriceHistory1Y),
		)
	}
	if failed == len(tickers) {
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		var x int
		_, _ = fmt.Sscanf(v, "%d", &x)
		if x != 0 {
			return x
		}
	}
	return def
}
