// Package snapshot merges adapter payloads into one normalized company
// snapshot and derives trailing analytics from the price history.
package snapshot

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"marketlens/internal/cache"
	"marketlens/internal/format"
	"marketlens/internal/marketdata"
)

// Candidate statistics keys per canonical metric, evaluated in order, first
// finite number wins. The lists cover both providers' spellings, so the
// precedence between overlapping sources is auditable here rather than
// buried in lookup code.
var (
	marketCapKeys       = []string{"market_cap", "market_capitalization", "marketCapitalization", "MarketCapitalization"}
	peRatioKeys         = []string{"pe_ratio", "pe", "pe_ttm", "peTTM", "trailing_pe", "PERatio", "TrailingPE"}
	epsKeys             = []string{"eps", "eps_ttm", "epsTTM", "eps_diluted_ttm", "diluted_eps_ttm", "EPS", "DilutedEPSTTM"}
	profitMarginKeys    = []string{"profit_margin", "net_margin", "netMargin", "ProfitMargin"}
	operatingMarginKeys = []string{"operating_margin", "operating_margin_ttm", "operatingMarginTTM", "OperatingMarginTTM"}
	roeKeys             = []string{"roe", "roe_ttm", "roeTTM", "return_on_equity_ttm", "ReturnOnEquityTTM"}
	debtToEquityKeys    = []string{"debt_to_equity", "debtToEquity", "total_debt_to_equity", "DebtToEquity"}
	revenueTTMKeys      = []string{"revenue_ttm", "revenueTTM", "RevenueTTM"}
	grossProfitTTMKeys  = []string{"gross_profit_ttm", "grossProfitTTM", "GrossProfitTTM"}
)

// Service builds snapshots through one adapter and an injected TTL cache.
type Service struct {
	Adapter marketdata.Adapter
	Cache   *cache.Cache[*Snapshot]
	// TTL is how long a built snapshot stays cacheable. Defaults to 1h.
	TTL time.Duration
	// MinHistory is the minimum number of history points required before a
	// snapshot is persisted into the cache; short histories are served but
	// never cached. Defaults to 30.
	MinHistory int
	Log        zerolog.Logger

	// coalesces concurrent builds per ticker
	sf singleflight.Group
}

const (
	defaultTTL        = time.Hour
	defaultMinHistory = 30
)

// Get returns the snapshot for rawTicker, serving from cache when fresh.
// refresh bypasses the cache read but a successful build is still written
// back. Invalid tickers are rejected before any upstream call.
func (s *Service) Get(ctx context.Context, rawTicker string, refresh bool) (*Snapshot, error) {
	ticker, err := marketdata.ValidateTicker(rawTicker)
	if err != nil {
		return nil, err
	}

	key := s.cacheKey(ticker)
	if !refresh && s.Cache != nil {
		if snap, age, ok := s.Cache.Get(key); ok {
			return snap.fromCache(age), nil
		}
	}

	v, err, _ := s.sf.Do(ticker, func() (any, error) {
		return s.build(ctx, ticker, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// cacheKey namespaces by provider and schema version so switching either
// can never serve stale cross-provider data.
func (s *Service) cacheKey(ticker string) string {
	slug := strings.ReplaceAll(strings.ToLower(s.Adapter.Name()), " ", "")
	return "snapshot:" + slug + ":v1:" + ticker
}

func (s *Service) build(ctx context.Context, ticker, key string) (*Snapshot, error) {
	start := time.Now()

	// Mandatory calls: either failure fails the snapshot.
	var (
		quote  *marketdata.Quote
		series *marketdata.Series
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := s.Adapter.Quote(gctx, ticker)
		quote = q
		return err
	})
	g.Go(func() error {
		sr, err := s.Adapter.DailySeries(gctx, ticker)
		series = sr
		return err
	})

	// Best-effort calls: a failure downgrades the section and records why
	// instead of failing the request.
	var (
		profile *marketdata.Profile
		profErr error
		stats   *marketdata.Statistics
		statErr error
	)
	optDone := make(chan struct{})
	go func() {
		defer close(optDone)
		var og errgroup.Group
		og.Go(func() error {
			profile, profErr = s.Adapter.Profile(ctx, ticker)
			return nil
		})
		og.Go(func() error {
			stats, statErr = s.Adapter.Statistics(ctx, ticker)
			return nil
		})
		_ = og.Wait()
	}()

	if err := g.Wait(); err != nil {
		<-optDone
		return nil, err
	}
	<-optDone

	var notes []string
	if profErr != nil {
		profile = nil
		notes = append(notes, NoteNoProfile)
		s.Log.Warn().Str("ticker", ticker).Err(profErr).Msg("profile unavailable")
	}
	if statErr != nil {
		stats = nil
		notes = append(notes, NoteNoStatistics)
		s.Log.Warn().Str("ticker", ticker).Err(statErr).Msg("statistics unavailable")
	}

	history, closes, highs := buildHistory(series)
	if len(history) == 0 {
		notes = append(notes, NoteMissingHistory)
	}

	high52W, low52W := HighLow(highs)
	perf := Performance{
		Return1M: Return(closes, lookback1M),
		Return6M: Return(closes, lookback6M),
		High52W:  high52W,
		Low52W:   low52W,
	}
	if len(closes) >= 2 {
		perf.Return1Y = Return(closes, len(closes)-1)
	}

	snap := &Snapshot{
		Ticker:         ticker,
		FetchedAt:      time.Now().UTC(),
		Meta:           Meta{Source: s.Adapter.Name(), Notes: notes},
		Profile:        mergeProfile(profile, series, quote, stats),
		Price:          buildPrice(quote, history),
		Metrics:        buildMetrics(stats),
		Performance:    perf,
		PriceHistory1Y: history,
	}

	// Short or incomplete histories are served but never cached, so stale
	// partial data is not replayed for an hour.
	minHistory := s.MinHistory
	if minHistory <= 0 {
		minHistory = defaultMinHistory
	}
	if s.Cache != nil && len(history) >= minHistory {
		ttl := s.TTL
		if ttl <= 0 {
			ttl = defaultTTL
		}
		s.Cache.Set(key, snap, ttl)
	}

	s.Log.Info().
		Str("ticker", ticker).
		Str("source", snap.Meta.Source).
		Int("history_points", len(history)).
		Str("market_cap", format.BigMoney(snap.Profile.MarketCap, deref(snap.Profile.Currency, "USD"))).
		Dur("took", time.Since(start)).
		Strs("notes", notes).
		Msg("snapshot built")

	return snap, nil
}

// buildHistory converts the series to ascending daily closes, dropping
// points with a missing date or close. highs carries, per retained point,
// the bar high when present and the close otherwise, for the 52-week range.
func buildHistory(series *marketdata.Series) (history []HistoryPoint, closes, highs []float64) {
	if series == nil {
		return nil, nil, nil
	}
	type bar struct {
		date  string
		close float64
		high  float64
	}
	bars := make([]bar, 0, len(series.Points))
	for _, p := range series.Points {
		if len(p.Date) < 10 || p.Close == nil {
			continue
		}
		b := bar{date: p.Date[:10], close: *p.Close, high: *p.Close}
		if p.High != nil {
			b.high = *p.High
		}
		bars = append(bars, b)
	}
	// Providers disagree on ordering (newest-first arrays, unordered maps);
	// the contract is ascending, so sort rather than assume.
	sort.Slice(bars, func(i, j int) bool { return bars[i].date < bars[j].date })

	history = make([]HistoryPoint, len(bars))
	closes = make([]float64, len(bars))
	highs = make([]float64, len(bars))
	for i, b := range bars {
		history[i] = HistoryPoint{Date: b.date, Close: b.close}
		closes[i] = b.close
		highs[i] = b.high
	}
	return history, closes, highs
}

// mergeProfile applies the fixed precedence profile > series meta > quote
// for facts more than one source can supply.
func mergeProfile(p *marketdata.Profile, series *marketdata.Series, quote *marketdata.Quote, stats *marketdata.Statistics) Profile {
	var meta marketdata.SeriesMeta
	if series != nil {
		meta = series.Meta
	}
	var q marketdata.Quote
	if quote != nil {
		q = *quote
	}

	out := Profile{
		Name:     firstString(valOf(p).Name, meta.Name, q.Name),
		Exchange: firstString(valOf(p).Exchange, meta.Exchange, q.Exchange),
		Currency: firstString(valOf(p).Currency, meta.Currency, q.Currency),
	}
	if p != nil {
		out.Description = firstString(p.Description)
		out.Sector = firstString(p.Sector)
		out.Industry = firstString(p.Industry)
		out.MarketCap = p.MarketCap
	}
	if out.MarketCap == nil {
		out.MarketCap = stats.Number(marketCapKeys...)
	}
	return out
}

func buildPrice(quote *marketdata.Quote, history []HistoryPoint) Price {
	var q marketdata.Quote
	if quote != nil {
		q = *quote
	}
	p := Price{
		Price:         q.Close,
		Change:        q.Change,
		ChangePercent: fracFromPercent(q.PercentChange),
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		Volume:        q.Volume,
	}
	if len(q.Datetime) >= 10 {
		day := q.Datetime[:10]
		p.LatestTradingDay = &day
	} else if len(history) > 0 {
		day := history[len(history)-1].Date
		p.LatestTradingDay = &day
	}
	return p
}

func buildMetrics(stats *marketdata.Statistics) Metrics {
	return Metrics{
		PERatio:         stats.Number(peRatioKeys...),
		EPS:             stats.Number(epsKeys...),
		ProfitMargin:    stats.Number(profitMarginKeys...),
		OperatingMargin: stats.Number(operatingMarginKeys...),
		ROE:             stats.Number(roeKeys...),
		DebtToEquity:    stats.Number(debtToEquityKeys...),
		RevenueTTM:      stats.Number(revenueTTMKeys...),
		GrossProfitTTM:  stats.Number(grossProfitTTMKeys...),
	}
}

// fromCache returns a copy tagged as a cache hit; the underlying sections
// are shared and treated as immutable.
func (s *Snapshot) fromCache(ageSeconds int) *Snapshot {
	out := *s
	out.Meta.Cached = true
	out.Meta.CacheAgeSeconds = ageSeconds
	return &out
}

func firstString(candidates ...string) *string {
	for _, c := range candidates {
		if c != "" {
			v := c
			return &v
		}
	}
	return nil
}

func valOf(p *marketdata.Profile) marketdata.Profile {
	if p == nil {
		return marketdata.Profile{}
	}
	return *p
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
