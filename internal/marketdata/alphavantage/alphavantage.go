// Package alphavantage adapts the Alpha Vantage query API to the marketdata
// contract. Alpha Vantage has no separate statistics endpoint: OVERVIEW
// carries both the company profile and the fundamental ratios, so one
// response (coalesced per symbol) feeds both best-effort calls.
package alphavantage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"marketlens/internal/httpx"
	"marketlens/internal/marketdata"
)

const providerName = "Alpha Vantage"

const defaultBaseURL = "https://www.alphavantage.co/query"

// seriesPoints trims the full daily history to roughly one trading year.
const seriesPoints = 260

// overviewTTL keeps a fetched OVERVIEW around long enough for the profile
// and statistics calls of one snapshot (and quick successive snapshots) to
// share it.
const overviewTTL = 30 * time.Second

type Config struct {
	APIKey  string
	BaseURL string // optional override, used by tests
}

// Adapter implements marketdata.Adapter for Alpha Vantage.
type Adapter struct {
	cfg    Config
	client *httpx.Client

	// short-lived OVERVIEW cache, coalesced per symbol
	mu        sync.RWMutex
	overviews map[string]overviewEntry
	sf        singleflight.Group
}

type overviewEntry struct {
	fields map[string]any
	until  time.Time
}

func New(cfg Config, hc *httpx.Client) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Adapter{cfg: cfg, client: hc, overviews: make(map[string]overviewEntry)}
}

func (a *Adapter) Name() string { return providerName }

// globalQuotePayload mirrors the numbered keys the GLOBAL_QUOTE function
// returns.
type globalQuotePayload struct {
	errorFields
	GlobalQuote map[string]any `json:"Global Quote"`
}

type dailySeriesPayload struct {
	errorFields
	Meta   map[string]any            `json:"Meta Data"`
	Series map[string]map[string]any `json:"Time Series (Daily)"`
}

// errorFields is how Alpha Vantage signals failure inside a 200 response:
// "Error Message" for unknown symbols or bad requests, "Note"/"Information"
// for throttling.
type errorFields struct {
	ErrorMessage string `json:"Error Message"`
	Note         string `json:"Note"`
	Information  string `json:"Information"`
}

func (a *Adapter) Quote(ctx context.Context, symbol string) (*marketdata.Quote, error) {
	var p globalQuotePayload
	if err := a.call(ctx, "quote", "GLOBAL_QUOTE", symbol, &p, &p.errorFields); err != nil {
		return nil, err
	}
	g := p.GlobalQuote
	if len(g) == 0 {
		return nil, marketdata.NewError(marketdata.KindNotFound, providerName, "quote", "empty Global Quote for "+symbol)
	}
	return &marketdata.Quote{
		Symbol:        str(g["01. symbol"]),
		Datetime:      str(g["07. latest trading day"]),
		Open:          marketdata.Num(g["02. open"]),
		High:          marketdata.Num(g["03. high"]),
		Low:           marketdata.Num(g["04. low"]),
		Close:         marketdata.Num(g["05. price"]),
		Volume:        marketdata.Num(g["06. volume"]),
		PreviousClose: marketdata.Num(g["08. previous close"]),
		Change:        marketdata.Num(g["09. change"]),
		PercentChange: marketdata.Num(strings.TrimSuffix(str(g["10. change percent"]), "%")),
	}, nil
}

func (a *Adapter) DailySeries(ctx context.Context, symbol string) (*marketdata.Series, error) {
	var p dailySeriesPayload
	if err := a.call(ctx, "time_series", "TIME_SERIES_DAILY", symbol, &p, &p.errorFields); err != nil {
		return nil, err
	}
	if len(p.Series) == 0 {
		return nil, marketdata.NewError(marketdata.KindNotFound, providerName, "time_series", "no daily series for "+symbol)
	}

	dates := make([]string, 0, len(p.Series))
	for d := range p.Series {
		dates = append(dates, d)
	}
	// Map order is random; emit newest first and let the normalizer sort.
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if len(dates) > seriesPoints {
		dates = dates[:seriesPoints]
	}

	s := &marketdata.Series{Meta: marketdata.SeriesMeta{Symbol: str(p.Meta["2. Symbol"])}}
	s.Points = make([]marketdata.SeriesPoint, 0, len(dates))
	for _, d := range dates {
		bar := p.Series[d]
		s.Points = append(s.Points, marketdata.SeriesPoint{
			Date:   d,
			Open:   marketdata.Num(bar["1. open"]),
			High:   marketdata.Num(bar["2. high"]),
			Low:    marketdata.Num(bar["3. low"]),
			Close:  marketdata.Num(bar["4. close"]),
			Volume: marketdata.Num(bar["5. volume"]),
		})
	}
	return s, nil
}

func (a *Adapter) Profile(ctx context.Context, symbol string) (*marketdata.Profile, error) {
	fields, err := a.overview(ctx, "profile", symbol)
	if err != nil {
		return nil, err
	}
	return &marketdata.Profile{
		Symbol:      str(fields["Symbol"]),
		Name:        str(fields["Name"]),
		Description: str(fields["Description"]),
		Sector:      str(fields["Sector"]),
		Industry:    str(fields["Industry"]),
		Exchange:    str(fields["Exchange"]),
		Currency:    str(fields["Currency"]),
		MarketCap:   marketdata.Num(fields["MarketCapitalization"]),
	}, nil
}

func (a *Adapter) Statistics(ctx context.Context, symbol string) (*marketdata.Statistics, error) {
	fields, err := a.overview(ctx, "statistics", symbol)
	if err != nil {
		return nil, err
	}
	return &marketdata.Statistics{Fields: fields}, nil
}

// overview fetches the OVERVIEW payload, coalescing concurrent callers per
// symbol so one snapshot's profile and statistics calls share a fetch.
func (a *Adapter) overview(ctx context.Context, op, symbol string) (map[string]any, error) {
	now := time.Now()
	a.mu.RLock()
	e, ok := a.overviews[symbol]
	a.mu.RUnlock()
	if ok && now.Before(e.until) {
		return e.fields, nil
	}

	v, err, _ := a.sf.Do(symbol, func() (any, error) {
		var fields map[string]any
		var ef errorFields
		if err := a.call(ctx, op, "OVERVIEW", symbol, &fields, &ef); err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			return nil, marketdata.NewError(marketdata.KindNotFound, providerName, op, "empty overview for "+symbol)
		}
		a.mu.Lock()
		a.overviews[symbol] = overviewEntry{fields: fields, until: time.Now().Add(overviewTTL)}
		a.mu.Unlock()
		return fields, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

func (a *Adapter) call(ctx context.Context, op, function, symbol string, out any, ef *errorFields) error {
	if a.cfg.APIKey == "" {
		return marketdata.NewError(marketdata.KindConfig, providerName, op, "missing ALPHAVANTAGE_API_KEY")
	}
	params := url.Values{
		"function": {function},
		"symbol":   {symbol},
		"apikey":   {a.cfg.APIKey},
	}
	status, err := a.client.GetJSON(ctx, a.cfg.BaseURL+"?"+params.Encode(), out)
	if err != nil {
		return marketdata.WrapError(marketdata.KindTransport, providerName, op, "request failed", err)
	}
	if ef.refreshFrom(out); ef.ErrorMessage != "" || ef.Note != "" || ef.Information != "" {
		return a.classify(op, ef)
	}
	if status < 200 || status >= 300 {
		kind := marketdata.KindTransport
		if status == 429 {
			kind = marketdata.KindRateLimited
		}
		return marketdata.NewError(kind, providerName, op, fmt.Sprintf("Alpha Vantage HTTP %d", status))
	}
	return nil
}

// refreshFrom pulls the error markers out of untyped payloads; typed
// payloads already carry them via embedding and are left untouched.
func (ef *errorFields) refreshFrom(out any) {
	m, ok := out.(*map[string]any)
	if !ok || *m == nil {
		return
	}
	ef.ErrorMessage = str((*m)["Error Message"])
	ef.Note = str((*m)["Note"])
	ef.Information = str((*m)["Information"])
}

// classify maps payload-level markers to failure kinds. Alpha Vantage uses
// "Note"/"Information" for the free-tier rate limit and "Error Message" for
// unknown symbols.
func (a *Adapter) classify(op string, ef *errorFields) error {
	switch {
	case ef.Note != "":
		return marketdata.NewError(marketdata.KindRateLimited, providerName, op, ef.Note)
	case ef.Information != "":
		return marketdata.NewError(marketdata.KindRateLimited, providerName, op, ef.Information)
	default:
		return marketdata.NewError(marketdata.KindNotFound, providerName, op, ef.ErrorMessage)
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
