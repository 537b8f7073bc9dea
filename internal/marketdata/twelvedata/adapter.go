// Package twelvedata adapts the Twelve Data REST API to the marketdata
// contract. Twelve Data ships numbers as strings, signals failures inside
// 2xx payloads, and gates fundamentals behind plan tiers, so everything is
// decoded defensively at this boundary.
package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"marketlens/internal/marketdata"
)

const providerName = "Twelve Data"

// seriesOutputSize is roughly one trading year of daily bars.
const seriesOutputSize = "260"

// errorFields is the error envelope Twelve Data folds into any response.
type errorFields struct {
	Status  string `json:"status,omitempty"`
	Code    any    `json:"code,omitempty"` // number or string depending on endpoint
	Message string `json:"message,omitempty"`
}

type quotePayload struct {
	errorFields
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	Exchange      string `json:"exchange"`
	Currency      string `json:"currency"`
	Datetime      string `json:"datetime"`
	Open          any    `json:"open"`
	High          any    `json:"high"`
	Low           any    `json:"low"`
	Close         any    `json:"close"`
	Volume        any    `json:"volume"`
	PreviousClose any    `json:"previous_close"`
	Change        any    `json:"change"`
	PercentChange any    `json:"percent_change"`
}

type seriesPayload struct {
	errorFields
	Meta *struct {
		Symbol   string `json:"symbol"`
		Name     string `json:"name"`
		Exchange string `json:"exchange"`
		Currency string `json:"currency"`
	} `json:"meta"`
	Values []struct {
		Datetime string `json:"datetime"`
		Open     any    `json:"open"`
		High     any    `json:"high"`
		Low      any    `json:"low"`
		Close    any    `json:"close"`
		Volume   any    `json:"volume"`
	} `json:"values"`
}

type profilePayload struct {
	errorFields
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Exchange    string `json:"exchange"`
	Currency    string `json:"currency"`
	Sector      string `json:"sector"`
	Industry    string `json:"industry"`
	Description string `json:"description"`
	MarketCap   any    `json:"market_cap"`
}

// Adapter implements marketdata.Adapter on top of Client.
type Adapter struct {
	client *Client
	apiKey string
}

// NewAdapter builds the adapter. An empty API key is allowed at construction
// time; every call then fails with a config-kind error instead.
func NewAdapter(apiKey string, options ...ClientOption) *Adapter {
	return &Adapter{client: NewClient(apiKey, options...), apiKey: apiKey}
}

func (a *Adapter) Name() string { return providerName }

func (a *Adapter) Quote(ctx context.Context, symbol string) (*marketdata.Quote, error) {
	var p quotePayload
	if err := a.call(ctx, "quote", "/quote", url.Values{"symbol": {symbol}}, &p, &p.errorFields); err != nil {
		return nil, err
	}
	return &marketdata.Quote{
		Symbol:        p.Symbol,
		Name:          p.Name,
		Exchange:      p.Exchange,
		Currency:      p.Currency,
		Datetime:      p.Datetime,
		Open:          marketdata.Num(p.Open),
		High:          marketdata.Num(p.High),
		Low:           marketdata.Num(p.Low),
		Close:         marketdata.Num(p.Close),
		Volume:        marketdata.Num(p.Volume),
		PreviousClose: marketdata.Num(p.PreviousClose),
		Change:        marketdata.Num(p.Change),
		PercentChange: marketdata.Num(p.PercentChange),
	}, nil
}

func (a *Adapter) DailySeries(ctx context.Context, symbol string) (*marketdata.Series, error) {
	params := url.Values{
		"symbol":     {symbol},
		"interval":   {"1day"},
		"outputsize": {seriesOutputSize},
		"format":     {"JSON"},
	}
	var p seriesPayload
	if err := a.call(ctx, "time_series", "/time_series", params, &p, &p.errorFields); err != nil {
		return nil, err
	}
	s := &marketdata.Series{}
	if p.Meta != nil {
		s.Meta = marketdata.SeriesMeta{
			Symbol:   p.Meta.Symbol,
			Name:     p.Meta.Name,
			Exchange: p.Meta.Exchange,
			Currency: p.Meta.Currency,
		}
	}
	s.Points = make([]marketdata.SeriesPoint, 0, len(p.Values))
	for _, v := range p.Values {
		s.Points = append(s.Points, marketdata.SeriesPoint{
			Date:   v.Datetime,
			Open:   marketdata.Num(v.Open),
			High:   marketdata.Num(v.High),
			Low:    marketdata.Num(v.Low),
			Close:  marketdata.Num(v.Close),
			Volume: marketdata.Num(v.Volume),
		})
	}
	return s, nil
}

func (a *Adapter) Profile(ctx context.Context, symbol string) (*marketdata.Profile, error) {
	var p profilePayload
	if err := a.call(ctx, "profile", "/profile", url.Values{"symbol": {symbol}}, &p, &p.errorFields); err != nil {
		return nil, err
	}
	return &marketdata.Profile{
		Symbol:      p.Symbol,
		Name:        p.Name,
		Description: p.Description,
		Sector:      p.Sector,
		Industry:    p.Industry,
		Exchange:    p.Exchange,
		Currency:    p.Currency,
		MarketCap:   marketdata.Num(p.MarketCap),
	}, nil
}

func (a *Adapter) Statistics(ctx context.Context, symbol string) (*marketdata.Statistics, error) {
	// Statistics coverage and nesting vary by plan; treat the payload as an
	// unknown bag and flatten scalar leaves to their leaf key.
	var raw map[string]any
	if err := a.call(ctx, "statistics", "/statistics", url.Values{"symbol": {symbol}}, &raw, efFromMap(&raw)); err != nil {
		return nil, err
	}
	fields := make(map[string]any)
	flatten(raw, fields)
	return &marketdata.Statistics{Fields: fields}, nil
}

// efFromMap defers envelope extraction until the map has been decoded.
func efFromMap(raw *map[string]any) func() errorFields {
	return func() errorFields {
		var ef errorFields
		m := *raw
		if m == nil {
			return ef
		}
		if s, ok := m["status"].(string); ok {
			ef.Status = s
		}
		if msg, ok := m["message"].(string); ok {
			ef.Message = msg
		}
		ef.Code = m["code"]
		return ef
	}
}

func (a *Adapter) call(ctx context.Context, op, path string, params url.Values, out any, envelope any) error {
	if a.apiKey == "" {
		return marketdata.NewError(marketdata.KindConfig, providerName, op, "missing TWELVE_DATA_API_KEY")
	}
	status, err := a.client.get(ctx, path, params, out)
	if err != nil {
		return marketdata.WrapError(marketdata.KindTransport, providerName, op, "request failed", err)
	}
	var ef errorFields
	switch e := envelope.(type) {
	case *errorFields:
		ef = *e
	case func() errorFields:
		ef = e()
	}
	return a.check(op, status, ef)
}

// check folds transport-level and payload-level failure signals into one
// classification. Rate limiting shows up as code/status 429 or an "API
// credits" message on an otherwise healthy 200.
func (a *Adapter) check(op string, status int, ef errorFields) error {
	failed := ef.Status == "error" || status < 200 || status >= 300
	if !failed {
		return nil
	}
	msg := ef.Message
	if msg == "" {
		msg = fmt.Sprintf("Twelve Data request failed (%d)", status)
	}
	code := codeInt(ef.Code)
	lower := strings.ToLower(msg)
	switch {
	case code == 429 || status == 429 || strings.Contains(lower, "credit") || strings.Contains(lower, "limit"):
		return marketdata.NewError(marketdata.KindRateLimited, providerName, op, msg)
	case code == 404 || status == 404 || strings.Contains(lower, "not found") || strings.Contains(lower, "is invalid"):
		return marketdata.NewError(marketdata.KindNotFound, providerName, op, msg)
	case ef.Status == "error":
		return marketdata.NewError(marketdata.KindUpstream, providerName, op, msg)
	default:
		return marketdata.NewError(marketdata.KindTransport, providerName, op, msg)
	}
}

func codeInt(v any) int {
	switch n := v.(type) {
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case float64:
		return int(n)
	case string:
		if f := marketdata.Num(n); f != nil {
			return int(*f)
		}
	}
	return 0
}

// flatten walks nested objects and records scalar leaves under their leaf
// key, first occurrence wins. Arrays are skipped.
func flatten(src map[string]any, dst map[string]any) {
	for k, v := range src {
		switch child := v.(type) {
		case map[string]any:
			flatten(child, dst)
		case []any:
			// ignore
		default:
			if _, exists := dst[k]; !exists {
				dst[k] = v
			}
		}
	}
}
