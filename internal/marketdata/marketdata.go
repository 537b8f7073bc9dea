package marketdata

import (
	"context"
)

// Quote is the normalized real-time quote shape returned by all adapters.
// Optional numeric fields are nil when the provider did not supply them;
// optional strings are empty. PercentChange is in percent points (1.23 means
// 1.23%), exactly as providers report it; callers convert to fractions.
type Quote struct {
	Symbol        string
	Name          string
	Exchange      string
	Currency      string
	Datetime      string // "YYYY-MM-DD" or "YYYY-MM-DD HH:mm:ss"
	Close         *float64
	Open          *float64
	High          *float64
	Low           *float64
	Volume        *float64
	PreviousClose *float64
	Change        *float64
	PercentChange *float64
}

// SeriesPoint is one bar of a daily time series.
type SeriesPoint struct {
	Date   string // "YYYY-MM-DD"
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *float64
}

// SeriesMeta carries symbol metadata some providers attach to a series.
type SeriesMeta struct {
	Symbol   string
	Name     string
	Exchange string
	Currency string
}

// Series is a daily time series in whatever order the provider returned it.
// Callers sort before deriving anything.
type Series struct {
	Meta   SeriesMeta
	Points []SeriesPoint
}

// Profile is the normalized company profile.
type Profile struct {
	Symbol      string
	Name        string
	Description string
	Sector      string
	Industry    string
	Exchange    string
	Currency    string
	MarketCap   *float64
}

// Statistics is a loosely-typed bag of fundamental metrics. Providers differ
// wildly in key naming and coverage, so values are kept raw and extracted by
// ordered candidate-key lists (see Number).
type Statistics struct {
	Fields map[string]any
}

// Number returns the first candidate key that coerces to a finite number,
// or nil when none does. Keys are tried in order, so callers encode field
// precedence in the key list itself.
func (s *Statistics) Number(keys ...string) *float64 {
	if s == nil || s.Fields == nil {
		return nil
	}
	for _, k := range keys {
		if n := Num(s.Fields[k]); n != nil {
			return n
		}
	}
	return nil
}

// Adapter is the uniform contract every market-data provider implements.
// Quote and DailySeries are mandatory for a snapshot; Profile and Statistics
// are best-effort and their failures degrade rather than fail the caller.
// All failures are *Error values.
type Adapter interface {
	// Name is the human-facing provider name, e.g. "Twelve Data".
	Name() string
	Quote(ctx context.Context, symbol string) (*Quote, error)
	DailySeries(ctx context.Context, symbol string) (*Series, error)
	Profile(ctx context.Context, symbol string) (*Profile, error)
	Statistics(ctx context.Context, symbol string) (*Statistics, error)
}
