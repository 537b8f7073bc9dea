package snapshot

import "time"

// Snapshot is the canonical normalized view of one company, the shape the
// dashboard renders. Nullable fields marshal as JSON null when a provider
// did not supply them or a derivation had too little data; 0 and NaN are
// never used as absence sentinels.
type Snapshot struct {
	Ticker         string         `json:"ticker"`
	FetchedAt      time.Time      `json:"fetchedAt"`
	Meta           Meta           `json:"meta"`
	Profile        Profile        `json:"profile"`
	Price          Price          `json:"price"`
	Metrics        Metrics        `json:"metrics"`
	Performance    Performance    `json:"performance"`
	PriceHistory1Y []HistoryPoint `json:"priceHistory1Y"`
}

// Meta is provenance: where the data came from and how it was served.
type Meta struct {
	Source          string   `json:"source"`
	Cached          bool     `json:"cached"`
	CacheAgeSeconds int      `json:"cacheAgeSeconds"`
	Notes           []string `json:"notes,omitempty"`
}

type Profile struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Sector      *string  `json:"sector"`
	Industry    *string  `json:"industry"`
	Exchange    *string  `json:"exchange"`
	MarketCap   *float64 `json:"marketCap"`
	Currency    *string  `json:"currency"`
}

type Price struct {
	Price            *float64 `json:"price"`
	Change           *float64 `json:"change"`
	ChangePercent    *float64 `json:"changePercent"` // fraction: 0.0123 = 1.23%
	Open             *float64 `json:"open"`
	High             *float64 `json:"high"`
	Low              *float64 `json:"low"`
	Volume           *float64 `json:"volume"`
	LatestTradingDay *string  `json:"latestTradingDay"` // YYYY-MM-DD
}

// Metrics are best-effort fundamentals; margins and ROE are fractions.
type Metrics struct {
	PERatio         *float64 `json:"peRatio"`
	EPS             *float64 `json:"eps"`
	ProfitMargin    *float64 `json:"profitMargin"`
	OperatingMargin *float64 `json:"operatingMargin"`
	ROE             *float64 `json:"roe"`
	DebtToEquity    *float64 `json:"debtToEquity"`
	RevenueTTM      *float64 `json:"revenueTTM"`
	GrossProfitTTM  *float64 `json:"grossProfitTTM"`
}

// Performance holds trailing returns (fractions) and the 52-week range,
// all derived from the retained price history.
type Performance struct {
	Return1M *float64 `json:"return1M"`
	Return6M *float64 `json:"return6M"`
	Return1Y *float64 `json:"return1Y"`
	High52W  *float64 `json:"high52W"`
	Low52W   *float64 `json:"low52W"`
}

// HistoryPoint is one daily close, ascending by date in PriceHistory1Y.
type HistoryPoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// Notes appended to Meta.Notes when a sub-resource is missing.
const (
	NoteMissingHistory  = "missing_price_history"
	NoteNoProfile       = "profile_unavailable"
	NoteNoStatistics    = "statistics_unavailable"
)
