package snapshot

import "math"

// Approximate trading-day lookbacks.
const (
	lookback1M = 21
	lookback6M = 126
)

// Return computes the lookback return over an ascending close series:
// (latest - closes[len-1-lookback]) / closes[len-1-lookback]. It returns
// nil when the series is shorter than lookback+1 points or the divisor is
// zero or non-finite.
func Return(closes []float64, lookback int) *float64 {
	if lookback < 1 || len(closes) < lookback+1 {
		return nil
	}
	last := closes[len(closes)-1]
	prev := closes[len(closes)-1-lookback]
	if !isFinite(last) || !isFinite(prev) || prev == 0 {
		return nil
	}
	r := (last - prev) / prev
	return &r
}

// HighLow reduces vals to their max and min, excluding non-finite entries
// first. An empty filtered set yields nil for both.
func HighLow(vals []float64) (high, low *float64) {
	var hi, lo float64
	seen := false
	for _, v := range vals {
		if !isFinite(v) {
			continue
		}
		if !seen {
			hi, lo = v, v
			seen = true
			continue
		}
		if v > hi {
			hi = v
		}
		if v < lo {
			lo = v
		}
	}
	if !seen {
		return nil, nil
	}
	return &hi, &lo
}

// fracFromPercent converts percent points (1.23) to a fraction (0.0123).
func fracFromPercent(p *float64) *float64 {
	if p == nil {
		return nil
	}
	f := *p / 100
	return &f
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
