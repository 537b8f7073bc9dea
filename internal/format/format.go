// Package format renders nullable metrics for humans: logs, the fetch tool,
// anywhere a snapshot is shown outside JSON. Missing values render as an
// em dash rather than a fake zero.
package format

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

const missing = "—"

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// Number formats with thousands separators and a fixed number of decimals.
func Number(n *float64, digits int) string {
	if n == nil || !isFinite(*n) {
		return missing
	}
	if digits <= 0 {
		return Int(n)
	}
	return humanize.FormatFloat("#,###."+zeros(digits), *n)
}

// Int formats a whole number with thousands separators.
func Int(n *float64) string {
	if n == nil || !isFinite(*n) {
		return missing
	}
	return humanize.Comma(int64(math.Round(*n)))
}

// Money prefixes a currency symbol when one is known, otherwise the code.
func Money(n *float64, currency string) string {
	if n == nil || !isFinite(*n) {
		return missing
	}
	if sym, ok := symbols[currency]; ok {
		return sym + Number(n, 2)
	}
	if currency == "" {
		return Number(n, 2)
	}
	return currency + " " + Number(n, 2)
}

// BigMoney compacts large amounts with K/M/B/T suffixes, e.g. $3.02T.
func BigMoney(n *float64, currency string) string {
	if n == nil || !isFinite(*n) {
		return missing
	}
	abs := math.Abs(*n)
	units := []struct {
		v float64
		s string
	}{
		{1e12, "T"},
		{1e9, "B"},
		{1e6, "M"},
		{1e3, "K"},
	}
	for _, u := range units {
		if abs >= u.v {
			scaled := *n / u.v
			return Money(&scaled, currency) + u.s
		}
	}
	return Money(n, currency)
}

// Percent renders a fraction as percent points: 0.0123 -> "1.23%".
func Percent(p *float64, digits int) string {
	if p == nil || !isFinite(*p) {
		return missing
	}
	return fmt.Sprintf("%.*f%%", digits, *p*100)
}

func zeros(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = '0'
	}
	return string(out)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
