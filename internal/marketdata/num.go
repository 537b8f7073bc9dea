package marketdata

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Num coerces a decoded JSON value to a finite float. Providers send numbers
// as floats, strings, or json.Number depending on endpoint and plan; "None",
// "-", empty strings, NaN and infinities all come back as nil. Never panics.
func Num(v any) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return finite(float64(n))
	case int64:
		return finite(float64(n))
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return nil
		}
		return finite(f)
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return finite(f)
	default:
		return nil
	}
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
