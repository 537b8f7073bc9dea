package marketdata

import (
	"regexp"
	"strings"
)

// tickerRe matches the symbols we accept: upper-case letters plus "." and
// "-" for share classes and exchange suffixes (BRK.B, RDS-A).
var tickerRe = regexp.MustCompile(`^[A-Z.\-]{1,15}$`)

// ValidateTicker trims and upper-cases raw and returns the normalized symbol.
// Anything that does not match the accepted shape is rejected with
// ErrInvalidTicker and never reaches a provider.
func ValidateTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if !tickerRe.MatchString(t) {
		return "", ErrInvalidTicker
	}
	return t, nil
}
