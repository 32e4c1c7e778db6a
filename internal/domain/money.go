package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amounts are carried as int64 minor units (cents) end to end, so crediting
// and debiting the same amount always round-trips exactly. Parsing and
// formatting never go through floating point.

// ParseAmount converts a decimal string like "25", "25.5" or "25.00" into
// cents. More than two fractional digits, negatives and malformed input
// return ErrInvalidAmount.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
		if frac == "" {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}
	if whole == "" || len(frac) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	cents64, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if units > (math.MaxInt64-99)/100 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return units*100 + cents64, nil
}

// FormatCents renders cents as a two-decimal string, e.g. 2500 -> "25.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
