package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

func TwoDecimals(number float64) float64 {
	return RoundFloat64(number, 2)
}

func RoundFloat64(number float64, decimals int) float64 {
	return math.Round(number*math.Pow10(decimals)) / math.Pow10(decimals)
}

// ParseCommaFloat parses numbers written with a decimal comma, e.g. "1 234,56".
// Spaces and non-breaking spaces are treated as thousands separators.
// NaN and infinities are rejected.
func ParseCommaFloat(s string) (float64, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		}
		return r
	}, s)
	clean = strings.Replace(clean, ",", ".", 1)

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q as number: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("parsing %q as number: not finite", s)
	}
	return f, nil
}
