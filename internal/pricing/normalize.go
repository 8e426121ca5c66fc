// Package pricing converts heterogeneous price text into canonical decimals
// and compares own prices against competitor quotes.
package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var nonPriceChars = regexp.MustCompile(`[^\d.,]`)

// pricePattern matches plausible price substrings in free text, e.g.
// "1,234.56", "299.000", "12,5".
var pricePattern = regexp.MustCompile(`\d{1,3}(?:[.,]\d{3})*(?:[.,]\d{2})?`)

// Normalize converts raw price text into a non-negative decimal.
//
// Separator disambiguation:
//   - both "." and "," present: "," is a thousands separator, "." the decimal
//   - only ",": a single comma with 1-2 trailing digits is a decimal
//     separator, anything else is a thousands separator
//   - only ".": a single dot with 1-2 trailing digits is a decimal separator,
//     anything else is a thousands separator ("299.000" is 299000, as on
//     pages that group with dots)
//
// Unparseable or empty input yields 0. Normalize never returns NaN, Inf, or
// a negative value.
func Normalize(raw string) float64 {
	cleaned := nonPriceChars.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0
	}

	hasDot := strings.Contains(cleaned, ".")
	hasComma := strings.Contains(cleaned, ",")

	switch {
	case hasDot && hasComma:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case hasComma:
		cleaned = resolveSingleSeparator(cleaned, ",")
	case hasDot:
		cleaned = resolveSingleSeparator(cleaned, ".")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// resolveSingleSeparator handles a value containing only one kind of
// separator: decimal if it appears once with 1-2 trailing digits, grouping
// otherwise.
func resolveSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) == 2 && len(parts[1]) >= 1 && len(parts[1]) <= 2 {
		return parts[0] + "." + parts[1]
	}
	return strings.Join(parts, "")
}

// MinePrice scans free text for the first plausible price substring and
// normalizes it. Returns 0 when nothing price-like is found.
func MinePrice(text string) float64 {
	match := pricePattern.FindString(text)
	if match == "" {
		return 0
	}
	return Normalize(match)
}
