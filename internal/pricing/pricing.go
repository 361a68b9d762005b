// Package pricing turns displayed catalog prices into decimal values and
// derives the wholesale and retail tiers from them.
package pricing

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	// WholesaleMarkup is applied to the base price for the wholesale tier (+30%).
	WholesaleMarkup = decimal.RequireFromString("1.30")
	// RetailMarkup is applied to the base price for the retail tier (+100%).
	RetailMarkup = decimal.RequireFromString("2.00")
)

// es-AR numbers: "." groups thousands, "," separates decimals.
var arsNumber = regexp.MustCompile(`^-?\d+(\.\d+)*(,\d+)?$`)

// ComputeTiers returns the wholesale and retail prices for a base price.
// No rounding is applied; callers format for display.
func ComputeTiers(base decimal.Decimal) (wholesale, retail decimal.Decimal) {
	return base.Mul(WholesaleMarkup), base.Mul(RetailMarkup)
}

// NormalizePriceText keeps the first line of a displayed price and strips
// currency symbols and whitespace from it. "$ 1.234,56\nantes $2.000"
// becomes "1.234,56".
func NormalizePriceText(raw string) string {
	line := strings.TrimSpace(raw)
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}

	var b strings.Builder
	b.Grow(len(line))
	for _, r := range line {
		if unicode.Is(unicode.Sc, r) || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParsePrice normalizes raw price text and parses it using Argentine
// numeric conventions. The second return value is false when the text is
// not a number.
func ParsePrice(raw string) (decimal.Decimal, bool) {
	text := NormalizePriceText(raw)
	if !arsNumber.MatchString(text) {
		return decimal.Zero, false
	}

	text = strings.ReplaceAll(text, ".", "")
	text = strings.Replace(text, ",", ".", 1)

	value, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// FormatARS renders a price the way the catalog displays it, e.g. "$ 1.604,93".
func FormatARS(value decimal.Decimal) string {
	fixed := value.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	sign := ""
	if value.IsNegative() && !value.Round(2).IsZero() {
		sign = "-"
	}
	return "$ " + sign + grouped.String() + "," + frac
}
