// Package decimalx parses user-supplied money and quantity strings into
// shopspring/decimal values under the core's "never panic on bad input"
// rule.
package decimalx

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hft-exchange/lightning/internal/coreerr"
)

// Parse converts a decimal string into a decimal value. Blank or malformed
// input is reported as a 400 error built with coreerr.Invalidf; zero and
// negative values are accepted (see ParsePositive). It never panics.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, coreerr.Invalidf("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, coreerr.Invalidf("unparsable amount %q", s)
	}
	return d, nil
}

// ParsePositive is Parse plus a > 0 check, used by Increase/Decrease/freeze
// math where zero or negative amounts are always rejected.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, coreerr.Invalidf("amount %q must be positive", s)
	}
	return d, nil
}

// String renders a decimal as a plain decimal string with no scientific
// notation. Trailing fractional zeros are dropped ("1.50" renders as
// "1.5"), so the input's scale is not preserved.
func String(d decimal.Decimal) string {
	return d.String()
}
