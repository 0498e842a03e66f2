package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

var amountReplacer = strings.NewReplacer(",", "", "$", "", " ", "")

// ParseAmount parses a positive transaction amount, stripping thousands separators and
// currency symbols. The result is rounded to cents.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := parseDecimal(raw)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q must be positive", common.ErrCandidateParse, raw)
	}
	return d, nil
}

// ParseBalance parses a running or summary balance, which may be negative.
func ParseBalance(raw string) (decimal.Decimal, error) {
	return parseDecimal(raw)
}

func parseDecimal(raw string) (decimal.Decimal, error) {
	s := amountReplacer.Replace(strings.TrimSpace(raw))
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}
	if s == "" || strings.ContainsAny(s, "+-") {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q is not numeric", common.ErrCandidateParse, raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: amount %q is not numeric", common.ErrCandidateParse, raw)
	}
	if neg {
		d = d.Neg()
	}
	return d.Round(2), nil
}
