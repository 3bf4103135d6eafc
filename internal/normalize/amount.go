package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

var (
	reCurrencyCode = regexp.MustCompile(`(?i)\b(usd|eur|gbp|cad|aud|inr|jpy|chf)\b`)
	reCurrencySym  = regexp.MustCompile(`[$£€¥₹]`)
	reAmountLabel  = regexp.MustCompile(`(?i)^\s*(total|amount\s+due|amount|balance\s+due)\s*[:#]?\s*`)
	reNumeric      = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	reThousands    = regexp.MustCompile(`^[0-9]{1,3}(,[0-9]{3})+$`)
)

// Amount parses a non-negative monetary value into a fixed-point decimal.
func Amount(raw string) (Value, error) {
	s := reAmountLabel.ReplaceAllString(raw, "")
	s = reCurrencyCode.ReplaceAllString(s, "")
	s = reCurrencySym.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "")
	s = strings.Trim(s, ".;:")
	if s == "" {
		return Value{}, fail(constants.FieldKindAmount, raw, "empty")
	}
	if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") ||
		(strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")) {
		return Value{}, fail(constants.FieldKindAmount, raw, "negative amount")
	}

	s = normalizeSeparators(s)
	if !reNumeric.MatchString(s) {
		return Value{}, fail(constants.FieldKindAmount, raw, "not numeric")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}, fail(constants.FieldKindAmount, raw, err.Error())
	}
	return Value{Kind: constants.FieldKindAmount, Amount: d}, nil
}

// normalizeSeparators rewrites s to use '.' as the only decimal mark and no grouping.
// With both marks present, the last one is the decimal mark. A lone comma group
// of exactly three digits is treated as thousands grouping.
func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if reThousands.MatchString(s) {
			return strings.ReplaceAll(s, ",", "")
		}
		if strings.Count(s, ",") == 1 {
			return strings.Replace(s, ",", ".", 1)
		}
		return s
	case strings.Count(s, ".") > 1:
		// 1.234.567 style grouping
		parts := strings.Split(s, ".")
		for _, p := range parts[1:] {
			if len(p) != 3 {
				return s
			}
		}
		return strings.Join(parts, "")
	default:
		return s
	}
}
