package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

// Text trims, applies NFKC and collapses internal whitespace. Key is the case-folded form.
func Text(raw string) (Value, error) {
	s := CollapseSpace(norm.NFKC.String(raw))
	if s == "" {
		return Value{}, fail(constants.FieldKindText, raw, "empty")
	}
	return Value{
		Kind: constants.FieldKindText,
		Text: s,
		Key:  cases.Fold().String(s),
	}, nil
}

// Key returns the join key for raw text, or "" when it normalizes to nothing.
func Key(raw string) string {
	v, err := Text(raw)
	if err != nil {
		return ""
	}
	return v.Key
}

// CollapseSpace trims s and replaces every whitespace run with a single space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
