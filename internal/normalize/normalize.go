// Package normalize converts raw recognized text into typed, comparable field values.
package normalize

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

// Value is a normalized field value. Exactly one payload is meaningful, selected by Kind.
type Value struct {
	Kind   constants.FieldKind
	Text   string // display form (text kind)
	Key    string // case-folded comparison form (text kind)
	Date   time.Time
	Amount decimal.Decimal
}

// IsZero reports whether v carries no value.
func (v Value) IsZero() bool {
	switch v.Kind {
	case constants.FieldKindText:
		return v.Key == ""
	case constants.FieldKindDate:
		return v.Date.IsZero()
	case constants.FieldKindAmount:
		return false
	default:
		return true
	}
}

// Canonical returns the string used for equality and fuzzy comparison.
func (v Value) Canonical() string {
	switch v.Kind {
	case constants.FieldKindText:
		return v.Key
	case constants.FieldKindDate:
		if v.Date.IsZero() {
			return ""
		}
		return v.Date.Format(time.DateOnly)
	case constants.FieldKindAmount:
		return v.Amount.StringFixed(2)
	default:
		return ""
	}
}

// String is the human-facing rendering.
func (v Value) String() string {
	if v.Kind == constants.FieldKindText {
		return v.Text
	}
	return v.Canonical()
}

// Equal compares two values by kind and canonical form.
func (v Value) Equal(o Value) bool {
	return v.Kind == o.Kind && v.Canonical() == o.Canonical()
}

// Error is a NormalizationFailure: the raw text could not be turned into a value of Kind.
type Error struct {
	Kind   constants.FieldKind
	Raw    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s %q: %s", e.Kind, e.Raw, e.Reason)
}

func (e *Error) Unwrap() error { return common.ErrNormalization }

func fail(kind constants.FieldKind, raw, reason string) *Error {
	return &Error{Kind: kind, Raw: raw, Reason: reason}
}

// Normalizer holds the knobs that vary per template.
type Normalizer struct {
	DateLayouts []string
}

// Default uses the built-in date layouts.
var Default = Normalizer{}

// New returns a Normalizer; an empty layouts list keeps the defaults.
func New(dateLayouts []string) Normalizer {
	return Normalizer{DateLayouts: dateLayouts}
}

// Normalize dispatches on kind. Any failure is returned as *Error.
func (n Normalizer) Normalize(kind constants.FieldKind, raw string) (Value, error) {
	switch kind {
	case constants.FieldKindText:
		return Text(raw)
	case constants.FieldKindDate:
		layouts := n.DateLayouts
		if len(layouts) == 0 {
			layouts = DefaultDateLayouts
		}
		return Date(raw, layouts)
	case constants.FieldKindAmount:
		return Amount(raw)
	default:
		return Value{}, fail(kind, raw, "unknown field kind")
	}
}

// Normalize uses the default Normalizer.
func Normalize(kind constants.FieldKind, raw string) (Value, error) {
	return Default.Normalize(kind, raw)
}
