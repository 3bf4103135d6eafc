package constants

import "strings"

// FieldKind is the closed set of value types a template field can hold.
type FieldKind string

const (
	FieldKindText   FieldKind = "text"
	FieldKindDate   FieldKind = "date"
	FieldKindAmount FieldKind = "amount"
)

// InvoiceNumberField is the template field used as the join key between units.
const InvoiceNumberField = "invoice_number"

// FieldKinds lists every supported kind, in declaration order.
var FieldKinds = []FieldKind{FieldKindText, FieldKindDate, FieldKindAmount}

// ParseFieldKind maps a user-facing string to a FieldKind.
func ParseFieldKind(s string) (FieldKind, bool) {
	switch FieldKind(strings.ToLower(strings.TrimSpace(s))) {
	case FieldKindText:
		return FieldKindText, true
	case FieldKindDate:
		return FieldKindDate, true
	case FieldKindAmount:
		return FieldKindAmount, true
	default:
		return "", false
	}
}

// Extraction methods recorded on every extracted field.
const (
	MethodTextLayer = "text-layer"
	MethodOCR       = "ocr"
	MethodCache     = "cache"
	MethodNone      = "none"
)
