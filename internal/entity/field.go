package entity

import (
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/layout"
	"github.com/joseph-ayodele/invoice-reconciler/internal/normalize"
)

// PageRef addresses one page of a source PDF. Index is 0-based.
type PageRef struct {
	Source string `json:"source"`
	Index  int    `json:"index"`
}

// Number is the 1-based page number used by PDF tools.
func (p PageRef) Number() int { return p.Index + 1 }

// ExtractedField is the result of reading one template field from one page.
type ExtractedField struct {
	Name       string              `json:"name"`
	Kind       constants.FieldKind `json:"kind"`
	RawText    string              `json:"raw_text"`
	Value      normalize.Value     `json:"-"`
	Confidence float64             `json:"confidence"`
	Method     string              `json:"method"`
	Err        error               `json:"-"`
}

// OK reports whether the field normalized to a usable value.
func (f ExtractedField) OK() bool {
	return f.Err == nil && !f.Value.IsZero()
}

// Recognized reports whether any text was read for the field.
func (f ExtractedField) Recognized() bool {
	return strings.TrimSpace(f.RawText) != ""
}

// ErrorMessage is the empty string when extraction and normalization succeeded.
func (f ExtractedField) ErrorMessage() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// PageFields collects every template field read from a single page.
type PageFields struct {
	Page   PageRef                   `json:"page"`
	Fields map[string]ExtractedField `json:"fields"`
	Layout layout.Fingerprint        `json:"-"` // set only when the template compares layouts
}

// InvoiceNumber returns the normalized join key on this page, or "".
func (p PageFields) InvoiceNumber() string {
	return invoiceNumber(p.Fields)
}

func invoiceNumber(fields map[string]ExtractedField) string {
	f, ok := fields[constants.InvoiceNumberField]
	if !ok || !f.OK() {
		return ""
	}
	return f.Value.Canonical()
}
