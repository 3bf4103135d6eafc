package entity

import (
	"fmt"
	"path/filepath"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/layout"
)

// FieldScore is the matcher's verdict for one template field.
type FieldScore struct {
	Name       string  `json:"name"`
	Required   bool    `json:"required"`
	Weight     float64 `json:"weight"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Method     string  `json:"method"` // exact | fuzzy | presence | none | excluded
	Reason     string  `json:"reason,omitempty"`
}

// MatchReport is the matcher's verdict for one unit.
// Overall blends Text with Layout by LayoutWeight; without a layout it equals Text.
type MatchReport struct {
	Fields        []FieldScore `json:"fields"`
	Text          float64      `json:"text"`
	Layout        float64      `json:"layout,omitempty"`
	LayoutWeight  float64      `json:"layout_weight,omitempty"`
	LayoutSimilar bool         `json:"layout_similar,omitempty"`
	Overall       float64      `json:"overall"`
	Conformant    bool         `json:"conformant"`
}

// InvoiceUnit is a maximal run of consecutive pages in one source belonging to one invoice.
// Fields are those read from the first page.
type InvoiceUnit struct {
	Source string                    `json:"source"`
	Pages  []int                     `json:"pages"`
	Fields map[string]ExtractedField `json:"fields"`
	Layout layout.Fingerprint        `json:"-"`
	Match  MatchReport               `json:"match"`
}

// InvoiceNumber is the normalized join key, or "" when the unit cannot be joined.
func (u *InvoiceUnit) InvoiceNumber() string {
	if u == nil {
		return ""
	}
	return invoiceNumber(u.Fields)
}

// DisplayNumber is the invoice number as read, for reports.
func (u *InvoiceUnit) DisplayNumber() string {
	if u == nil {
		return ""
	}
	if f, ok := u.Fields[constants.InvoiceNumberField]; ok && f.OK() {
		return f.Value.String()
	}
	return ""
}

func (u *InvoiceUnit) Score() float64 { return u.Match.Overall }

func (u *InvoiceUnit) Conformant() bool { return u.Match.Conformant }

// PageRefs returns the unit's pages in document order.
func (u *InvoiceUnit) PageRefs() []PageRef {
	refs := make([]PageRef, len(u.Pages))
	for i, p := range u.Pages {
		refs[i] = PageRef{Source: u.Source, Index: p}
	}
	return refs
}

// PageRange renders the 1-based page span, e.g. "3-5".
func (u *InvoiceUnit) PageRange() string {
	switch len(u.Pages) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%d", u.Pages[0]+1)
	default:
		return fmt.Sprintf("%d-%d", u.Pages[0]+1, u.Pages[len(u.Pages)-1]+1)
	}
}

// Label identifies the unit in logs and diagnostics.
func (u *InvoiceUnit) Label() string {
	if u == nil {
		return ""
	}
	return fmt.Sprintf("%s[p%s]", filepath.Base(u.Source), u.PageRange())
}
