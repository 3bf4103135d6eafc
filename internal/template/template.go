// Package template describes where each invoice field lives on a page and how it is judged.
package template

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/layout"
	"github.com/joseph-ayodele/invoice-reconciler/internal/normalize"
)

const (
	DefaultConfidenceThreshold = 0.85
	DefaultFuzzyThreshold      = 0.90
	DefaultLayoutThreshold     = 0.80
)

// Region is a rectangle in page-relative coordinates, origin top-left.
type Region struct {
	X1, Y1, X2, Y2 float64
}

// Array returns the region as [x1, y1, x2, y2].
func (r Region) Array() [4]float64 { return [4]float64{r.X1, r.Y1, r.X2, r.Y2} }

// Validate checks bounds and orientation. The returned string is empty when r is usable.
func (r Region) Validate() string {
	for _, v := range r.Array() {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return "coordinates must lie within [0,1]"
		}
	}
	if r.X1 >= r.X2 {
		return "x1 must be less than x2"
	}
	if r.Y1 >= r.Y2 {
		return "y1 must be less than y2"
	}
	return ""
}

// Pixels maps r onto a w x h raster, rounding outward and clamping to the raster.
func (r Region) Pixels(w, h int) image.Rectangle {
	rect := image.Rect(
		int(math.Floor(r.X1*float64(w))),
		int(math.Floor(r.Y1*float64(h))),
		int(math.Ceil(r.X2*float64(w))),
		int(math.Ceil(r.Y2*float64(h))),
	)
	return rect.Intersect(image.Rect(0, 0, w, h))
}

func (r Region) String() string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", r.X1, r.Y1, r.X2, r.Y2)
}

// Field is one named region of the template.
type Field struct {
	Name      string
	Kind      constants.FieldKind
	Region    Region
	Required  bool
	Weight    float64
	Reference string

	ref    normalize.Value
	hasRef bool
}

// ReferenceValue returns the normalized expected value, if one is configured.
func (f Field) ReferenceValue() (normalize.Value, bool) {
	return f.ref, f.hasRef
}

// Template is immutable after Load; WithReferences and WithLayout return modified copies.
type Template struct {
	Name                string
	Fields              []Field
	ConfidenceThreshold float64
	UseFuzzyMatching    bool
	FuzzyThreshold      float64
	DateLayouts         []string
	ReferencePDF        string

	// LayoutWeight is the share of the overall score taken by layout similarity to the
	// reference PDF's first page. Zero disables layout comparison.
	LayoutWeight    float64
	LayoutThreshold float64
	Layout          layout.Fingerprint
}

// Field looks up a field by name.
func (t *Template) Field(name string) (Field, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Normalizer returns the normalizer configured by this template.
func (t *Template) Normalizer() normalize.Normalizer {
	return normalize.New(t.DateLayouts)
}

// Validate checks geometry (InvalidRegionError) and the remaining semantic rules (ErrValidation).
func (t *Template) Validate() error {
	for _, f := range t.Fields {
		if reason := f.Region.Validate(); reason != "" {
			return &common.InvalidRegionError{Field: f.Name, Region: f.Region.Array(), Reason: reason}
		}
	}

	v := common.NewValidator()
	if len(t.Fields) == 0 {
		v.Field("fields", nil, common.Required)
	}
	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		v.Field("fields.name", f.Name, common.Required)
		if _, dup := seen[f.Name]; dup {
			v.Field("fields.name", f.Name, duplicate)
		}
		seen[f.Name] = struct{}{}
		if _, ok := constants.ParseFieldKind(string(f.Kind)); !ok {
			v.Field("fields."+f.Name+".kind", string(f.Kind), unknownKind)
		}
		if f.Weight <= 0 || math.IsNaN(f.Weight) {
			v.Field("fields."+f.Name+".weight", f.Weight, positive)
		}
	}
	inv, ok := t.Field(constants.InvoiceNumberField)
	switch {
	case !ok:
		v.Field("fields", constants.InvoiceNumberField, missingInvoiceNumber)
	case inv.Kind != constants.FieldKindText:
		v.Field("fields."+constants.InvoiceNumberField+".kind", string(inv.Kind), mustBeText)
	}
	v.Field("field_recognition.confidence_threshold", t.ConfidenceThreshold, unitInterval)
	v.Field("field_recognition.threshold_for_fuzzy_match", t.FuzzyThreshold, unitInterval)
	v.Field("field_recognition.layout_weight", t.LayoutWeight, unitInterval)
	v.Field("field_recognition.layout_threshold", t.LayoutThreshold, unitInterval)
	if t.LayoutWeight > 0 && t.ReferencePDF == "" {
		v.Field("reference_pdf", t.ReferencePDF, layoutNeedsReference)
	}
	return v.Error()
}

// WithReferences returns a copy of t where every field without a configured reference
// takes the raw value from values. Fields whose value fails to normalize stay unset.
func (t *Template) WithReferences(values map[string]string) *Template {
	out := *t
	out.Fields = make([]Field, len(t.Fields))
	n := t.Normalizer()
	for i, f := range t.Fields {
		if raw, ok := values[f.Name]; ok && !f.hasRef && strings.TrimSpace(raw) != "" {
			if ref, err := n.Normalize(f.Kind, raw); err == nil {
				f.Reference, f.ref, f.hasRef = raw, ref, true
			}
		}
		out.Fields[i] = f
	}
	return &out
}

// ComparesLayout reports whether layout similarity takes part in scoring.
func (t *Template) ComparesLayout() bool {
	return t.LayoutWeight > 0
}

// WithLayout returns a copy of t that scores pages against the reference fingerprint fp.
func (t *Template) WithLayout(fp layout.Fingerprint) *Template {
	out := *t
	out.Layout = fp
	return &out
}

// HasAllReferences reports whether every required field carries a reference value.
func (t *Template) HasAllReferences() bool {
	for _, f := range t.Fields {
		if f.Required && !f.hasRef {
			return false
		}
	}
	return true
}

func duplicate(name string, value interface{}) *common.ValidationError {
	return &common.ValidationError{Field: name, Value: value, Message: "duplicate field name"}
}

func unknownKind(name string, value interface{}) *common.ValidationError {
	return &common.ValidationError{Field: name, Value: value, Message: "must be one of text|date|amount"}
}

func positive(name string, value interface{}) *common.ValidationError {
	return &common.ValidationError{Field: name, Value: value, Message: "must be greater than zero"}
}

func missingInvoiceNumber(name string, value interface{}) *common.ValidationError {
	return &common.ValidationError{Field: name, Value: value, Message: "template must define the invoice_number field"}
}

func mustBeText(name string, value interface{}) *common.ValidationError {
	return &common.ValidationError{Field: name, Value: value, Message: "invoice_number must be a text field"}
}

func layoutNeedsReference(name string, value interface{}) *common.ValidationError {
	return &common.ValidationError{Field: name, Value: value, Message: "layout_weight requires reference_pdf"}
}

func unitInterval(name string, value interface{}) *common.ValidationError {
	f, ok := value.(float64)
	if !ok || math.IsNaN(f) || f < 0 || f > 1 {
		return &common.ValidationError{Field: name, Value: value, Message: "must lie within [0,1]"}
	}
	return nil
}
