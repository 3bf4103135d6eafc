package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/layout"
)

const validTOML = `
name = "service-invoice"
reference_pdf = "reference.pdf"

[field_recognition]
confidence_threshold = 0.8
use_fuzzy_matching = true
threshold_for_fuzzy_match = 90

[[fields]]
name = "invoice_number"
kind = "text"
region = [0.70, 0.05, 0.95, 0.10]

[[fields]]
name = "date"
kind = "date"
region = [0.70, 0.10, 0.95, 0.15]
reference = "2024-03-14"

[[fields]]
name = "customer_name"
kind = "text"
region = [0.05, 0.20, 0.50, 0.25]
required = false

[[fields]]
name = "total_amount"
kind = "amount"
region = [0.70, 0.85, 0.95, 0.90]
weight = 2.0
`

func TestParse_Valid(t *testing.T) {
	tmpl, err := Parse([]byte(validTOML))
	require.NoError(t, err)

	assert.Equal(t, "service-invoice", tmpl.Name)
	assert.InDelta(t, 0.8, tmpl.ConfidenceThreshold, 1e-9)
	assert.InDelta(t, 0.9, tmpl.FuzzyThreshold, 1e-9, "percentages are converted to fractions")
	assert.True(t, tmpl.UseFuzzyMatching)
	require.Len(t, tmpl.Fields, 4)

	inv, ok := tmpl.Field(constants.InvoiceNumberField)
	require.True(t, ok)
	assert.True(t, inv.Required)
	assert.Equal(t, 1.0, inv.Weight)
	_, hasRef := inv.ReferenceValue()
	assert.False(t, hasRef)

	date, _ := tmpl.Field("date")
	ref, hasRef := date.ReferenceValue()
	require.True(t, hasRef)
	assert.Equal(t, "2024-03-14", ref.Canonical())

	cust, _ := tmpl.Field("customer_name")
	assert.False(t, cust.Required)

	total, _ := tmpl.Field("total_amount")
	assert.Equal(t, 2.0, total.Weight)
	assert.Equal(t, Region{0.70, 0.85, 0.95, 0.90}, total.Region)
}

func TestParse_Defaults(t *testing.T) {
	tmpl, err := Parse([]byte(`
[[fields]]
name = "invoice_number"
kind = "text"
region = [0, 0, 1, 1]
`))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfidenceThreshold, tmpl.ConfidenceThreshold)
	assert.Equal(t, DefaultFuzzyThreshold, tmpl.FuzzyThreshold)
	assert.True(t, tmpl.UseFuzzyMatching)
	assert.False(t, tmpl.ComparesLayout())
	assert.Equal(t, DefaultLayoutThreshold, tmpl.LayoutThreshold)
}

func TestParse_LayoutWeight(t *testing.T) {
	tmpl, err := Parse([]byte(`
reference_pdf = "reference.pdf"

[field_recognition]
layout_weight = 60
layout_threshold = 0.75

[[fields]]
name = "invoice_number"
kind = "text"
region = [0, 0, 1, 1]
`))
	require.NoError(t, err)
	assert.True(t, tmpl.ComparesLayout())
	assert.InDelta(t, 0.6, tmpl.LayoutWeight, 1e-9)
	assert.InDelta(t, 0.75, tmpl.LayoutThreshold, 1e-9)
	assert.Nil(t, tmpl.Layout)

	fp := layout.Fingerprint{0, 255}
	with := tmpl.WithLayout(fp)
	assert.Equal(t, fp, with.Layout)
	assert.Nil(t, tmpl.Layout, "WithLayout leaves the receiver unchanged")
}

func TestParse_InvalidRegion(t *testing.T) {
	tests := []struct {
		name   string
		region string
	}{
		{"outside unit square", "[0.5, 0.1, 1.2, 0.2]"},
		{"negative", "[-0.1, 0.1, 0.2, 0.2]"},
		{"inverted x", "[0.6, 0.1, 0.5, 0.2]"},
		{"zero height", "[0.1, 0.2, 0.5, 0.2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `
[[fields]]
name = "invoice_number"
kind = "text"
region = ` + tt.region + "\n"
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidRegion)
			var rerr *common.InvalidRegionError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, "invoice_number", rerr.Field)
		})
	}
}

func TestParse_SemanticAndSchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing invoice number", `
[[fields]]
name = "date"
kind = "date"
region = [0, 0, 1, 1]
`},
		{"unknown kind", `
[[fields]]
name = "invoice_number"
kind = "currency"
region = [0, 0, 1, 1]
`},
		{"three coordinates", `
[[fields]]
name = "invoice_number"
kind = "text"
region = [0, 0, 1]
`},
		{"unknown key", `
colour = "blue"
[[fields]]
name = "invoice_number"
kind = "text"
region = [0, 0, 1, 1]
`},
		{"duplicate names", `
[[fields]]
name = "invoice_number"
kind = "text"
region = [0, 0, 1, 1]
[[fields]]
name = "invoice_number"
kind = "text"
region = [0, 0, 1, 1]
`},
		{"unparseable reference", `
[[fields]]
name = "invoice_number"
kind = "text"
region = [0, 0, 0.5, 0.5]
[[fields]]
name = "total_amount"
kind = "amount"
region = [0.5, 0.5, 1, 1]
reference = "lots"
`},
		{"zero weight", `
[[fields]]
name = "invoice_number"
kind = "text"
region = [0, 0, 1, 1]
weight = 0
`},
		{"layout weight without reference pdf", `
[field_recognition]
layout_weight = 0.6
[[fields]]
name = "invoice_number"
kind = "text"
region = [0, 0, 1, 1]
`},
		{"not toml", `fields = [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrValidation)
			assert.NotErrorIs(t, err, common.ErrInvalidRegion)
		})
	}
}

func TestLoad_ResolvesReferencePDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "template.toml")
	require.NoError(t, os.WriteFile(path, []byte(validTOML), 0o644))

	tmpl, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reference.pdf"), tmpl.ReferencePDF)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestWithReferences(t *testing.T) {
	tmpl, err := Parse([]byte(validTOML))
	require.NoError(t, err)
	assert.False(t, tmpl.HasAllReferences())

	withRefs := tmpl.WithReferences(map[string]string{
		"invoice_number": " INV-100 ",
		"date":           "01/01/2020", // explicit reference wins
		"total_amount":   "not a number",
	})

	inv, _ := withRefs.Field("invoice_number")
	ref, ok := inv.ReferenceValue()
	require.True(t, ok)
	assert.Equal(t, "inv-100", ref.Canonical())

	date, _ := withRefs.Field("date")
	ref, _ = date.ReferenceValue()
	assert.Equal(t, "2024-03-14", ref.Canonical())

	total, _ := withRefs.Field("total_amount")
	_, ok = total.ReferenceValue()
	assert.False(t, ok)

	orig, _ := tmpl.Field("invoice_number")
	_, ok = orig.ReferenceValue()
	assert.False(t, ok, "original template is not modified")
}

func TestRegionPixels(t *testing.T) {
	r := Region{0.1, 0.25, 0.5, 0.75}
	assert.Equal(t, "(100,250)-(500,750)", r.Pixels(1000, 1000).String())
	assert.Equal(t, "(0,0)-(1,1)", Region{0, 0, 0.001, 0.001}.Pixels(10, 10).String())
	assert.True(t, r.Pixels(0, 0).Empty())
}
