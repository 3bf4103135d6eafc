// Package match scores extracted fields against a template's reference values.
package match

import (
	"github.com/agext/levenshtein"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/layout"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
)

// Field score methods.
const (
	MethodExact    = "exact"
	MethodFuzzy    = "fuzzy"
	MethodPresence = "presence"
	MethodNone     = "none"
	MethodExcluded = "excluded"
)

// Matcher decides whether a page's fields conform to the template.
type Matcher struct {
	tmpl *template.Template
}

func New(tmpl *template.Template) *Matcher {
	return &Matcher{tmpl: tmpl}
}

// Similarity is the normalized edit-distance ratio in [0,1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return levenshtein.Similarity(a, b, nil)
}

// Score evaluates fields against every template field.
// Required fields always count; optional fields count only when something was read.
func (m *Matcher) Score(fields map[string]entity.ExtractedField) entity.MatchReport {
	return m.ScorePage(fields, nil)
}

// ScorePage is Score plus layout comparison. When the template carries a reference
// layout, page's similarity to it takes LayoutWeight of the overall score; a page
// without a fingerprint counts as dissimilar.
func (m *Matcher) ScorePage(fields map[string]entity.ExtractedField, page layout.Fingerprint) entity.MatchReport {
	report := entity.MatchReport{Fields: make([]entity.FieldScore, 0, len(m.tmpl.Fields))}

	var sum, weight float64
	for _, tf := range m.tmpl.Fields {
		ef, present := fields[tf.Name]
		fs := entity.FieldScore{Name: tf.Name, Required: tf.Required, Weight: tf.Weight}

		if !tf.Required && (!present || !ef.Recognized()) {
			fs.Method = MethodExcluded
			report.Fields = append(report.Fields, fs)
			continue
		}

		m.scoreField(tf, ef, present, &fs)
		sum += fs.Score * tf.Weight
		weight += tf.Weight
		report.Fields = append(report.Fields, fs)
	}

	if weight > 0 {
		report.Text = sum / weight
	}
	report.Overall = report.Text
	if m.tmpl.ComparesLayout() && m.tmpl.Layout != nil {
		lw := m.tmpl.LayoutWeight
		report.Layout = layout.Similarity(m.tmpl.Layout, page)
		report.LayoutWeight = lw
		report.LayoutSimilar = report.Layout >= m.tmpl.LayoutThreshold
		report.Overall = (1-lw)*report.Text + lw*report.Layout
	}
	report.Conformant = weight > 0 && report.Overall >= m.tmpl.ConfidenceThreshold
	return report
}

func (m *Matcher) scoreField(tf template.Field, ef entity.ExtractedField, present bool, fs *entity.FieldScore) {
	switch {
	case !present:
		fs.Method, fs.Reason = MethodNone, "not extracted"
		return
	case !ef.OK():
		fs.Method, fs.Reason = MethodNone, ef.ErrorMessage()
		if fs.Reason == "" {
			fs.Reason = "empty"
		}
		return
	}

	ref, hasRef := tf.ReferenceValue()
	if !hasRef {
		fs.Score, fs.Similarity, fs.Method = 1, 1, MethodPresence
		return
	}
	if ef.Value.Equal(ref) {
		fs.Score, fs.Similarity, fs.Method = 1, 1, MethodExact
		return
	}

	fs.Similarity = Similarity(ef.Value.Canonical(), ref.Canonical())
	if m.tmpl.UseFuzzyMatching && fs.Similarity >= m.tmpl.FuzzyThreshold {
		fs.Score, fs.Method = fs.Similarity, MethodFuzzy
		return
	}
	fs.Method, fs.Reason = MethodNone, "does not match reference"
}
