package template

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

type fileTemplate struct {
	Name         string          `toml:"name"`
	ReferencePDF string          `toml:"reference_pdf"`
	DateLayouts  []string        `toml:"date_layouts"`
	Recognition  fileRecognition `toml:"field_recognition"`
	Fields       []fileField     `toml:"fields"`
}

type fileRecognition struct {
	ConfidenceThreshold *float64 `toml:"confidence_threshold"`
	UseFuzzyMatching    *bool    `toml:"use_fuzzy_matching"`
	FuzzyThreshold      *float64 `toml:"threshold_for_fuzzy_match"`
	LayoutWeight        *float64 `toml:"layout_weight"`
	LayoutThreshold     *float64 `toml:"layout_threshold"`
}

type fileField struct {
	Name      string    `toml:"name"`
	Kind      string    `toml:"kind"`
	Region    []float64 `toml:"region"`
	Required  *bool     `toml:"required"`
	Weight    *float64  `toml:"weight"`
	Reference string    `toml:"reference"`
}

// Load reads, validates and returns the template at path. A relative reference_pdf
// is resolved against the template's directory.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	if t.ReferencePDF != "" && !filepath.IsAbs(t.ReferencePDF) {
		t.ReferencePDF = filepath.Join(filepath.Dir(path), t.ReferencePDF)
	}
	return t, nil
}

// Parse decodes a TOML template document.
func Parse(data []byte) (*Template, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode toml: %v", common.ErrValidation, err)
	}
	if err := validateDocument(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	var ft fileTemplate
	if err := toml.Unmarshal(data, &ft); err != nil {
		return nil, fmt.Errorf("%w: decode toml: %v", common.ErrValidation, err)
	}

	t := &Template{
		Name:                ft.Name,
		ConfidenceThreshold: fraction(ft.Recognition.ConfidenceThreshold, DefaultConfidenceThreshold),
		UseFuzzyMatching:    true,
		FuzzyThreshold:      fraction(ft.Recognition.FuzzyThreshold, DefaultFuzzyThreshold),
		DateLayouts:         ft.DateLayouts,
		ReferencePDF:        ft.ReferencePDF,
		LayoutWeight:        fraction(ft.Recognition.LayoutWeight, 0),
		LayoutThreshold:     fraction(ft.Recognition.LayoutThreshold, DefaultLayoutThreshold),
	}
	if ft.Recognition.UseFuzzyMatching != nil {
		t.UseFuzzyMatching = *ft.Recognition.UseFuzzyMatching
	}

	for _, ff := range ft.Fields {
		f := Field{
			Name:      ff.Name,
			Kind:      constants.FieldKind(ff.Kind),
			Region:    Region{X1: ff.Region[0], Y1: ff.Region[1], X2: ff.Region[2], Y2: ff.Region[3]},
			Required:  true,
			Weight:    1,
			Reference: ff.Reference,
		}
		if ff.Required != nil {
			f.Required = *ff.Required
		}
		if ff.Weight != nil {
			f.Weight = *ff.Weight
		}
		t.Fields = append(t.Fields, f)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	n := t.Normalizer()
	for i := range t.Fields {
		f := &t.Fields[i]
		if f.Reference == "" {
			continue
		}
		ref, err := n.Normalize(f.Kind, f.Reference)
		if err != nil {
			return nil, fmt.Errorf("%w: reference for field %q: %v", common.ErrValidation, f.Name, err)
		}
		f.ref, f.hasRef = ref, true
	}
	return t, nil
}

// fraction accepts either a fraction in [0,1] or a percentage in (1,100].
func fraction(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	if *v > 1 {
		return *v / 100
	}
	return *v
}
