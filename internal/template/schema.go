package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// fileSchema is the structural contract of a template TOML document.
// Geometry and cross-field rules are checked by Template.Validate.
var fileSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []any{"fields"},
	"properties": map[string]any{
		"name":          map[string]any{"type": "string"},
		"reference_pdf": map[string]any{"type": "string"},
		"date_layouts": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string", "minLength": 1},
		},
		"field_recognition": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"confidence_threshold":      map[string]any{"type": "number", "minimum": 0, "maximum": 100},
				"use_fuzzy_matching":        map[string]any{"type": "boolean"},
				"threshold_for_fuzzy_match": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
				"layout_weight":             map[string]any{"type": "number", "minimum": 0, "maximum": 100},
				"layout_threshold":          map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			},
		},
		"fields": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []any{"name", "kind", "region"},
				"properties": map[string]any{
					"name":      map[string]any{"type": "string", "pattern": "^[a-z][a-z0-9_]*$"},
					"kind":      map[string]any{"type": "string", "enum": []any{"text", "date", "amount"}},
					"region":    map[string]any{"type": "array", "items": map[string]any{"type": "number"}, "minItems": 4, "maxItems": 4},
					"required":  map[string]any{"type": "boolean"},
					"weight":    map[string]any{"type": "number"},
					"reference": map[string]any{"type": "string"},
				},
			},
		},
	},
}

var (
	compileOnce    sync.Once
	compiledSchema *jsonschema.Schema
	compileErr     error
)

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(fileSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("template.json", bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiledSchema, compileErr = compiler.Compile("template.json")
	})
	return compiledSchema, compileErr
}

// validateDocument checks a decoded TOML document against fileSchema.
// The document is round-tripped through JSON so numbers reach the validator as float64.
func validateDocument(doc map[string]any) error {
	s, err := schema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("template does not match schema: %w", err)
	}
	return nil
}
