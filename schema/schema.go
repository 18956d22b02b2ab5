// Package schema checks documents against JSON Schema shapes.
//
// It backs the offline "validate" command; the HTTP handlers never validate
// document shapes.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// StatementShapes is the default shapes definition for xAPI statements.
//
//go:embed statement.schema.json
var StatementShapes []byte

// Validator validates documents against JSON Schemas. Compiled schemas are
// cached by their JSON text.
type Validator struct {
	cache sync.Map // map[string]*gojsonschema.Schema
}

// NewValidator creates a new validator instance.
func NewValidator() *Validator {
	return &Validator{}
}

// Result is the outcome of validating one document.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Check validates doc against shapes, which may be raw JSON bytes, a JSON
// string or any value that marshals to a schema object.
func (v *Validator) Check(shapes any, doc any) (Result, error) {
	compiled, err := v.compile(shapes)
	if err != nil {
		return Result{}, fmt.Errorf("invalid schema definition: %w", err)
	}
	res, err := compiled.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Result{}, fmt.Errorf("validation execution failed: %w", err)
	}
	out := Result{Valid: res.Valid()}
	for _, desc := range res.Errors() {
		out.Errors = append(out.Errors, desc.String())
	}
	return out, nil
}

func (v *Validator) compile(shapes any) (*gojsonschema.Schema, error) {
	var raw []byte
	switch s := shapes.(type) {
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		b, err := json.Marshal(shapes)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	key := string(raw)

	if val, ok := v.cache.Load(key); ok {
		return val.(*gojsonschema.Schema), nil
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}
	v.cache.Store(key, compiled)
	return compiled, nil
}

// LoadShapes reads a shapes file, or returns StatementShapes when path is empty.
func LoadShapes(path string) ([]byte, error) {
	if path == "" {
		return StatementShapes, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(b) {
		return nil, fmt.Errorf("%s: shapes file is not valid JSON", path)
	}
	return b, nil
}

// Summary keeps the first three errors to avoid massive output.
func (r Result) Summary() []string {
	if len(r.Errors) <= 3 {
		return r.Errors
	}
	out := append([]string{}, r.Errors[:3]...)
	return append(out, fmt.Sprintf("... and %d more", len(r.Errors)-3))
}
