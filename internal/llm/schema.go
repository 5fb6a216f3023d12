package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a named JSON Schema the model output must satisfy. Build it
// with NewSchema so the definition is compiled once.
type Schema struct {
	// Name identifies the schema to providers, e.g. "item-hint".
	Name        string
	Description string
	Definition  map[string]any

	compiled *jsonschema.Schema
}

// NewSchema compiles def and returns a ready Schema.
func NewSchema(name, description string, def map[string]any) (*Schema, error) {
	s := &Schema{Name: name, Description: description, Definition: def}
	compiled, err := s.compile()
	if err != nil {
		return nil, err
	}
	s.compiled = compiled
	return s, nil
}

// MustSchema is NewSchema for definitions known at compile time.
func MustSchema(name, description string, def map[string]any) *Schema {
	s, err := NewSchema(name, description, def)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) compile() (*jsonschema.Schema, error) {
	// The compiler wants decoded JSON values, not Go maps with typed slices.
	raw, err := json.Marshal(s.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %q: %w", s.Name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema %q: %w", s.Name, err)
	}

	url := "mem://schemas/" + s.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema %q: %w", s.Name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", s.Name, err)
	}
	return compiled, nil
}

// Validate checks raw against the schema. A nil Schema accepts anything.
// Failures are *ErrInvalidResponse.
func (s *Schema) Validate(raw json.RawMessage) error {
	if s == nil {
		return nil
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	compiled := s.compiled
	if compiled == nil {
		if compiled, err = s.compile(); err != nil {
			return &ErrInvalidResponse{Content: raw, Err: err}
		}
	}
	if err := compiled.Validate(doc); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("schema %q: %w", s.Name, err)}
	}
	return nil
}
