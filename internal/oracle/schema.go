package oracle

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
)

// FieldType is the JSON type of a structured-output field.
type FieldType string

const (
	TypeString      FieldType = "string"
	TypeNumber      FieldType = "number"
	TypeInteger     FieldType = "integer"
	TypeBoolean     FieldType = "boolean"
	TypeStringArray FieldType = "string_array"
)

// Field describes one key of a structured response.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	// Enum restricts string values. Matching is case-insensitive; values are
	// lower-cased before validation.
	Enum []string
	// Nullable fields may be null or omitted.
	Nullable bool
}

// Schema is the field list a structured generation must satisfy.
type Schema struct {
	Name   string
	Fields []Field
}

// JSONSchema renders the schema as a JSON Schema document.
func (s *Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]any, 0, len(s.Fields))
	for _, f := range s.Fields {
		var prop map[string]any
		switch f.Type {
		case TypeStringArray:
			prop = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
		default:
			prop = map[string]any{"type": string(f.Type)}
		}
		if f.Nullable {
			prop["type"] = []any{prop["type"], "null"}
		} else {
			required = append(required, f.Name)
		}
		if len(f.Enum) > 0 {
			enum := make([]any, 0, len(f.Enum)+1)
			for _, e := range f.Enum {
				enum = append(enum, strings.ToLower(e))
			}
			if f.Nullable {
				enum = append(enum, nil)
			}
			prop["enum"] = enum
		}
		props[f.Name] = prop
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Instructions renders the schema as prompt text.
func (s *Schema) Instructions() string {
	var b strings.Builder
	b.WriteString("Respond with a single JSON object and nothing else. Fields:\n")
	for _, f := range s.Fields {
		typ := string(f.Type)
		if f.Type == TypeStringArray {
			typ = "array of strings"
		}
		if f.Nullable {
			typ += " or null"
		}
		fmt.Fprintf(&b, "- %q (%s): %s", f.Name, typ, f.Description)
		if len(f.Enum) > 0 {
			fmt.Fprintf(&b, " One of: %s.", strings.Join(f.Enum, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// normalize lower-cases enum strings in place.
func (s *Schema) normalize(doc map[string]any) {
	for _, f := range s.Fields {
		if len(f.Enum) == 0 {
			continue
		}
		if v, ok := doc[f.Name].(string); ok {
			doc[f.Name] = strings.ToLower(strings.TrimSpace(v))
		}
	}
}

// Validate checks doc against the schema.
func (s *Schema) Validate(doc map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(s.JSONSchema()),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return eris.Wrapf(err, "oracle: validate %s", s.Name)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return eris.Errorf("oracle: %s does not match schema: %s", s.Name, strings.Join(msgs, "; "))
}
