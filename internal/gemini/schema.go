package gemini

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"

	"github.com/kensei-chat/kensei/internal/tools"
)

// toFunctionDeclarations converts the tool catalog into the provider's
// function declaration format.
func toFunctionDeclarations(decls []tools.Declaration) ([]*genai.FunctionDeclaration, error) {
	out := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		params, err := toGenaiSchema(d.Schema)
		if err != nil {
			return nil, fmt.Errorf("converting schema for %s: %w", d.Name, err)
		}
		out = append(out, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		})
	}
	return out, nil
}

// toGenaiSchema maps the JSON Schema subset produced by struct reflection
// onto the provider's schema type. Only the constructs the tool inputs
// actually use are supported; anything else is an error at registration
// time, not silently dropped.
func toGenaiSchema(s *jsonschema.Schema) (*genai.Schema, error) {
	if s == nil {
		return nil, nil
	}

	out := &genai.Schema{Description: s.Description}

	switch s.Type {
	case "object", "":
		out.Type = genai.TypeObject
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	case "array":
		out.Type = genai.TypeArray
	default:
		return nil, fmt.Errorf("unsupported schema type %q", s.Type)
	}

	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			converted, err := toGenaiSchema(prop)
			if err != nil {
				return nil, fmt.Errorf("property %s: %w", name, err)
			}
			out.Properties[name] = converted
		}
	}
	out.Required = append(out.Required, s.Required...)

	if s.Items != nil {
		items, err := toGenaiSchema(s.Items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = items
	}

	for _, e := range s.Enum {
		str, ok := e.(string)
		if !ok {
			return nil, fmt.Errorf("non-string enum value %v", e)
		}
		out.Enum = append(out.Enum, str)
	}

	return out, nil
}
