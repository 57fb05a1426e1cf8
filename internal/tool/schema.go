package tool

import (
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

func validate(name string, schema *gojsonschema.Schema, args map[string]any) error {
	res, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return &SchemaError{Tool: name, Violations: []string{err.Error()}}
	}
	if res.Valid() {
		return nil
	}

	violations := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		violations = append(violations, e.String())
	}
	sort.Strings(violations)
	return &SchemaError{Tool: name, Violations: violations}
}

// property is a schema property of a primitive type.
func property(typ, description string) map[string]any {
	return map[string]any{
		"type":        typ,
		"description": description,
	}
}

// objectSchema builds an object schema from properties and required names.
func objectSchema(properties map[string]any, required ...string) Schema {
	s := Schema{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}
