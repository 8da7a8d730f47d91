package generation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var editSchema = map[string]any{
	"type":     "object",
	"required": []any{"content", "changes"},
	"properties": map[string]any{
		"content": map[string]any{"type": "string", "minLength": 1},
		"changes": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
}

var seoSchema = map[string]any{
	"type":     "object",
	"required": []any{"keywords", "metaTitle", "metaDescription", "score", "suggestions"},
	"properties": map[string]any{
		"keywords": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"metaTitle":       map[string]any{"type": "string"},
		"metaDescription": map[string]any{"type": "string"},
		"score":           map[string]any{"type": "number"},
		"suggestions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
}

// canonicalKeys maps lowercased reply keys to the names the schemas expect,
// so replies using PascalCase or snake_case still validate.
var canonicalKeys = map[string]string{
	"content":          "content",
	"changes":          "changes",
	"keywords":         "keywords",
	"metatitle":        "metaTitle",
	"meta_title":       "metaTitle",
	"metadescription":  "metaDescription",
	"meta_description": "metaDescription",
	"score":            "score",
	"suggestions":      "suggestions",
}

func normalizeKeys(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		if canonical, ok := canonicalKeys[strings.ToLower(key)]; ok {
			out[canonical] = value
			continue
		}
		out[key] = value
	}
	return out
}

// validateJSONSchema validates payload against schema and joins every
// violation into one error.
func validateJSONSchema(payload map[string]any, schema map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(payload)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}
		return fmt.Errorf("validation errors: %s", strings.Join(errors, "; "))
	}
	return nil
}
