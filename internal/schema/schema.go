package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema describes the JSON shape a structured-output call must produce.
type Schema struct {
	// Name labels the schema in the provider request (required by
	// json_schema response formats).
	Name string
	// Definition is a standard JSON-schema document.
	Definition map[string]any
}

// Validate checks a decoded value against the schema and returns a single
// error summarizing all violations.
func (s *Schema) Validate(value any) error {
	loader := gojsonschema.NewGoLoader(s.Definition)
	doc := gojsonschema.NewGoLoader(value)

	result, err := gojsonschema.Validate(loader, doc)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("value does not match schema %q: %s", s.Name, strings.Join(msgs, "; "))
}
