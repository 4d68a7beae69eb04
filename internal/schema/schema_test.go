package schema

import "testing"

func captionSchema() *Schema {
	return &Schema{
		Name: "caption_summary",
		Definition: map[string]any{
			"type":     "object",
			"required": []any{"title", "count"},
			"properties": map[string]any{
				"title": map[string]any{"type": "string"},
				"count": map[string]any{"type": "integer"},
			},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	s := captionSchema()
	err := s.Validate(map[string]any{"title": "fall crafts", "count": float64(3)})
	if err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateRejectsMissingField(t *testing.T) {
	s := captionSchema()
	if err := s.Validate(map[string]any{"title": "fall crafts"}); err == nil {
		t.Fatalf("expected violation for missing count")
	}
}

func TestValidateRejectsWrongType(t *testing.T) {
	s := captionSchema()
	if err := s.Validate(map[string]any{"title": 12, "count": float64(3)}); err == nil {
		t.Fatalf("expected violation for non-string title")
	}
}
