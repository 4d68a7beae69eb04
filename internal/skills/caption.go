package skills

import (
	"context"
	"encoding/json"
	"fmt"

	"crafty/internal/memory"
	"crafty/internal/search"
)

// CaptionSearchSkill exposes the caption archive search as a model tool.
// The action never fails, so the skill never surfaces an error either; an
// unreachable archive just produces an empty result set.
type CaptionSearchSkill struct {
	action  *search.Action
	mem     *memory.Store
	session string
	blockID string
}

func NewCaptionSearchSkill(action *search.Action, mem *memory.Store, sessionID, blockID string) *CaptionSearchSkill {
	return &CaptionSearchSkill{
		action:  action,
		mem:     mem,
		session: sessionID,
		blockID: blockID,
	}
}

func (s *CaptionSearchSkill) Name() string { return "caption_search" }

func (s *CaptionSearchSkill) Description() string {
	return "Searches the CraftyPanda archive of historical social-media captions. Returns matching caption chunks with source metadata."
}

func (s *CaptionSearchSkill) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Free-text description of the captions to find.",
			},
		},
		"required": []string{"query"},
	}
}

func (s *CaptionSearchSkill) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", fmt.Errorf("query is required")
	}

	results := s.action.Run(ctx, query, s.blockID)
	if s.mem != nil {
		s.mem.Index(s.session, results.Results)
	}

	out, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(out), nil
}
