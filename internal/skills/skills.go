package skills

import (
	"context"

	"crafty/internal/llm"
)

// Skill defines a backend action the model can invoke as a tool.
type Skill interface {
	// Name returns the unique tool name (e.g. "caption_search").
	Name() string
	// Description returns a human-readable description for the model.
	Description() string
	// Parameters returns the JSON schema for the arguments as a map.
	Parameters() map[string]any
	// Execute runs the skill with the given arguments.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Manager holds the available skills.
type Manager struct {
	skills map[string]Skill
}

func NewManager() *Manager {
	return &Manager{skills: make(map[string]Skill)}
}

func (m *Manager) Register(s Skill) {
	m.skills[s.Name()] = s
}

func (m *Manager) Get(name string) (Skill, bool) {
	s, ok := m.skills[name]
	return s, ok
}

func (m *Manager) List() []Skill {
	list := make([]Skill, 0, len(m.skills))
	for _, s := range m.skills {
		list = append(list, s)
	}
	return list
}

// Schemas converts every registered skill into the adapter's tool shape.
func (m *Manager) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(m.skills))
	for _, s := range m.skills {
		out = append(out, llm.ToolSchema{
			Name:        s.Name(),
			Description: s.Description(),
			Parameters:  s.Parameters(),
		})
	}
	return out
}
