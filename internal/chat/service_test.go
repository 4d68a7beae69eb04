package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"crafty/internal/llm"
	"crafty/internal/schema"
	"crafty/internal/skills"
)

// scriptedProvider returns canned results in order.
type scriptedProvider struct {
	results []*llm.TextResult
	calls   int
}

func (p *scriptedProvider) GenerateText(ctx context.Context, req llm.Request) (*llm.TextResult, error) {
	if p.calls >= len(p.results) {
		return nil, errors.New("no more scripted results")
	}
	res := p.results[p.calls]
	p.calls++
	return res, nil
}

func (p *scriptedProvider) StreamText(ctx context.Context, req llm.Request) (*llm.TextStream, error) {
	return nil, errors.New("not scripted")
}

func (p *scriptedProvider) GenerateObject(ctx context.Context, req llm.Request, s *schema.Schema) (map[string]any, error) {
	return nil, errors.New("not scripted")
}

func (p *scriptedProvider) StreamObject(ctx context.Context, req llm.Request, s *schema.Schema) (*llm.ObjectStream, error) {
	return nil, errors.New("not scripted")
}

type echoSkill struct{ invoked bool }

func (e *echoSkill) Name() string        { return "echo" }
func (e *echoSkill) Description() string { return "echoes its input" }
func (e *echoSkill) Parameters() map[string]any {
	return map[string]any{"type": "object"}
}
func (e *echoSkill) Execute(ctx context.Context, args map[string]any) (string, error) {
	e.invoked = true
	v, _ := args["text"].(string)
	return "echo: " + v, nil
}

func TestSendPlainReply(t *testing.T) {
	p := &scriptedProvider{results: []*llm.TextResult{
		{Content: "hello there", FinishReason: "stop"},
	}}
	s := NewService(p)

	got, err := s.Send(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello there" {
		t.Fatalf("expected reply, got %q", got)
	}
}

func TestSendEmptyInput(t *testing.T) {
	s := NewService(&scriptedProvider{})
	if _, err := s.Send(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestSendExecutesToolCalls(t *testing.T) {
	p := &scriptedProvider{results: []*llm.TextResult{
		{
			ToolCalls: []llm.ToolCall{{
				ID:   "call_1",
				Name: "echo",
				Args: map[string]any{"text": "ping"},
			}},
			FinishReason: "tool_calls",
		},
		{Content: "the tool said: echo: ping", FinishReason: "stop"},
	}}

	mgr := skills.NewManager()
	sk := &echoSkill{}
	mgr.Register(sk)

	s := NewService(p, WithSkills(mgr))
	got, err := s.Send(context.Background(), "use the tool")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sk.invoked {
		t.Fatalf("expected skill to run")
	}
	if !strings.Contains(got, "echo: ping") {
		t.Fatalf("unexpected reply %q", got)
	}
	if p.calls != 2 {
		t.Fatalf("expected 2 provider calls, got %d", p.calls)
	}
}

func TestSendUnknownToolRecovers(t *testing.T) {
	p := &scriptedProvider{results: []*llm.TextResult{
		{
			ToolCalls:    []llm.ToolCall{{ID: "c", Name: "missing", Args: map[string]any{}}},
			FinishReason: "tool_calls",
		},
		{Content: "done without the tool", FinishReason: "stop"},
	}}
	s := NewService(p, WithSkills(skills.NewManager()))

	got, err := s.Send(context.Background(), "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "done without the tool" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestSendErrorRollsBackHistory(t *testing.T) {
	p := &scriptedProvider{}
	s := NewService(p)
	if _, err := s.Send(context.Background(), "hi"); err == nil {
		t.Fatalf("expected provider error")
	}
	if len(s.history) != 0 {
		t.Fatalf("expected history rolled back, got %d entries", len(s.history))
	}
}

func TestClearKeepsSystemPrompt(t *testing.T) {
	p := &scriptedProvider{results: []*llm.TextResult{{Content: "ok", FinishReason: "stop"}}}
	s := NewService(p, WithSystemPrompt("you are a caption researcher"))

	if _, err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Clear()
	if len(s.history) != 1 || s.history[0].Role != llm.RoleSystem {
		t.Fatalf("expected only the system prompt to survive, got %#v", s.history)
	}
}
