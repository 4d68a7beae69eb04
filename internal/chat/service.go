// Package chat runs research conversations: history bookkeeping, tool
// execution, and optional streaming of assistant text.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"crafty/internal/llm"
	"crafty/internal/memory"
	"crafty/internal/skills"
)

// maxToolRounds bounds how many times a single Send may loop through tool
// execution before giving up on the model converging.
const maxToolRounds = 5

type Service struct {
	provider  llm.Provider
	skills    *skills.Manager
	mem       *memory.Store
	sessionID string
	history   []llm.Message
	streamFn  func(string)
}

type ServiceOption func(*Service)

func WithSkills(m *skills.Manager) ServiceOption {
	return func(s *Service) { s.skills = m }
}

func WithMemory(mem *memory.Store, sessionID string) ServiceOption {
	return func(s *Service) {
		s.mem = mem
		s.sessionID = sessionID
	}
}

// WithStreamCallback streams assistant text fragments as they arrive.
func WithStreamCallback(fn func(string)) ServiceOption {
	return func(s *Service) { s.streamFn = fn }
}

func WithSystemPrompt(prompt string) ServiceOption {
	return func(s *Service) {
		s.history = append(s.history, llm.Message{Role: llm.RoleSystem, Content: prompt})
	}
}

func NewService(provider llm.Provider, opts ...ServiceOption) *Service {
	s := &Service{
		provider: provider,
		history:  make([]llm.Message, 0, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send runs one user turn, executing any tools the model requests, and
// returns the final assistant text.
func (s *Service) Send(ctx context.Context, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("empty input")
	}

	mark := len(s.history)
	s.history = append(s.history, llm.Message{Role: llm.RoleUser, Content: input})

	req := llm.Request{Messages: s.contextFor(input)}
	if s.skills != nil {
		req.Tools = s.skills.Schemas()
	}

	for round := 0; round < maxToolRounds; round++ {
		res, err := s.reply(ctx, req)
		if err != nil {
			s.history = s.history[:mark]
			return "", err
		}

		if len(res.ToolCalls) == 0 {
			text := strings.TrimSpace(res.Content)
			if text == "" {
				s.history = s.history[:mark]
				return "", errors.New("empty response from model")
			}
			s.history = append(s.history, llm.Message{Role: llm.RoleAssistant, Content: text})
			return text, nil
		}

		s.history = append(s.history, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   res.Content,
			ToolCalls: res.ToolCalls,
		})
		for _, call := range res.ToolCalls {
			s.history = append(s.history, llm.Message{
				Role:       llm.RoleTool,
				Content:    s.execute(ctx, call),
				ToolCallID: call.ID,
			})
		}
		req.Messages = s.contextFor(input)
	}

	s.history = s.history[:mark]
	return "", fmt.Errorf("model did not converge after %d tool rounds", maxToolRounds)
}

func (s *Service) Clear() {
	// Preserve any leading system prompt.
	kept := s.history[:0]
	for _, m := range s.history {
		if m.Role == llm.RoleSystem {
			kept = append(kept, m)
		}
	}
	s.history = kept
}

// contextFor builds the transcript for one call, injecting remembered
// caption snippets relevant to the current input.
func (s *Service) contextFor(input string) []llm.Message {
	if s.mem == nil {
		return s.history
	}
	snippets := s.mem.Query(s.sessionID, input, 3)
	if len(snippets) == 0 {
		return s.history
	}
	ctxMsg := llm.Message{
		Role:    llm.RoleSystem,
		Content: "Previously retrieved captions that may be relevant:\n- " + strings.Join(snippets, "\n- "),
	}
	out := make([]llm.Message, 0, len(s.history)+1)
	out = append(out, ctxMsg)
	out = append(out, s.history...)
	return out
}

// reply calls the provider, streaming when a callback is configured.
func (s *Service) reply(ctx context.Context, req llm.Request) (*llm.TextResult, error) {
	if s.streamFn == nil {
		return s.provider.GenerateText(ctx, req)
	}

	stream, err := s.provider.StreamText(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var text strings.Builder
	var calls []llm.ToolCall
	finish := ""
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if delta.Content != "" {
			text.WriteString(delta.Content)
			s.streamFn(delta.Content)
		}
		if len(delta.ToolCalls) > 0 {
			calls = delta.ToolCalls
		}
		if delta.FinishReason != "" {
			finish = delta.FinishReason
		}
	}
	return &llm.TextResult{Content: text.String(), ToolCalls: calls, FinishReason: finish}, nil
}

func (s *Service) execute(ctx context.Context, call llm.ToolCall) string {
	if s.skills == nil {
		return fmt.Sprintf("unknown tool %q", call.Name)
	}
	skill, ok := s.skills.Get(call.Name)
	if !ok {
		return fmt.Sprintf("unknown tool %q", call.Name)
	}
	out, err := skill.Execute(ctx, call.Args)
	if err != nil {
		log.Printf("[Chat] skill %s failed: %v", call.Name, err)
		return fmt.Sprintf("tool error: %v", err)
	}
	return out
}
