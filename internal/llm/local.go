package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"crafty/internal/jsonx"
	"crafty/internal/schema"
)

// LocalAdapter runs against an Ollama server through LangChain Go. Local
// models cannot enforce an output schema, so both object modes always use
// the degraded JSON-object path regardless of the capability descriptor.
type LocalAdapter struct {
	client   *ollama.LLM
	model    string
	caps     Capabilities
	defaults Options
}

func NewLocalAdapter(cfg AdapterConfig) (*LocalAdapter, error) {
	var opts []ollama.Option
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}
	return &LocalAdapter{
		client:   client,
		model:    cfg.Model,
		caps:     cfg.Caps,
		defaults: cfg.Defaults,
	}, nil
}

func (a *LocalAdapter) GenerateText(ctx context.Context, req Request) (*TextResult, error) {
	resp, err := a.client.GenerateContent(ctx, convertHistory(req.Messages), a.callOptions(req, false)...)
	if err != nil {
		return nil, err
	}
	return firstChoice(resp)
}

// StreamText bridges LangChain Go's callback streaming into a pull stream.
// Ollama does not surface per-chunk tool-call deltas; any tool calls arrive
// on the terminal delta together with the finish reason.
func (a *LocalAdapter) StreamText(ctx context.Context, req Request) (*TextStream, error) {
	return a.stream(ctx, req, false)
}

func (a *LocalAdapter) stream(ctx context.Context, req Request, jsonMode bool) (*TextStream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	events := make(chan localEvent)

	opts := a.callOptions(req, jsonMode)
	opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		select {
		case events <- localEvent{content: string(chunk)}:
			return nil
		case <-streamCtx.Done():
			return streamCtx.Err()
		}
	}))

	go func() {
		defer close(events)
		resp, err := a.client.GenerateContent(streamCtx, convertHistory(req.Messages), opts...)
		if err != nil {
			select {
			case events <- localEvent{err: err}:
			case <-streamCtx.Done():
			}
			return
		}
		final, err := firstChoice(resp)
		select {
		case events <- localEvent{final: final, err: err}:
		case <-streamCtx.Done():
		}
	}()

	done := false
	return &TextStream{
		close: func() error {
			cancel()
			return nil
		},
		next: func() (*TextDelta, error) {
			if done {
				return nil, io.EOF
			}
			ev, ok := <-events
			if !ok {
				done = true
				return nil, io.EOF
			}
			if ev.err != nil {
				done = true
				return nil, ev.err
			}
			if ev.final != nil {
				done = true
				reason := ev.final.FinishReason
				if reason == "" {
					reason = "stop"
				}
				return &TextDelta{
					ToolCalls:    ev.final.ToolCalls,
					FinishReason: reason,
				}, nil
			}
			return &TextDelta{Content: ev.content}, nil
		},
	}, nil
}

func (a *LocalAdapter) GenerateObject(ctx context.Context, req Request, s *schema.Schema) (map[string]any, error) {
	if s == nil {
		return nil, errors.New("schema is required")
	}
	msgs := withSchemaInstruction(req.Messages, s)
	shaped := req
	shaped.Messages = msgs

	opts := a.callOptions(shaped, true)
	resp, err := a.client.GenerateContent(ctx, convertHistory(msgs), opts...)
	if err != nil {
		return nil, err
	}
	choice, err := firstChoice(resp)
	if err != nil {
		return nil, err
	}
	obj, err := jsonx.ParseObject(choice.Content)
	if err != nil {
		return nil, fmt.Errorf("parse response object: %w", err)
	}
	if err := s.Validate(obj); err != nil {
		log.Printf("[LLM] degraded structured output for model %s: %v", a.model, err)
	}
	return obj, nil
}

func (a *LocalAdapter) StreamObject(ctx context.Context, req Request, s *schema.Schema) (*ObjectStream, error) {
	if s == nil {
		return nil, errors.New("schema is required")
	}
	shaped := req
	shaped.Messages = withSchemaInstruction(req.Messages, s)

	inner, err := a.stream(ctx, shaped, true)
	if err != nil {
		return nil, err
	}

	var buf strings.Builder
	done := false
	return &ObjectStream{
		close: inner.Close,
		next: func() (map[string]any, error) {
			if done {
				return nil, io.EOF
			}
			delta, err := inner.Recv()
			if errors.Is(err, io.EOF) {
				done = true
				return nil, io.EOF
			}
			if err != nil {
				done = true
				return nil, err
			}
			buf.WriteString(delta.Content)
			if delta.FinishReason != "" {
				done = true
				obj, err := jsonx.ParseObject(buf.String())
				if err != nil {
					return nil, fmt.Errorf("parse final response object: %w", err)
				}
				if verr := s.Validate(obj); verr != nil {
					log.Printf("[LLM] degraded structured output for model %s: %v", a.model, verr)
				}
				return obj, nil
			}
			return jsonx.ParsePartial(buf.String()), nil
		},
	}, nil
}

type localEvent struct {
	content string
	final   *TextResult
	err     error
}

func (a *LocalAdapter) callOptions(req Request, jsonMode bool) []llms.CallOption {
	merged := mergeOptions(a.defaults, req.Options)

	opts := make([]llms.CallOption, 0, 10)
	opts = append(opts, llms.WithModel(a.model))
	if merged.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*merged.Temperature))
	}
	if merged.TopP != nil {
		opts = append(opts, llms.WithTopP(*merged.TopP))
	}
	if merged.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*merged.MaxTokens))
	}
	if len(merged.Stop) > 0 {
		opts = append(opts, llms.WithStopWords(merged.Stop))
	}
	if merged.FrequencyPenalty != nil {
		opts = append(opts, llms.WithFrequencyPenalty(*merged.FrequencyPenalty))
	}
	if merged.PresencePenalty != nil {
		opts = append(opts, llms.WithPresencePenalty(*merged.PresencePenalty))
	}
	if jsonMode {
		opts = append(opts, llms.WithJSONMode())
	}
	if a.caps.Tools && len(req.Tools) > 0 {
		tools := make([]llms.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, llms.Tool{
				Type: "function",
				Function: &llms.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		opts = append(opts, llms.WithTools(tools))
	}
	return opts
}

func firstChoice(resp *llms.ContentResponse) (*TextResult, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}
	choice := resp.Choices[0]

	calls := make([]ToolCall, 0, len(choice.ToolCalls))
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall == nil {
			continue
		}
		calls = append(calls, ToolCall{
			ID:        tc.ID,
			Name:      tc.FunctionCall.Name,
			Arguments: tc.FunctionCall.Arguments,
			Args:      jsonx.ParsePartial(tc.FunctionCall.Arguments),
		})
	}

	return &TextResult{
		Content:      choice.Content,
		ToolCalls:    calls,
		FinishReason: choice.StopReason,
	}, nil
}

func convertHistory(history []Message) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		case RoleSystem:
			messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		case RoleAssistant:
			var parts []llms.ContentPart
			if m.Content != "" {
				parts = append(parts, llms.TextPart(m.Content))
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, llms.ToolCall{
					ID:   tc.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			if len(parts) == 0 {
				parts = append(parts, llms.TextPart(" "))
			}
			messages = append(messages, llms.MessageContent{
				Role:  llms.ChatMessageTypeAI,
				Parts: parts,
			})
		case RoleTool:
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: m.ToolCallID,
						Content:    m.Content,
					},
				},
			})
		}
	}
	return messages
}
