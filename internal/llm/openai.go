package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"crafty/internal/jsonx"
	"crafty/internal/schema"
)

// OpenAIAdapter speaks the chat-completions API (OpenAI or any compatible
// endpoint behind a custom base URL).
type OpenAIAdapter struct {
	client   *openai.Client
	model    string
	caps     Capabilities
	defaults Options
}

func NewOpenAIAdapter(cfg AdapterConfig) (*OpenAIAdapter, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &OpenAIAdapter{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		caps:     cfg.Caps,
		defaults: cfg.Defaults,
	}, nil
}

// GenerateText performs a plain completion, returning the first choice's
// text plus any tool calls with parsed argument objects.
func (a *OpenAIAdapter) GenerateText(ctx context.Context, req Request) (*TextResult, error) {
	resp, err := a.client.CreateChatCompletion(ctx, a.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	choice := resp.Choices[0]
	calls := make([]ToolCall, 0, len(choice.Message.ToolCalls))
	for _, tc := range choice.Message.ToolCalls {
		calls = append(calls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
			Args:      jsonx.ParsePartial(tc.Function.Arguments),
		})
	}

	return &TextResult{
		Content:      choice.Message.Content,
		ToolCalls:    calls,
		FinishReason: string(choice.FinishReason),
	}, nil
}

// StreamText opens a streaming completion. Tool-call arguments accumulate
// across chunks sharing the same stream index and are re-parsed tolerantly
// on every chunk; the stream terminates only on the API's finish marker.
func (a *OpenAIAdapter) StreamText(ctx context.Context, req Request) (*TextStream, error) {
	upstream, err := a.client.CreateChatCompletionStream(ctx, a.buildRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	acc := newToolCallAccumulator()
	done := false

	return &TextStream{
		close: upstream.Close,
		next: func() (*TextDelta, error) {
			if done {
				return nil, io.EOF
			}
			for {
				resp, err := upstream.Recv()
				if errors.Is(err, io.EOF) {
					done = true
					return nil, io.EOF
				}
				if err != nil {
					return nil, fmt.Errorf("receive chunk: %w", err)
				}
				if len(resp.Choices) == 0 {
					continue
				}

				choice := resp.Choices[0]
				for _, tc := range choice.Delta.ToolCalls {
					idx := 0
					if tc.Index != nil {
						idx = *tc.Index
					}
					acc.add(idx, tc.ID, tc.Function.Name, tc.Function.Arguments)
				}

				delta := &TextDelta{
					Content:   choice.Delta.Content,
					ToolCalls: acc.snapshot(),
				}
				if terminal(choice.FinishReason) {
					delta.FinishReason = string(choice.FinishReason)
					done = true
				}
				return delta, nil
			}
		},
	}, nil
}

// GenerateObject requests a response conforming to the schema. Models with
// structured-output support get the schema as an enforced response format;
// others get it inlined into the system instruction with plain JSON-object
// mode, where validation failures degrade to the best-effort object.
func (a *OpenAIAdapter) GenerateObject(ctx context.Context, req Request, s *schema.Schema) (map[string]any, error) {
	apiReq, err := a.buildObjectRequest(req, s)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}

	obj, err := jsonx.ParseObject(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parse response object: %w", err)
	}
	return a.checkSchema(obj, s)
}

// StreamObject streams the response text, yielding a tolerant partial parse
// per chunk. A parse failure on the completed text is fatal.
func (a *OpenAIAdapter) StreamObject(ctx context.Context, req Request, s *schema.Schema) (*ObjectStream, error) {
	apiReq, err := a.buildObjectRequest(req, s)
	if err != nil {
		return nil, err
	}
	upstream, err := a.client.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	var buf strings.Builder
	done := false

	return &ObjectStream{
		close: upstream.Close,
		next: func() (map[string]any, error) {
			if done {
				return nil, io.EOF
			}
			for {
				resp, err := upstream.Recv()
				if errors.Is(err, io.EOF) {
					done = true
					return nil, io.EOF
				}
				if err != nil {
					return nil, fmt.Errorf("receive chunk: %w", err)
				}
				if len(resp.Choices) == 0 {
					continue
				}

				choice := resp.Choices[0]
				buf.WriteString(choice.Delta.Content)

				if terminal(choice.FinishReason) {
					done = true
					obj, err := jsonx.ParseObject(buf.String())
					if err != nil {
						return nil, fmt.Errorf("parse final response object: %w", err)
					}
					return a.checkSchema(obj, s)
				}
				return jsonx.ParsePartial(buf.String()), nil
			}
		},
	}, nil
}

func (a *OpenAIAdapter) buildRequest(req Request, includeTools bool) openai.ChatCompletionRequest {
	opts := mergeOptions(a.defaults, req.Options)

	out := openai.ChatCompletionRequest{
		Model:    a.model,
		Messages: convertMessages(req.Messages),
	}
	if opts.Temperature != nil {
		out.Temperature = float32(*opts.Temperature)
	}
	if opts.TopP != nil {
		out.TopP = float32(*opts.TopP)
	}
	if opts.MaxTokens != nil {
		out.MaxTokens = *opts.MaxTokens
	}
	if len(opts.Stop) > 0 {
		out.Stop = opts.Stop
	}
	if opts.FrequencyPenalty != nil {
		out.FrequencyPenalty = float32(*opts.FrequencyPenalty)
	}
	if opts.PresencePenalty != nil {
		out.PresencePenalty = float32(*opts.PresencePenalty)
	}

	if includeTools && a.caps.Tools && len(req.Tools) > 0 {
		tools := make([]openai.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		out.Tools = tools
	}
	return out
}

func (a *OpenAIAdapter) buildObjectRequest(req Request, s *schema.Schema) (openai.ChatCompletionRequest, error) {
	if s == nil {
		return openai.ChatCompletionRequest{}, errors.New("schema is required")
	}

	if a.caps.StructuredOutput {
		apiReq := a.buildRequest(req, false)
		raw, err := json.Marshal(s.Definition)
		if err != nil {
			return openai.ChatCompletionRequest{}, fmt.Errorf("marshal schema: %w", err)
		}
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   s.Name,
				Schema: json.RawMessage(raw),
				Strict: true,
			},
		}
		return apiReq, nil
	}

	// Degraded mode: the schema rides along in the system instruction and
	// the API only guarantees syntactically valid JSON.
	shaped := req
	shaped.Messages = withSchemaInstruction(req.Messages, s)
	apiReq := a.buildRequest(shaped, false)
	apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	return apiReq, nil
}

// checkSchema validates the parsed object. Enforced mode propagates a
// violation; degraded mode logs it and returns the object anyway.
func (a *OpenAIAdapter) checkSchema(obj map[string]any, s *schema.Schema) (map[string]any, error) {
	err := s.Validate(obj)
	if err == nil {
		return obj, nil
	}
	if a.caps.StructuredOutput {
		return nil, err
	}
	log.Printf("[LLM] degraded structured output for model %s: %v", a.model, err)
	return obj, nil
}

func convertMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		case RoleAssistant:
			converted := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: m.Content,
			}
			for _, tc := range m.ToolCalls {
				converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, converted)
		default:
			out = append(out, openai.ChatCompletionMessage{
				Role:    string(m.Role),
				Content: m.Content,
			})
		}
	}
	return out
}

// withSchemaInstruction extends the transcript's system instruction with the
// serialized schema, prepending a new system message when none exists.
func withSchemaInstruction(msgs []Message, s *schema.Schema) []Message {
	def, err := json.Marshal(s.Definition)
	if err != nil {
		def = []byte("{}")
	}
	instruction := fmt.Sprintf(
		"Respond with a single JSON object that conforms to this JSON schema:\n%s",
		string(def),
	)

	out := make([]Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if out[i].Role == RoleSystem {
			out[i].Content = out[i].Content + "\n\n" + instruction
			return out
		}
	}
	return append([]Message{{Role: RoleSystem, Content: instruction}}, out...)
}

// terminal reports whether the API marked the chunk as final. The wire
// value is null until completion.
func terminal(reason openai.FinishReason) bool {
	return reason != "" && reason != openai.FinishReasonNull
}
