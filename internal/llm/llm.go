// Package llm normalizes chat/completion calls against third-party model
// APIs. Adapters translate the internal request shape into whatever the
// provider expects and translate the response (or response stream) back.
package llm

import (
	"context"
	"fmt"

	"crafty/internal/schema"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is a structured invocation request emitted by the model.
type ToolCall struct {
	ID   string
	Name string

	// Arguments is the serialized payload exactly as received.
	Arguments string
	// Args is the parsed argument object. Malformed argument text parses
	// to an empty object rather than failing the call.
	Args map[string]any
}

// Message is one entry of a chat transcript, constructed per call from the
// caller's conversation history.
type Message struct {
	Role    Role
	Content string

	// ToolCalls is set on assistant messages that invoked tools.
	ToolCalls []ToolCall
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
}

// ToolSchema describes one tool the model may call.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Options are generation parameters. Nil fields fall back to the adapter's
// defaults; set fields take precedence per call.
type Options struct {
	Temperature      *float64
	TopP             *float64
	MaxTokens        *int
	Stop             []string
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// Request is the provider-independent call description.
type Request struct {
	Messages []Message
	Tools    []ToolSchema
	Options  *Options
}

// TextResult is the normalized non-streaming completion.
type TextResult struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Provider is implemented by each adapter. Streams must be closed by the
// caller; discarding one stops chunk consumption but does not terminate the
// remote stream until the context ends.
type Provider interface {
	GenerateText(ctx context.Context, req Request) (*TextResult, error)
	StreamText(ctx context.Context, req Request) (*TextStream, error)
	GenerateObject(ctx context.Context, req Request, s *schema.Schema) (map[string]any, error)
	StreamObject(ctx context.Context, req Request, s *schema.Schema) (*ObjectStream, error)
}

type Backend string

const (
	BackendOpenAI Backend = "openai"
	BackendOllama Backend = "ollama"
)

// AdapterConfig carries everything an adapter needs, resolved once at
// configuration time.
type AdapterConfig struct {
	Model    string
	BaseURL  string
	APIKey   string
	Defaults Options
	Caps     Capabilities
}

// NewProvider builds the adapter for a configured backend.
func NewProvider(backend Backend, cfg AdapterConfig) (Provider, error) {
	switch backend {
	case BackendOpenAI:
		return NewOpenAIAdapter(cfg)
	case BackendOllama:
		return NewLocalAdapter(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}

// mergeOptions layers per-call options over adapter defaults.
func mergeOptions(base Options, override *Options) Options {
	out := base
	if override == nil {
		return out
	}
	if override.Temperature != nil {
		out.Temperature = override.Temperature
	}
	if override.TopP != nil {
		out.TopP = override.TopP
	}
	if override.MaxTokens != nil {
		out.MaxTokens = override.MaxTokens
	}
	if len(override.Stop) > 0 {
		out.Stop = override.Stop
	}
	if override.FrequencyPenalty != nil {
		out.FrequencyPenalty = override.FrequencyPenalty
	}
	if override.PresencePenalty != nil {
		out.PresencePenalty = override.PresencePenalty
	}
	return out
}
