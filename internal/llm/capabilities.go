package llm

// Capabilities is an explicit per-model descriptor resolved at configuration
// time. Adapters consult it instead of sniffing model-name substrings on
// every call.
type Capabilities struct {
	// Tools reports whether the model accepts tool definitions.
	Tools bool `json:"tools"`
	// StructuredOutput reports whether the API can enforce a JSON schema
	// on the response. Models without it get the degraded JSON-object
	// mode with the schema inlined into the system instruction.
	StructuredOutput bool `json:"structured_output"`
}

// DefaultCapabilities returns the conservative baseline for a backend when
// the config file does not pin a model explicitly.
func DefaultCapabilities(backend Backend) Capabilities {
	switch backend {
	case BackendOpenAI:
		return Capabilities{Tools: true, StructuredOutput: true}
	case BackendOllama:
		// Local models vary; tool calling usually works through the
		// OpenAI-compatible layer, schema enforcement does not.
		return Capabilities{Tools: true, StructuredOutput: false}
	default:
		return Capabilities{}
	}
}
