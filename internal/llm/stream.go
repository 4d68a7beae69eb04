package llm

import (
	"strings"

	"crafty/internal/jsonx"
)

// TextDelta is one streaming update. Content is the incremental fragment;
// ToolCalls is the current best-effort snapshot of every tool call seen so
// far, ordered by stream position.
type TextDelta struct {
	Content   string
	ToolCalls []ToolCall
	// FinishReason is empty until the API reports the terminal chunk.
	FinishReason string
}

// TextStream is a lazy, finite, non-restartable sequence of deltas.
// Recv returns io.EOF after the terminal delta. Callers must Close.
type TextStream struct {
	next  func() (*TextDelta, error)
	close func() error
}

func (s *TextStream) Recv() (*TextDelta, error) { return s.next() }

func (s *TextStream) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// ObjectStream yields successive partial parses of the accumulating response
// text. Intermediate parse failures yield an empty object; a parse failure
// on the terminal chunk is returned as an error.
type ObjectStream struct {
	next  func() (map[string]any, error)
	close func() error
}

func (s *ObjectStream) Recv() (map[string]any, error) { return s.next() }

func (s *ObjectStream) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// toolCallAccumulator reassembles tool calls from streamed fragments. The
// API identifies a call only by its stream index while it is in flight;
// argument text concatenates across chunks sharing that index. Indices are
// kept as an explicit ordered map, never a sparse list.
type toolCallAccumulator struct {
	order []int
	calls map[int]*toolCallState
}

type toolCallState struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{calls: make(map[int]*toolCallState)}
}

// add folds one fragment into the call at the given stream index.
func (a *toolCallAccumulator) add(index int, id, name, argsFragment string) {
	st, ok := a.calls[index]
	if !ok {
		st = &toolCallState{}
		a.calls[index] = st
		a.order = append(a.order, index)
	}
	if id != "" {
		st.id = id
	}
	if name != "" {
		st.name = name
	}
	st.args.WriteString(argsFragment)
}

// snapshot re-parses every accumulated argument payload, tolerating
// incomplete JSON. Malformed text yields an empty object for that call.
func (a *toolCallAccumulator) snapshot() []ToolCall {
	if len(a.order) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		st := a.calls[idx]
		raw := st.args.String()
		out = append(out, ToolCall{
			ID:        st.id,
			Name:      st.name,
			Arguments: raw,
			Args:      jsonx.ParsePartial(raw),
		})
	}
	return out
}
