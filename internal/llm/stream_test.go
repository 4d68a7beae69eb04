package llm

import "testing"

func TestAccumulatorJoinsFragmentsByIndex(t *testing.T) {
	acc := newToolCallAccumulator()
	acc.add(0, "call_1", "caption_search", `{"a":1`)

	snap := acc.snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 call, got %d", len(snap))
	}
	// Incomplete JSON still yields a usable snapshot.
	if snap[0].Args["a"] != float64(1) {
		t.Fatalf("expected partial parse of a=1, got %#v", snap[0].Args)
	}

	acc.add(0, "", "", `,"b":2}`)
	snap = acc.snapshot()
	if snap[0].Args["a"] != float64(1) || snap[0].Args["b"] != float64(2) {
		t.Fatalf("expected joined object {a:1,b:2}, got %#v", snap[0].Args)
	}
	if snap[0].ID != "call_1" || snap[0].Name != "caption_search" {
		t.Fatalf("identity lost across chunks: %#v", snap[0])
	}
}

func TestAccumulatorMalformedArgsYieldEmptyObject(t *testing.T) {
	acc := newToolCallAccumulator()
	acc.add(0, "call_1", "caption_search", "")

	snap := acc.snapshot()
	if len(snap) != 1 || len(snap[0].Args) != 0 {
		t.Fatalf("expected empty-object fallback, got %#v", snap)
	}
}

func TestAccumulatorPreservesStreamOrder(t *testing.T) {
	acc := newToolCallAccumulator()
	acc.add(1, "call_2", "second", `{}`)
	acc.add(0, "call_1", "first", `{}`)

	snap := acc.snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(snap))
	}
	if snap[0].Name != "second" || snap[1].Name != "first" {
		t.Fatalf("expected arrival order preserved, got %#v", snap)
	}
}

func TestMergeOptionsPerCallPrecedence(t *testing.T) {
	temp := 0.2
	topP := 0.9
	maxTokens := 100
	base := Options{Temperature: &temp, TopP: &topP, MaxTokens: &maxTokens}

	override := 0.7
	merged := mergeOptions(base, &Options{Temperature: &override, Stop: []string{"END"}})

	if *merged.Temperature != 0.7 {
		t.Fatalf("expected per-call temperature to win, got %v", *merged.Temperature)
	}
	if *merged.TopP != 0.9 || *merged.MaxTokens != 100 {
		t.Fatalf("expected defaults preserved, got %#v", merged)
	}
	if len(merged.Stop) != 1 || merged.Stop[0] != "END" {
		t.Fatalf("expected stop sequence from call, got %#v", merged.Stop)
	}
}
