package session

import "testing"

func TestCreateAndGetBlock(t *testing.T) {
	s := NewStore()
	b, err := s.CreateBlock("research")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := s.GetBlock(b.ID)
	if !ok {
		t.Fatalf("expected block %s to exist", b.ID)
	}
	if got.Type != "research" {
		t.Fatalf("expected type research, got %s", got.Type)
	}
	if got.Data.SubSteps == nil || len(got.Data.SubSteps) != 0 {
		t.Fatalf("expected empty subSteps, got %#v", got.Data.SubSteps)
	}
}

func TestGetBlockUnknown(t *testing.T) {
	s := NewStore()
	if _, ok := s.GetBlock("nope"); ok {
		t.Fatalf("expected missing block")
	}
}

func TestUpdateBlockReplacesSubSteps(t *testing.T) {
	s := NewStore()
	b, err := s.CreateBlock("research")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps := []SubStep{NewSubStep(StepSearching, "beach captions", nil)}
	err = s.UpdateBlock(b.ID, []PatchOp{
		{Op: "replace", Path: "/data/subSteps", Value: steps},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := s.GetBlock(b.ID)
	if len(got.Data.SubSteps) != 1 {
		t.Fatalf("expected 1 sub-step, got %d", len(got.Data.SubSteps))
	}
	if got.Data.SubSteps[0].Type != StepSearching {
		t.Fatalf("expected searching step, got %s", got.Data.SubSteps[0].Type)
	}
	if got.Data.SubSteps[0].Query != "beach captions" {
		t.Fatalf("expected query preserved, got %q", got.Data.SubSteps[0].Query)
	}
}

func TestUpdateBlockUnknownID(t *testing.T) {
	s := NewStore()
	err := s.UpdateBlock("missing", []PatchOp{
		{Op: "replace", Path: "/data/subSteps", Value: []SubStep{}},
	})
	if err == nil {
		t.Fatalf("expected error for unknown block")
	}
}
