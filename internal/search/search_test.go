package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"crafty/internal/session"
)

func archiveServer(t *testing.T, hits []searchHit) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Limit <= 0 {
			t.Fatalf("expected fixed limit in request, got %d", req.Limit)
		}
		json.NewEncoder(w).Encode(searchResponse{
			Query:   req.Query,
			Results: hits,
			Total:   len(hits),
		})
	}))
}

func TestRunMapsHitsToChunks(t *testing.T) {
	srv := archiveServer(t, []searchHit{
		{ID: "c1", Content: "sun's out, puns out", FolderName: "summer_beach_posts", Platform: "instagram", ImageCount: 3, Score: 0.91},
		{ID: "c2", Content: "spooky season", FolderName: "halloween_2024", Holiday: "halloween", ImageCount: 1, Score: 0.84},
	})
	defer srv.Close()

	a := NewAction(srv.URL, 10, 0.5, nil)
	out := a.Run(context.Background(), "beach captions", "")

	if out.Type != ResultType {
		t.Fatalf("expected type %q, got %q", ResultType, out.Type)
	}
	if len(out.Results) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(out.Results))
	}
	first := out.Results[0]
	if first.Metadata.Title != "CraftyPanda: summer beach posts" {
		t.Fatalf("unexpected title %q", first.Metadata.Title)
	}
	if first.Metadata.URL != "craftypanda://caption/c1" {
		t.Fatalf("unexpected url %q", first.Metadata.URL)
	}
	if first.Metadata.Platform != "instagram" || first.Metadata.ImageCount != 3 {
		t.Fatalf("metadata not carried through: %#v", first.Metadata)
	}
	if out.Results[1].Metadata.Holiday != "halloween" {
		t.Fatalf("expected holiday tag, got %#v", out.Results[1].Metadata)
	}
}

func TestRunUnconfiguredEndpoint(t *testing.T) {
	a := NewAction("", 10, 0.5, nil)
	out := a.Run(context.Background(), "anything", "")
	if out.Type != ResultType || len(out.Results) != 0 {
		t.Fatalf("expected empty search_results, got %#v", out)
	}
}

func TestRunServerErrorReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAction(srv.URL, 10, 0.5, nil)
	out := a.Run(context.Background(), "anything", "")
	if len(out.Results) != 0 {
		t.Fatalf("expected empty results on 500, got %d", len(out.Results))
	}
}

func TestRunUnreachableReturnsEmpty(t *testing.T) {
	a := NewAction("http://127.0.0.1:1", 10, 0.5, nil)
	out := a.Run(context.Background(), "anything", "")
	if out.Type != ResultType || len(out.Results) != 0 {
		t.Fatalf("expected empty search_results, got %#v", out)
	}
}

func TestRunMalformedResponseReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	a := NewAction(srv.URL, 10, 0.5, nil)
	out := a.Run(context.Background(), "anything", "")
	if len(out.Results) != 0 {
		t.Fatalf("expected empty results on decode failure, got %d", len(out.Results))
	}
}

func TestRunAppendsTwoSubSteps(t *testing.T) {
	srv := archiveServer(t, []searchHit{
		{ID: "c1", Content: "hello fall", FolderName: "fall_posts", Score: 0.7},
	})
	defer srv.Close()

	store := session.NewStore()
	block, err := store.CreateBlock("research")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := NewAction(srv.URL, 5, 0.4, store)
	a.Run(context.Background(), "fall captions", block.ID)

	got, _ := store.GetBlock(block.ID)
	if len(got.Data.SubSteps) != 2 {
		t.Fatalf("expected exactly 2 sub-steps, got %d", len(got.Data.SubSteps))
	}
	if got.Data.SubSteps[0].Type != session.StepSearching {
		t.Fatalf("expected first step searching, got %s", got.Data.SubSteps[0].Type)
	}
	if got.Data.SubSteps[1].Type != session.StepSearchResults {
		t.Fatalf("expected second step search_results, got %s", got.Data.SubSteps[1].Type)
	}
	if got.Data.SubSteps[0].Query != "fall captions" {
		t.Fatalf("expected query recorded, got %q", got.Data.SubSteps[0].Query)
	}
}

func TestRunUnknownBlockStillSearches(t *testing.T) {
	srv := archiveServer(t, []searchHit{
		{ID: "c1", Content: "x", FolderName: "f", Score: 0.5},
	})
	defer srv.Close()

	a := NewAction(srv.URL, 5, 0.4, session.NewStore())
	out := a.Run(context.Background(), "q", "no-such-block")
	if len(out.Results) != 1 {
		t.Fatalf("expected search to proceed without a block, got %#v", out)
	}
}
