package memory

import (
	"testing"

	"crafty/internal/search"
)

func chunk(title, content string) search.Chunk {
	return search.Chunk{
		Content:  content,
		Metadata: search.ChunkMetadata{Title: title},
	}
}

func TestQueryRanksByOverlap(t *testing.T) {
	s := NewStore()
	s.Index("sess", []search.Chunk{
		chunk("CraftyPanda: beach posts", "sunny beach captions for summer"),
		chunk("CraftyPanda: winter posts", "cozy cabin captions for winter"),
	})

	got := s.Query("sess", "summer beach captions", 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(got))
	}
	if got[0] != "CraftyPanda: beach posts: sunny beach captions for summer" {
		t.Fatalf("unexpected snippet %q", got[0])
	}
}

func TestQueryEmptySession(t *testing.T) {
	s := NewStore()
	if got := s.Query("nope", "anything", 3); got != nil {
		t.Fatalf("expected nil for unknown session, got %#v", got)
	}
}

func TestQueryNoOverlap(t *testing.T) {
	s := NewStore()
	s.Index("sess", []search.Chunk{chunk("CraftyPanda: beach", "sunny days")})
	if got := s.Query("sess", "zzz qqq", 3); got != nil {
		t.Fatalf("expected nil when nothing matches, got %#v", got)
	}
}
