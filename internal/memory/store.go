package memory

import (
	"sort"
	"strings"
	"sync"

	"crafty/internal/search"
)

// Store keeps caption chunks retrieved during a research session and serves
// short, token-efficient snippets back to the chat service via a lexical
// overlap score.
type Store struct {
	mu     sync.RWMutex
	chunks map[string][]search.Chunk // session -> retrieved chunks
}

func NewStore() *Store {
	return &Store{chunks: make(map[string][]search.Chunk)}
}

// Index records the chunks a search returned for this session.
func (s *Store) Index(sessionID string, chunks []search.Chunk) {
	if len(chunks) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[sessionID] = append(s.chunks[sessionID], chunks...)
}

// Query returns up to k snippets ranked by token overlap with the query.
// Each snippet carries its source title so the model can cite it.
func (s *Store) Query(sessionID, query string, k int) []string {
	s.mu.RLock()
	chunks := s.chunks[sessionID]
	s.mu.RUnlock()
	if len(chunks) == 0 || strings.TrimSpace(query) == "" || k <= 0 {
		return nil
	}

	qset := tokenSet(query)
	type scored struct {
		snippet string
		score   int
	}
	var sc []scored
	for _, c := range chunks {
		if c.Content == "" {
			continue
		}
		score := overlap(qset, tokenSet(c.Metadata.Title+" "+c.Content))
		if score > 0 {
			sc = append(sc, scored{
				snippet: c.Metadata.Title + ": " + c.Content,
				score:   score,
			})
		}
	}
	if len(sc) == 0 {
		return nil
	}
	sort.Slice(sc, func(i, j int) bool {
		if sc[i].score == sc[j].score {
			return len(sc[i].snippet) < len(sc[j].snippet)
		}
		return sc[i].score > sc[j].score
	})
	if len(sc) > k {
		sc = sc[:k]
	}
	out := make([]string, 0, len(sc))
	for _, s := range sc {
		out = append(out, s.snippet)
	}
	return out
}

func tokenSet(s string) map[string]struct{} {
	parts := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, ".,;:!?()[]{}\"'")
		if len(p) < 2 {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	count := 0
	for k := range a {
		if _, ok := b[k]; ok {
			count++
		}
	}
	return count
}
