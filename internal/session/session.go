// Package session holds the mutable research blocks that backend actions
// report progress into. Blocks are owned by the store; actions only see the
// narrow Updater contract so tests can substitute their own implementation.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
)

const (
	StepSearching     = "searching"
	StepSearchResults = "search_results"
)

// SubStep is one UI-visible progress entry inside a research block.
type SubStep struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Query     string `json:"query,omitempty"`
	Results   any    `json:"results,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// BlockData is the patchable payload of a block. SubSteps is replaced
// wholesale by patch ops targeting /data/subSteps.
type BlockData struct {
	SubSteps []SubStep `json:"subSteps"`
}

// Block is a unit of research state shown to the user.
type Block struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data BlockData `json:"data"`
}

// PatchOp is a single RFC 6902 operation.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

// Updater is the contract actions depend on for progress reporting.
type Updater interface {
	GetBlock(id string) (*Block, bool)
	UpdateBlock(id string, ops []PatchOp) error
}

// Store keeps blocks in memory as JSON documents so patches apply the same
// way they would against a persisted representation.
type Store struct {
	mu     sync.RWMutex
	blocks map[string]json.RawMessage
}

func NewStore() *Store {
	return &Store{blocks: make(map[string]json.RawMessage)}
}

// CreateBlock registers a new empty block of the given type and returns it.
func (s *Store) CreateBlock(blockType string) (*Block, error) {
	b := &Block{
		ID:   uuid.NewString(),
		Type: blockType,
		Data: BlockData{SubSteps: []SubStep{}},
	}
	doc, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal block: %w", err)
	}
	s.mu.Lock()
	s.blocks[b.ID] = doc
	s.mu.Unlock()
	return b, nil
}

func (s *Store) GetBlock(id string) (*Block, bool) {
	s.mu.RLock()
	doc, ok := s.blocks[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	var b Block
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, false
	}
	return &b, true
}

// UpdateBlock applies the ops to the stored document. Each call applies
// atomically under the store lock.
func (s *Store) UpdateBlock(id string, ops []PatchOp) error {
	raw, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	patch, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return fmt.Errorf("decode patch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.blocks[id]
	if !ok {
		return fmt.Errorf("unknown block %s", id)
	}
	updated, err := patch.Apply(doc)
	if err != nil {
		return fmt.Errorf("apply patch to block %s: %w", id, err)
	}
	s.blocks[id] = updated
	return nil
}

// NewSubStep builds a sub-step with a fresh id and current timestamp.
func NewSubStep(stepType, query string, results any) SubStep {
	return SubStep{
		ID:        uuid.NewString(),
		Type:      stepType,
		Query:     query,
		Results:   results,
		Timestamp: time.Now().Unix(),
	}
}
