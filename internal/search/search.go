// Package search implements the caption_search backend action against the
// CraftyPanda archive's vector-search endpoint.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"crafty/internal/session"
)

const (
	// ResultType tags the action output for the UI.
	ResultType = "search_results"

	titlePrefix = "CraftyPanda: "
	urlScheme   = "craftypanda://caption/"
)

// ChunkMetadata carries the source attribution for one caption hit.
type ChunkMetadata struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Platform   string  `json:"platform,omitempty"`
	Holiday    string  `json:"holiday,omitempty"`
	ImageCount int     `json:"imageCount"`
	Score      float64 `json:"score"`
}

// Chunk is a unit of searchable caption content. Immutable once built.
type Chunk struct {
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Results is what the action always returns, empty or not.
type Results struct {
	Type    string  `json:"type"`
	Results []Chunk `json:"results"`
}

type searchRequest struct {
	Query     string  `json:"query"`
	Limit     int     `json:"limit"`
	Threshold float64 `json:"threshold"`
}

type searchHit struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	FolderName string  `json:"folderName"`
	Platform   string  `json:"platform,omitempty"`
	Holiday    string  `json:"holiday,omitempty"`
	ImageCount int     `json:"imageCount"`
	Score      float64 `json:"score"`
}

type searchResponse struct {
	Query   string      `json:"query"`
	Results []searchHit `json:"results"`
	Total   int         `json:"total"`
}

// Action queries the caption archive. All failure modes degrade to an empty
// result set; Run never reports an error to the caller.
type Action struct {
	endpoint  string
	limit     int
	threshold float64
	client    *http.Client
	session   session.Updater
}

// NewAction builds the action. endpoint may be empty, in which case every
// query short-circuits to an empty result. sess may be nil when no research
// block should receive progress updates.
func NewAction(endpoint string, limit int, threshold float64, sess session.Updater) *Action {
	return &Action{
		endpoint:  strings.TrimRight(endpoint, "/"),
		limit:     limit,
		threshold: threshold,
		client:    &http.Client{Timeout: 15 * time.Second},
		session:   sess,
	}
}

// Run searches the caption archive. If blockID names a known research block,
// a "searching" sub-step is appended before the call and a "search_results"
// sub-step after it.
func (a *Action) Run(ctx context.Context, query, blockID string) Results {
	out := Results{Type: ResultType, Results: []Chunk{}}

	if a.endpoint == "" {
		log.Printf("[CaptionSearch] endpoint not configured, returning empty results")
		return out
	}

	a.appendSubStep(blockID, session.NewSubStep(session.StepSearching, query, nil))
	defer func() {
		a.appendSubStep(blockID, session.NewSubStep(session.StepSearchResults, query, out.Results))
	}()

	hits, err := a.query(ctx, query)
	if err != nil {
		log.Printf("[CaptionSearch] query %q failed: %v", query, err)
		return out
	}

	chunks := make([]Chunk, 0, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, chunkFromHit(hit))
	}
	out.Results = chunks
	return out
}

func (a *Action) query(ctx context.Context, query string) ([]searchHit, error) {
	body, err := json.Marshal(searchRequest{
		Query:     query,
		Limit:     a.limit,
		Threshold: a.threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return decoded.Results, nil
}

func chunkFromHit(hit searchHit) Chunk {
	return Chunk{
		Content: hit.Content,
		Metadata: ChunkMetadata{
			Title:      titlePrefix + strings.ReplaceAll(hit.FolderName, "_", " "),
			URL:        urlScheme + hit.ID,
			Platform:   hit.Platform,
			Holiday:    hit.Holiday,
			ImageCount: hit.ImageCount,
			Score:      hit.Score,
		},
	}
}

// appendSubStep records a progress entry on the research block via a replace
// patch on /data/subSteps. Missing blocks and patch failures are logged and
// otherwise ignored so UI bookkeeping can never break a search.
func (a *Action) appendSubStep(blockID string, step session.SubStep) {
	if a.session == nil || blockID == "" {
		return
	}
	block, ok := a.session.GetBlock(blockID)
	if !ok {
		return
	}
	steps := append(block.Data.SubSteps, step)
	err := a.session.UpdateBlock(blockID, []session.PatchOp{
		{Op: "replace", Path: "/data/subSteps", Value: steps},
	})
	if err != nil {
		log.Printf("[CaptionSearch] failed to update block %s: %v", blockID, err)
	}
}
