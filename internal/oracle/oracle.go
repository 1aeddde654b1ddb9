// Package oracle defines the narrow contracts for the external services the
// pipeline depends on (text generation, web search, scoring) and the adapters
// that normalize each provider's response shape.
package oracle

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stock-researcher/internal/model"
)

var (
	// ErrEmptyResponse is returned when a provider answers with no usable content.
	ErrEmptyResponse = eris.New("oracle: empty response")
	// ErrTimeout is returned when a call exceeds its per-call deadline.
	ErrTimeout = eris.New("oracle: call timed out")
)

// GenerateRequest is a prompt for the text-generation oracle.
type GenerateRequest struct {
	System    string
	Prompt    string
	MaxTokens int64
	// Schema, when set, asks for a JSON object with these fields.
	Schema *Schema
}

// Generation is the normalized text-generation response.
type Generation struct {
	Text  string
	Usage model.Usage
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)
}

// SearchDepth trades latency for recall.
type SearchDepth string

const (
	DepthBasic    SearchDepth = "basic"
	DepthAdvanced SearchDepth = "advanced"
)

// SearchRequest is a query for the web-search oracle.
type SearchRequest struct {
	Query      string
	Depth      SearchDepth
	MaxResults int
}

// SearchResult is one ranked document.
type SearchResult struct {
	Title   string
	URL     string
	Content string
}

// SearchResponse is the normalized search response.
type SearchResponse struct {
	Answer  string
	Results []SearchResult
}

// Searcher runs web searches.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// ScoreRequest asks a scorer to grade Output for Input against Context.
type ScoreRequest struct {
	Input     string
	Output    string
	Context   []string
	Threshold float64
}

// Score is a [0,1] grade and its verdict at the requested threshold.
type Score struct {
	Value  float64
	Passed bool
	Reason string
	Usage  model.Usage
}

// Scorer grades generated text.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (*Score, error)
}
