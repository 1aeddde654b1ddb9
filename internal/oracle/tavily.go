package oracle

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stock-researcher/internal/resilience"
	"github.com/sells-group/stock-researcher/pkg/tavily"
)

// TavilySearcher adapts the Tavily client to Searcher.
type TavilySearcher struct {
	client tavily.Client
}

// NewTavilySearcher wraps client.
func NewTavilySearcher(client tavily.Client) *TavilySearcher {
	return &TavilySearcher{client: client}
}

// Search runs one query. Results with no content are dropped.
func (s *TavilySearcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	depth := tavily.DepthBasic
	if req.Depth == DepthAdvanced {
		depth = tavily.DepthAdvanced
	}

	resp, err := s.client.Search(ctx, tavily.SearchRequest{
		Query:         req.Query,
		SearchDepth:   depth,
		MaxResults:    req.MaxResults,
		IncludeAnswer: true,
	})
	if err != nil {
		var apiErr *tavily.APIError
		if errors.As(err, &apiErr) && resilience.IsTransientStatus(apiErr.StatusCode) {
			return nil, resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return nil, eris.Wrap(err, "oracle: search")
	}

	out := &SearchResponse{Answer: strings.TrimSpace(resp.Answer)}
	for _, r := range resp.Results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		out.Results = append(out.Results, SearchResult{
			Title:   strings.TrimSpace(r.Title),
			URL:     r.URL,
			Content: content,
		})
	}
	if len(out.Results) == 0 && out.Answer == "" {
		return out, ErrEmptyResponse
	}
	return out, nil
}
