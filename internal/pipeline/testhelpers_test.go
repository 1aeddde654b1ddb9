package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/oracle"
	oraclemocks "github.com/sells-group/stock-researcher/internal/oracle/mocks"
)

var errOracleDown = eris.New("oracle unavailable")

// script is a deterministic stand-in for the generation oracle. It answers
// by schema name and, for per-ticker analyses, by the ticker in the prompt.
type script struct {
	mu sync.Mutex

	query    string
	queryErr error

	sentiment map[string]string
	risk      map[string]string
	failures  map[string]error // keyed "sentiment:AAPL", "risk:AAPL"

	narratives []string
	synthErr   error

	synthPrompts []string
	calls        map[string]int
}

func newScript() *script {
	return &script{
		sentiment: make(map[string]string),
		risk:      make(map[string]string),
		failures:  make(map[string]error),
		calls:     make(map[string]int),
	}
}

func usage() model.Usage {
	return model.Usage{InputTokens: 100, OutputTokens: 20, GenerationCalls: 1}
}

func (s *script) generate(_ context.Context, req oracle.GenerateRequest) (*oracle.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := "synthesis"
	if req.Schema != nil {
		kind = req.Schema.Name
	} else if strings.HasPrefix(req.Prompt, "Compile") {
		kind = "compile"
	}
	s.calls[kind]++

	switch kind {
	case "query":
		if s.queryErr != nil {
			return nil, s.queryErr
		}
		return &oracle.Generation{Text: s.query, Usage: usage()}, nil
	case "sentiment", "risk":
		docs := s.sentiment
		if kind == "risk" {
			docs = s.risk
		}
		for ticker, doc := range docs {
			if !strings.Contains(req.Prompt, " for "+ticker+".") {
				continue
			}
			if err := s.failures[kind+":"+ticker]; err != nil {
				return nil, err
			}
			return &oracle.Generation{Text: doc, Usage: usage()}, nil
		}
		return nil, fmt.Errorf("script: no %s response for prompt", kind)
	case "compile":
		return &oracle.Generation{Text: "compiled evidence", Usage: usage()}, nil
	default:
		s.synthPrompts = append(s.synthPrompts, req.Prompt)
		if s.synthErr != nil {
			return nil, s.synthErr
		}
		n := len(s.synthPrompts) - 1
		if n >= len(s.narratives) {
			n = len(s.narratives) - 1
		}
		return &oracle.Generation{Text: s.narratives[n], Usage: usage()}, nil
	}
}

func (s *script) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

func sentimentJSON(label string, confidence float64, quality string, events ...string) string {
	quoted := make([]string, len(events))
	for i, e := range events {
		quoted[i] = fmt.Sprintf("%q", e)
	}
	return fmt.Sprintf(`{"label":%q,"notable_events":[%s],"summary":"News flow is %s.","confidence":%g,"data_quality":%q}`,
		label, strings.Join(quoted, ","), label, confidence, quality)
}

func riskJSON(score float64, volatility string, beta string, confidence float64, completeness string) string {
	return fmt.Sprintf(`{"volatility":%q,"beta":%s,"risk_factors":["competition","valuation"],"risk_score":%g,"confidence":%g,"completeness":%q}`,
		volatility, beta, score, confidence, completeness)
}

// scorerSeq returns scores from values in order, repeating the last.
type scorerSeq struct {
	mu     sync.Mutex
	values []float64
	err    error
	reqs   []oracle.ScoreRequest
}

func (s *scorerSeq) score(_ context.Context, req oracle.ScoreRequest) (*oracle.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return &oracle.Score{}, s.err
	}
	n := len(s.reqs) - 1
	if n >= len(s.values) {
		n = len(s.values) - 1
	}
	v := s.values[n]
	return &oracle.Score{
		Value:  v,
		Passed: v >= req.Threshold,
		Usage:  model.Usage{InputTokens: 50, OutputTokens: 10, GenerationCalls: 1},
	}, nil
}

func (s *scorerSeq) requests() []oracle.ScoreRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]oracle.ScoreRequest(nil), s.reqs...)
}

type harness struct {
	script       *script
	faithfulness *scorerSeq
	relevancy    *scorerSeq
	failSearch   map[string]bool
	searches     *oraclemocks.MockSearcher
}

func newHarness() *harness {
	return &harness{
		script:       newScript(),
		faithfulness: &scorerSeq{values: []float64{0.9}},
		relevancy:    &scorerSeq{values: []float64{0.9}},
		failSearch:   make(map[string]bool),
	}
}

func (h *harness) search(_ context.Context, req oracle.SearchRequest) (*oracle.SearchResponse, error) {
	ticker := strings.Fields(req.Query)[0]
	if h.failSearch[ticker] {
		return nil, errOracleDown
	}
	return &oracle.SearchResponse{
		Answer: ticker + " trades near its 52-week high.",
		Results: []oracle.SearchResult{
			{Title: ticker + " beats earnings", URL: "https://news.example.com/" + ticker, Content: ticker + " reported record revenue. Beta 1.2."},
			{Title: ticker + " market cap", URL: "https://quotes.example.com/" + ticker, Content: ticker + " P/E ratio 30."},
		},
	}, nil
}

func (h *harness) deps(t *testing.T) Deps {
	t.Helper()
	gen := oraclemocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, mock.Anything).Return(h.script.generate).Maybe()

	h.searches = oraclemocks.NewMockSearcher(t)
	h.searches.On("Search", mock.Anything, mock.Anything).Return(h.search).Maybe()

	faith := oraclemocks.NewMockScorer(t)
	faith.On("Score", mock.Anything, mock.Anything).Return(h.faithfulness.score).Maybe()
	rel := oraclemocks.NewMockScorer(t)
	rel.On("Score", mock.Anything, mock.Anything).Return(h.relevancy.score).Maybe()

	return Deps{Generator: gen, Searcher: h.searches, Faithfulness: faith, Relevancy: rel}
}

func (h *harness) pipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg, h.deps(t))
	require.NoError(t, err)
	return p
}

// singleHarness is a healthy "Analyze NVDA" setup that passes validation.
func singleHarness() *harness {
	h := newHarness()
	h.script.query = `{"tickers":["NVDA"],"is_comparison":false}`
	h.script.sentiment["NVDA"] = sentimentJSON("positive", 0.9, "high", "Record data center revenue")
	h.script.risk["NVDA"] = riskJSON(6, "high", "1.7", 0.85, "complete")
	h.script.narratives = []string{"NVDA shows strong momentum on record data center revenue with high volatility."}
	return h
}

// pairHarness is a healthy "Compare AAPL and MSFT" setup.
func pairHarness() *harness {
	h := newHarness()
	h.script.query = `{"tickers":["AAPL","MSFT"],"is_comparison":true}`
	h.script.sentiment["AAPL"] = sentimentJSON("positive", 0.9, "high", "Services growth")
	h.script.sentiment["MSFT"] = sentimentJSON("neutral", 0.8, "medium", "Cloud spending")
	h.script.risk["AAPL"] = riskJSON(3, "low", "1.1", 0.9, "complete")
	h.script.risk["MSFT"] = riskJSON(4, "medium", "0.9", 0.9, "complete")
	h.script.narratives = []string{"AAPL edges MSFT on sentiment with lower risk."}
	return h
}

func hasEntry(entries []string, substr string) bool {
	for _, e := range entries {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}
