package model

import "strings"

// MaxTickers is the most tickers a single query may carry.
const MaxTickers = 2

// AnalysisMode selects between a single-stock report and a side-by-side comparison.
type AnalysisMode string

const (
	ModeSingle     AnalysisMode = "single"
	ModeComparison AnalysisMode = "comparison"
)

// Query is the structured form of a user's research request.
type Query struct {
	RawText string       `json:"raw_text" yaml:"raw_text"`
	Tickers []string     `json:"tickers" yaml:"tickers"`
	Mode    AnalysisMode `json:"mode" yaml:"mode"`
}

// NewQuery builds a Query from extracted tickers. Tickers are upper-cased,
// deduplicated in first-seen order and capped at MaxTickers. The mode is
// comparison iff more than one ticker survives.
func NewQuery(raw string, tickers []string) Query {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, MaxTickers)
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(t, "$")))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == MaxTickers {
			break
		}
	}

	mode := ModeSingle
	if len(out) > 1 {
		mode = ModeComparison
	}

	return Query{RawText: raw, Tickers: out, Mode: mode}
}

// IsComparison reports whether the query compares two tickers.
func (q Query) IsComparison() bool {
	return q.Mode == ModeComparison
}
