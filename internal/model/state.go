package model

import "fmt"

// ValidationOutcome records one scoring pass over the synthesized narrative.
type ValidationOutcome struct {
	Passed            bool    `json:"passed" yaml:"passed"`
	FaithfulnessScore float64 `json:"faithfulness_score" yaml:"faithfulness_score"`
	RelevancyScore    float64 `json:"relevancy_score" yaml:"relevancy_score"`
	Attempt           int     `json:"attempt" yaml:"attempt"`
}

// Usage counts billable oracle traffic for a single run. Judge tokens are
// kept apart because scorers usually run on a cheaper model.
type Usage struct {
	InputTokens       int64 `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens      int64 `json:"output_tokens" yaml:"output_tokens"`
	GenerationCalls   int   `json:"generation_calls" yaml:"generation_calls"`
	JudgeInputTokens  int64 `json:"judge_input_tokens" yaml:"judge_input_tokens"`
	JudgeOutputTokens int64 `json:"judge_output_tokens" yaml:"judge_output_tokens"`
	JudgeCalls        int   `json:"judge_calls" yaml:"judge_calls"`
	BasicSearches     int   `json:"basic_searches" yaml:"basic_searches"`
	AdvancedSearches  int   `json:"advanced_searches" yaml:"advanced_searches"`
}

// Add folds other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.GenerationCalls += other.GenerationCalls
	u.JudgeInputTokens += other.JudgeInputTokens
	u.JudgeOutputTokens += other.JudgeOutputTokens
	u.JudgeCalls += other.JudgeCalls
	u.BasicSearches += other.BasicSearches
	u.AdvancedSearches += other.AdvancedSearches
}

// AsJudge reclassifies generation usage as judge usage.
func (u Usage) AsJudge() Usage {
	return Usage{
		JudgeInputTokens:  u.InputTokens + u.JudgeInputTokens,
		JudgeOutputTokens: u.OutputTokens + u.JudgeOutputTokens,
		JudgeCalls:        u.GenerationCalls + u.JudgeCalls,
		BasicSearches:     u.BasicSearches,
		AdvancedSearches:  u.AdvancedSearches,
	}
}

// TotalTokens sums every token counted.
func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens + u.JudgeInputTokens + u.JudgeOutputTokens
}

// DashboardRow is one metric compared across both tickers.
type DashboardRow struct {
	Metric string `json:"metric" yaml:"metric"`
	A      string `json:"a" yaml:"a"`
	B      string `json:"b" yaml:"b"`
	Better string `json:"better" yaml:"better"`
}

// Dashboard is the deterministic side-by-side table for comparison runs.
type Dashboard struct {
	Tickers [2]string      `json:"tickers" yaml:"tickers"`
	Rows    []DashboardRow `json:"rows" yaml:"rows"`
	Winner  string         `json:"winner" yaml:"winner"`
}

// PipelineState is the record threaded through every stage of one run.
// Log and Errors are append-only.
type PipelineState struct {
	Query      Query                         `json:"query" yaml:"query"`
	Findings   map[string]*PerTickerFindings `json:"findings" yaml:"findings"`
	Log        []string                      `json:"log" yaml:"log"`
	Errors     []string                      `json:"errors" yaml:"errors"`
	Narrative  string                        `json:"narrative,omitempty" yaml:"narrative,omitempty"`
	Dashboard  *Dashboard                    `json:"dashboard,omitempty" yaml:"dashboard,omitempty"`
	Validation *ValidationOutcome            `json:"validation,omitempty" yaml:"validation,omitempty"`
	NeedsRetry bool                          `json:"needs_retry" yaml:"needs_retry"`
	Usage      Usage                         `json:"usage" yaml:"usage"`
}

// NewPipelineState creates the state for a fresh request.
func NewPipelineState(raw string) *PipelineState {
	return &PipelineState{
		Query:    Query{RawText: raw, Mode: ModeSingle},
		Findings: make(map[string]*PerTickerFindings),
		Log:      []string{},
		Errors:   []string{},
	}
}

// Logf appends a progress message.
func (s *PipelineState) Logf(format string, args ...any) {
	s.Log = append(s.Log, fmt.Sprintf(format, args...))
}

// Errorf appends an error description. The message is also mirrored to the log.
func (s *PipelineState) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.Errors = append(s.Errors, msg)
	s.Log = append(s.Log, "ERROR: "+msg)
}

// HasErrors reports whether any error has been recorded.
func (s *PipelineState) HasErrors() bool {
	return len(s.Errors) > 0
}

// Finding returns the findings for ticker, or nil.
func (s *PipelineState) Finding(ticker string) *PerTickerFindings {
	return s.Findings[ticker]
}

// OrderedFindings returns findings in query ticker order, skipping tickers
// that have no record.
func (s *PipelineState) OrderedFindings() []*PerTickerFindings {
	out := make([]*PerTickerFindings, 0, len(s.Query.Tickers))
	for _, t := range s.Query.Tickers {
		if f, ok := s.Findings[t]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Fork returns a view that shares the query and findings records with s but
// collects its own log, errors and usage. Branches may run concurrently as
// long as each writes a disjoint set of findings fields; Merge folds them
// back in a fixed order.
func (s *PipelineState) Fork() *PipelineState {
	return &PipelineState{
		Query:      s.Query,
		Findings:   s.Findings,
		Log:        []string{},
		Errors:     []string{},
		Narrative:  s.Narrative,
		Dashboard:  s.Dashboard,
		Validation: s.Validation,
		NeedsRetry: s.NeedsRetry,
	}
}

// Merge appends the logs, errors and usage of each branch, in argument order.
func (s *PipelineState) Merge(branches ...*PipelineState) {
	for _, b := range branches {
		if b == nil {
			continue
		}
		s.Log = append(s.Log, b.Log...)
		s.Errors = append(s.Errors, b.Errors...)
		s.Usage.Add(b.Usage)
	}
}
