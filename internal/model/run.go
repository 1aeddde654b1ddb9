package model

import "time"

// RunStatus represents the lifecycle state of a research run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusAborted  RunStatus = "aborted"
	RunStatusFailed   RunStatus = "failed"
)

// Run is the persisted audit record of one research request.
type Run struct {
	ID        string     `json:"id"`
	Query     string     `json:"query"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult is the outcome snapshot stored when a run finishes.
type RunResult struct {
	Tickers           []string       `json:"tickers"`
	Mode              AnalysisMode   `json:"mode"`
	Passed            bool           `json:"passed"`
	Attempts          int            `json:"attempts"`
	FaithfulnessScore float64        `json:"faithfulness_score"`
	RelevancyScore    float64        `json:"relevancy_score"`
	ErrorCount        int            `json:"error_count"`
	CostUSD           float64        `json:"cost_usd"`
	DurationMs        int64          `json:"duration_ms"`
	State             *PipelineState `json:"state,omitempty"`
}

// NewRunResult summarizes a finished state.
func NewRunResult(st *PipelineState, costUSD float64, elapsed time.Duration) *RunResult {
	res := &RunResult{
		Tickers:    st.Query.Tickers,
		Mode:       st.Query.Mode,
		ErrorCount: len(st.Errors),
		CostUSD:    costUSD,
		DurationMs: elapsed.Milliseconds(),
		State:      st,
	}
	if v := st.Validation; v != nil {
		res.Passed = v.Passed
		res.Attempts = v.Attempt
		res.FaithfulnessScore = v.FaithfulnessScore
		res.RelevancyScore = v.RelevancyScore
	}
	return res
}

// StatusFor classifies a finished state.
func StatusFor(st *PipelineState) RunStatus {
	if len(st.Query.Tickers) == 0 {
		return RunStatusAborted
	}
	return RunStatusComplete
}

// StageRecord is one executed pipeline step, kept for run audits.
type StageRecord struct {
	ID         string    `json:"id"`
	RunID      string    `json:"run_id"`
	Step       int       `json:"step"`
	Name       string    `json:"name"`
	Next       string    `json:"next"`
	Route      string    `json:"route,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
}
