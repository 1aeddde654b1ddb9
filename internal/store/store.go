package store

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stock-researcher/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	Ticker       string          `json:"ticker,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitzero"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store persists the run history. Nothing read from it is ever fed back
// into a pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, query string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stages
	RecordStage(ctx context.Context, rec *model.StageRecord) error
	ListStages(ctx context.Context, runID string) ([]model.StageRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// tickerKey encodes tickers so a single LIKE matches one ticker exactly.
func tickerKey(tickers []string) string {
	if len(tickers) == 0 {
		return ""
	}
	return "," + strings.Join(tickers, ",") + ","
}

func tickerPattern(ticker string) string {
	return "%," + strings.ToUpper(strings.TrimSpace(ticker)) + ",%"
}

func listLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
