package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stock-researcher/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func sampleResult(tickers ...string) *model.RunResult {
	st := model.NewPipelineState("Compare AAPL and MSFT")
	st.Query = model.NewQuery(st.Query.RawText, tickers)
	st.Narrative = "AAPL leads on sentiment."
	st.Validation = &model.ValidationOutcome{Passed: true, FaithfulnessScore: 0.91, RelevancyScore: 0.88, Attempt: 1}
	return model.NewRunResult(st, 0.0421, 12*time.Second)
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "Analyze NVDA")
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusRunning, run.Status)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, "Analyze NVDA", got.Query)
		assert.Equal(t, model.RunStatusRunning, got.Status)
		assert.Nil(t, got.Result)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("UpdateRunStatus", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "Analyze")
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed, "step limit"))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Equal(t, "step limit", got.Error)
	})

	t.Run("UpdateRunStatusNotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed, "")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("UpdateRunResult", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "Compare AAPL and MSFT")
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, sampleResult("AAPL", "MSFT")))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		require.NotNil(t, got.Result)
		assert.Equal(t, []string{"AAPL", "MSFT"}, got.Result.Tickers)
		assert.Equal(t, model.ModeComparison, got.Result.Mode)
		assert.True(t, got.Result.Passed)
		assert.InDelta(t, 0.91, got.Result.FaithfulnessScore, 1e-9)
		assert.InDelta(t, 0.0421, got.Result.CostUSD, 1e-9)
		require.NotNil(t, got.Result.State)
		assert.Equal(t, "AAPL leads on sentiment.", got.Result.State.Narrative)
	})

	t.Run("ListRunsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		nvda, err := s.CreateRun(ctx, "Analyze NVDA")
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunResult(ctx, nvda.ID, model.RunStatusComplete, sampleResult("NVDA")))

		pair, err := s.CreateRun(ctx, "Compare AAPL and MSFT")
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunResult(ctx, pair.ID, model.RunStatusComplete, sampleResult("AAPL", "MSFT")))

		aborted, err := s.CreateRun(ctx, "hello")
		require.NoError(t, err)
		require.NoError(t, s.UpdateRunStatus(ctx, aborted.ID, model.RunStatusAborted, ""))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
		require.NoError(t, err)
		assert.Len(t, complete, 2)

		msft, err := s.ListRuns(ctx, RunFilter{Ticker: "msft"})
		require.NoError(t, err)
		require.Len(t, msft, 1)
		assert.Equal(t, pair.ID, msft[0].ID)

		// "MS" must not match "MSFT".
		ms, err := s.ListRuns(ctx, RunFilter{Ticker: "MS"})
		require.NoError(t, err)
		assert.Empty(t, ms)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		future, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Empty(t, future)
	})

	t.Run("Stages", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, "Analyze NVDA")
		require.NoError(t, err)

		for i, name := range []string{"parse", "gather", "analyze"} {
			rec := &model.StageRecord{RunID: run.ID, Step: i, Name: name, Next: "x", DurationMs: int64(10 * i)}
			require.NoError(t, s.RecordStage(ctx, rec))
			assert.NotEmpty(t, rec.ID)
		}

		stages, err := s.ListStages(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, stages, 3)
		assert.Equal(t, "parse", stages[0].Name)
		assert.Equal(t, "analyze", stages[2].Name)
		assert.Equal(t, int64(20), stages[2].DurationMs)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestTickerKey(t *testing.T) {
	assert.Equal(t, "", tickerKey(nil))
	assert.Equal(t, ",AAPL,MSFT,", tickerKey([]string{"AAPL", "MSFT"}))
	assert.Equal(t, "%,NVDA,%", tickerPattern(" nvda "))
	assert.Equal(t, 100, listLimit(0))
	assert.Equal(t, 5, listLimit(5))
}
