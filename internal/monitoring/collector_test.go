package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/store"
)

// fakeRuns filters an in-memory run list the way the store does.
type fakeRuns struct {
	runs []model.Run
	err  error
	last store.RunFilter
}

func (f *fakeRuns) ListRuns(_ context.Context, filter store.RunFilter) ([]model.Run, error) {
	f.last = filter
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Run
	for _, r := range f.runs {
		if !filter.CreatedAfter.IsZero() && r.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func validated(passed bool, attempts int, faith, rel, cost float64) *model.RunResult {
	return &model.RunResult{
		Mode:              model.ModeSingle,
		Passed:            passed,
		Attempts:          attempts,
		FaithfulnessScore: faith,
		RelevancyScore:    rel,
		CostUSD:           cost,
		DurationMs:        1000,
	}
}

func TestCollector_Empty(t *testing.T) {
	c := NewCollector(&fakeRuns{})

	snap, err := c.Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Zero(t, snap.RunsTotal)
	assert.Zero(t, snap.FailRate)
	assert.Zero(t, snap.PassRate)
	assert.Zero(t, snap.CostUSD)
	assert.Equal(t, 24, snap.LookbackHours)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_RunMetrics(t *testing.T) {
	now := time.Now().UTC()
	pair := validated(false, 2, 0.5, 0.6, 0.30)
	pair.Mode = model.ModeComparison
	pair.DurationMs = 3000

	runs := &fakeRuns{runs: []model.Run{
		{ID: "1", Status: model.RunStatusComplete, CreatedAt: now.Add(-time.Hour), Result: validated(true, 1, 0.9, 0.8, 0.10)},
		{ID: "2", Status: model.RunStatusComplete, CreatedAt: now.Add(-2 * time.Hour), Result: pair},
		{ID: "3", Status: model.RunStatusAborted, CreatedAt: now.Add(-3 * time.Hour), Result: &model.RunResult{CostUSD: 0.002, DurationMs: 500}},
		{ID: "4", Status: model.RunStatusFailed, CreatedAt: now.Add(-4 * time.Hour)},
		{ID: "5", Status: model.RunStatusRunning, CreatedAt: now.Add(-time.Minute)},
		// Outside the window.
		{ID: "6", Status: model.RunStatusFailed, CreatedAt: now.Add(-48 * time.Hour)},
	}}

	snap, err := NewCollector(runs).Collect(context.Background(), 24)
	require.NoError(t, err)

	assert.Equal(t, 5, snap.RunsTotal)
	assert.Equal(t, 2, snap.RunsComplete)
	assert.Equal(t, 1, snap.RunsAborted)
	assert.Equal(t, 1, snap.RunsFailed)
	assert.Equal(t, 1, snap.RunsRunning)
	assert.InDelta(t, 1.0/3.0, snap.FailRate, 1e-9)

	assert.Equal(t, 2, snap.Validated)
	assert.Equal(t, 1, snap.Retried)
	assert.InDelta(t, 0.5, snap.PassRate, 1e-9)
	assert.InDelta(t, 0.7, snap.AvgFaithfulness, 1e-9)
	assert.InDelta(t, 0.7, snap.AvgRelevancy, 1e-9)
	assert.Equal(t, 1, snap.ComparisonRuns)

	assert.InDelta(t, 0.402, snap.CostUSD, 1e-9)
	assert.InDelta(t, 0.134, snap.AvgCostUSD, 1e-9)
	assert.Equal(t, int64(1500), snap.AvgDurationMs)
}

func TestCollector_ZeroLookbackCoversAll(t *testing.T) {
	runs := &fakeRuns{runs: []model.Run{
		{ID: "old", Status: model.RunStatusComplete, CreatedAt: time.Now().Add(-90 * 24 * time.Hour)},
	}}

	snap, err := NewCollector(runs).Collect(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.RunsTotal)
	assert.True(t, runs.last.CreatedAfter.IsZero())
}

func TestCollector_ListError(t *testing.T) {
	c := NewCollector(&fakeRuns{err: errors.New("db down")})

	_, err := c.Collect(context.Background(), 24)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list runs")
}
