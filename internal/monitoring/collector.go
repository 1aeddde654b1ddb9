package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/store"
)

// RunLister is the part of store.Store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// MetricsSnapshot holds a point-in-time view of research run health.
type MetricsSnapshot struct {
	RunsTotal    int `json:"runs_total" yaml:"runs_total"`
	RunsComplete int `json:"runs_complete" yaml:"runs_complete"`
	RunsAborted  int `json:"runs_aborted" yaml:"runs_aborted"`
	RunsFailed   int `json:"runs_failed" yaml:"runs_failed"`
	RunsRunning  int `json:"runs_running" yaml:"runs_running"`

	// FailRate is failed / (complete + failed). Aborted runs are bad input,
	// not failures.
	FailRate float64 `json:"fail_rate" yaml:"fail_rate"`
	// PassRate is the share of validated runs whose summary passed.
	PassRate        float64 `json:"pass_rate" yaml:"pass_rate"`
	Validated       int     `json:"validated" yaml:"validated"`
	Retried         int     `json:"retried" yaml:"retried"`
	AvgFaithfulness float64 `json:"avg_faithfulness" yaml:"avg_faithfulness"`
	AvgRelevancy    float64 `json:"avg_relevancy" yaml:"avg_relevancy"`
	ComparisonRuns  int     `json:"comparison_runs" yaml:"comparison_runs"`

	CostUSD       float64 `json:"cost_usd" yaml:"cost_usd"`
	AvgCostUSD    float64 `json:"avg_cost_usd" yaml:"avg_cost_usd"`
	AvgDurationMs int64   `json:"avg_duration_ms" yaml:"avg_duration_ms"`

	LookbackHours int       `json:"lookback_hours" yaml:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at" yaml:"collected_at"`
}

// Collector summarizes stored runs.
type Collector struct {
	runs RunLister
}

// NewCollector creates a new run statistics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs}
}

// Collect gathers a snapshot over the given lookback window. A window of
// zero or less covers all stored runs.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	filter := store.RunFilter{Limit: 10000}
	if lookbackHours > 0 {
		filter.CreatedAfter = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}
	runs, err := c.runs.ListRuns(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var (
		faithSum, relSum float64
		durationSum      int64
		withResult       int
		passed           int
	)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusAborted:
			snap.RunsAborted++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}

		res := r.Result
		if res == nil {
			continue
		}
		withResult++
		snap.CostUSD += res.CostUSD
		durationSum += res.DurationMs
		if res.Mode == model.ModeComparison {
			snap.ComparisonRuns++
		}
		if res.Attempts > 0 {
			snap.Validated++
			faithSum += res.FaithfulnessScore
			relSum += res.RelevancyScore
			if res.Passed {
				passed++
			}
			if res.Attempts > 1 {
				snap.Retried++
			}
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if withResult > 0 {
		snap.AvgCostUSD = snap.CostUSD / float64(withResult)
		snap.AvgDurationMs = durationSum / int64(withResult)
	}
	if snap.Validated > 0 {
		snap.PassRate = float64(passed) / float64(snap.Validated)
		snap.AvgFaithfulness = faithSum / float64(snap.Validated)
		snap.AvgRelevancy = relSum / float64(snap.Validated)
	}
	return snap, nil
}
