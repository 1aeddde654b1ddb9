// Package pipeline runs a research request through the parse, gather,
// analyze, synthesize and validate stages.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sells-group/stock-researcher/internal/cost"
	"github.com/sells-group/stock-researcher/internal/graph"
	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/monitoring"
	"github.com/sells-group/stock-researcher/internal/oracle"
	"github.com/sells-group/stock-researcher/internal/store"
	"github.com/sells-group/stock-researcher/internal/tracing"
	"github.com/sells-group/stock-researcher/pkg/quote"
)

// Stage names, as they appear in logs, metrics and stage records.
const (
	StageParse      = "parse"
	StageGather     = "gather"
	StageAnalyze    = "analyze"
	StageSentiment  = "sentiment"
	StageRisk       = "risk"
	StageSynthesize = "synthesize"
	StageValidate   = "validate"
)

// Config tunes stage thresholds and flow.
type Config struct {
	ConfidenceThreshold           float64
	FaithfulnessThreshold         float64
	RelevancyThreshold            float64
	AnalysisFaithfulnessThreshold float64
	MaxTickers                    int
	SearchDepth                   oracle.SearchDepth
	SearchMaxResults              int
	ParallelAnalysis              bool
	CompileEvidence               bool
	MaxSteps                      int
	// QuoteTimeout bounds each market snapshot lookup.
	QuoteTimeout time.Duration
	// GenerationModel and JudgeModel price usage; they do not select models.
	GenerationModel string
	JudgeModel      string
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold:           0.7,
		FaithfulnessThreshold:         0.7,
		RelevancyThreshold:            0.7,
		AnalysisFaithfulnessThreshold: 0.7,
		MaxTickers:                    model.MaxTickers,
		SearchDepth:                   oracle.DepthAdvanced,
		SearchMaxResults:              7,
		ParallelAnalysis:              true,
		MaxSteps:                      graph.DefaultMaxSteps,
		QuoteTimeout:                  60 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxTickers <= 0 || c.MaxTickers > model.MaxTickers {
		c.MaxTickers = d.MaxTickers
	}
	if c.SearchDepth == "" {
		c.SearchDepth = d.SearchDepth
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = d.SearchMaxResults
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = d.MaxSteps
	}
	if c.QuoteTimeout <= 0 {
		c.QuoteTimeout = d.QuoteTimeout
	}
	if floor := longestRun(c.ParallelAnalysis); c.MaxSteps < floor {
		c.MaxSteps = floor
	}
}

// longestRun counts the nodes of a run that retries synthesis once.
func longestRun(parallel bool) int {
	analysis := 1
	if !parallel {
		analysis = 2
	}
	// parse, gather, analysis, then synthesize and validate twice.
	return 2 + analysis + 4
}

// Deps are the external collaborators. Generator, Searcher, Faithfulness and
// Relevancy are required; the rest may be nil.
type Deps struct {
	Generator    oracle.Generator
	Searcher     oracle.Searcher
	Faithfulness oracle.Scorer
	Relevancy    oracle.Scorer
	Quotes       quote.Client
	Store        store.Store
	Costs        *cost.Calculator
}

// Pipeline is a compiled research workflow. It is safe for concurrent use;
// each Run owns its state.
type Pipeline struct {
	cfg          Config
	gen          oracle.Generator
	search       oracle.Searcher
	faithfulness oracle.Scorer
	relevancy    oracle.Scorer
	quotes       quote.Client
	store        store.Store
	costs        *cost.Calculator
	graph        *graph.Runnable[*model.PipelineState]
}

// Result is a finished run.
type Result struct {
	RunID   string
	State   *model.PipelineState
	Status  model.RunStatus
	CostUSD float64
	Elapsed time.Duration
}

// New validates deps and compiles the stage graph.
func New(cfg Config, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Generator == nil:
		return nil, eris.New("pipeline: generator is required")
	case deps.Searcher == nil:
		return nil, eris.New("pipeline: searcher is required")
	case deps.Faithfulness == nil || deps.Relevancy == nil:
		return nil, eris.New("pipeline: faithfulness and relevancy scorers are required")
	}
	cfg.applyDefaults()

	p := &Pipeline{
		cfg:          cfg,
		gen:          deps.Generator,
		search:       deps.Searcher,
		faithfulness: deps.Faithfulness,
		relevancy:    deps.Relevancy,
		quotes:       deps.Quotes,
		store:        deps.Store,
		costs:        deps.Costs,
	}

	g, err := p.build().Compile(
		graph.WithMaxSteps(cfg.MaxSteps),
		graph.WithObserver(p.recordStep),
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: compile graph")
	}
	p.graph = g
	return p, nil
}

func (p *Pipeline) build() *graph.Graph[*model.PipelineState] {
	g := graph.New[*model.PipelineState]().
		AddNode(StageParse, p.instrument(StageParse, p.parse)).
		AddNode(StageGather, p.instrument(StageGather, p.gather)).
		AddNode(StageSynthesize, p.instrument(StageSynthesize, p.synthesize)).
		AddNode(StageValidate, p.instrument(StageValidate, p.validate)).
		SetEntryPoint(StageParse)

	g.AddConditionalEdge(StageParse, RouteAfterParse, map[graph.Route]string{
		graph.Continue:  StageGather,
		graph.Terminate: graph.End,
	})

	if p.cfg.ParallelAnalysis {
		g.AddNode(StageAnalyze, p.instrument(StageAnalyze, p.analyze)).
			AddEdge(StageGather, StageAnalyze).
			AddEdge(StageAnalyze, StageSynthesize)
	} else {
		g.AddNode(StageSentiment, p.instrument(StageSentiment, p.sentiment)).
			AddNode(StageRisk, p.instrument(StageRisk, p.risk)).
			AddEdge(StageGather, StageSentiment).
			AddEdge(StageSentiment, StageRisk).
			AddEdge(StageRisk, StageSynthesize)
	}

	g.AddEdge(StageSynthesize, StageValidate).
		AddConditionalEdge(StageValidate, RouteAfterValidate, map[graph.Route]string{
			graph.Retry:     StageSynthesize,
			graph.Terminate: graph.End,
		})
	return g
}

// Execute runs the graph over a fresh state for raw without persisting
// anything. The returned state is always non-nil.
func (p *Pipeline) Execute(ctx context.Context, raw string) (*model.PipelineState, error) {
	st := model.NewPipelineState(raw)
	return p.graph.Invoke(ctx, st)
}

// Run executes one research request end to end: it records the run, drives
// the graph, prices usage and stores the outcome. An error is returned only
// when the run could not finish (cancellation or step limit); degraded stage
// results are reported through the state.
func (p *Pipeline) Run(ctx context.Context, raw string) (*Result, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "pipeline.run", attribute.Int("query_len", len(raw)))
	defer span.End()

	log := zap.L().With(zap.String("query", raw))
	if id := tracing.TraceID(ctx); id != "" {
		log = log.With(zap.String("trace_id", id))
	}

	res := &Result{}
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, raw)
		if err != nil {
			log.Warn("pipeline: failed to create run record", zap.Error(err))
		} else {
			res.RunID = run.ID
			log = log.With(zap.String("run_id", run.ID))
		}
	}

	monitoring.RunsActive.Inc()
	defer monitoring.RunsActive.Dec()

	log.Info("pipeline: starting research")
	st, err := p.graph.Invoke(withRunID(ctx, res.RunID), model.NewPipelineState(raw))

	res.State = st
	res.Elapsed = time.Since(start)
	res.CostUSD = p.price(st.Usage)

	if err != nil {
		res.Status = model.RunStatusFailed
		tracing.RecordError(span, err)
		log.Error("pipeline: run failed", zap.Error(err), zap.Duration("elapsed", res.Elapsed))
		p.finish(ctx, res, err.Error())
		return res, eris.Wrap(err, "pipeline: run")
	}

	res.Status = model.StatusFor(st)
	span.SetAttributes(
		attribute.String("status", string(res.Status)),
		attribute.StringSlice("tickers", st.Query.Tickers),
	)
	log.Info("pipeline: research complete",
		zap.String("status", string(res.Status)),
		zap.Strings("tickers", st.Query.Tickers),
		zap.Int("errors", len(st.Errors)),
		zap.Float64("cost_usd", res.CostUSD),
		zap.Duration("elapsed", res.Elapsed),
	)
	p.finish(ctx, res, "")
	return res, nil
}

// finish stores the outcome and publishes run metrics. Store failures are
// logged; the caller still gets the result.
func (p *Pipeline) finish(ctx context.Context, res *Result, errMsg string) {
	monitoring.ObserveRun(string(res.Status), string(res.State.Query.Mode), res.CostUSD)
	if p.store == nil || res.RunID == "" {
		return
	}

	// The request context may already be cancelled; the audit write should
	// still land.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	var err error
	if res.Status == model.RunStatusFailed {
		err = p.store.UpdateRunStatus(ctx, res.RunID, res.Status, errMsg)
	} else {
		err = p.store.UpdateRunResult(ctx, res.RunID, res.Status,
			model.NewRunResult(res.State, res.CostUSD, res.Elapsed))
	}
	if err != nil {
		zap.L().Warn("pipeline: failed to store run outcome",
			zap.String("run_id", res.RunID), zap.Error(err))
	}
}

func (p *Pipeline) price(u model.Usage) float64 {
	if p.costs == nil {
		return 0
	}
	return p.costs.Run(u, p.cfg.GenerationModel, p.cfg.JudgeModel)
}

// instrument wraps a stage with a span, a duration metric and a log line.
func (p *Pipeline) instrument(name string, fn graph.Node[*model.PipelineState]) graph.Node[*model.PipelineState] {
	return func(ctx context.Context, st *model.PipelineState) *model.PipelineState {
		ctx, span := tracing.StartSpan(ctx, "stage."+name, attribute.String("stage", name))
		defer span.End()

		start := time.Now()
		errsBefore := len(st.Errors)
		st = fn(ctx, st)
		elapsed := time.Since(start)

		monitoring.ObserveStage(name, elapsed)
		fields := []zap.Field{
			zap.String("stage", name),
			zap.Int64("duration_ms", elapsed.Milliseconds()),
		}
		if n := len(st.Errors) - errsBefore; n > 0 {
			span.SetAttributes(attribute.Int("errors", n))
			fields = append(fields, zap.Int("new_errors", n))
			zap.L().Warn("pipeline: stage finished with errors", fields...)
		} else {
			zap.L().Debug("pipeline: stage complete", fields...)
		}
		return st
	}
}

// recordStep persists each executed graph step for run audits.
func (p *Pipeline) recordStep(ctx context.Context, step graph.Step) {
	runID := runIDFrom(ctx)
	if p.store == nil || runID == "" {
		return
	}
	rec := &model.StageRecord{
		RunID:      runID,
		Step:       step.Index,
		Name:       step.Node,
		Next:       step.Next,
		DurationMs: step.Duration.Milliseconds(),
		StartedAt:  step.Started.UTC(),
	}
	if step.Route != nil {
		rec.Route = step.Route.String()
	}
	if err := p.store.RecordStage(ctx, rec); err != nil {
		zap.L().Warn("pipeline: failed to record stage",
			zap.String("run_id", runID), zap.String("stage", step.Node), zap.Error(err))
	}
}

type runIDKey struct{}

func withRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey{}, id)
}

func runIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// addUsage folds a generation's usage into st. Calls that failed before the
// provider answered carry no usage.
func addUsage(st *model.PipelineState, g *oracle.Generation) {
	if g != nil {
		st.Usage.Add(g.Usage)
	}
}

// addJudgeUsage folds scorer usage into st as judge usage.
func addJudgeUsage(st *model.PipelineState, s *oracle.Score) {
	if s != nil {
		st.Usage.Add(s.Usage.AsJudge())
	}
}
