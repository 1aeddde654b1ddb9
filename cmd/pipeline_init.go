package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/stock-researcher/internal/config"
	"github.com/sells-group/stock-researcher/internal/cost"
	"github.com/sells-group/stock-researcher/internal/oracle"
	"github.com/sells-group/stock-researcher/internal/pipeline"
	"github.com/sells-group/stock-researcher/internal/resilience"
	"github.com/sells-group/stock-researcher/internal/store"
	anthropicpkg "github.com/sells-group/stock-researcher/pkg/anthropic"
	"github.com/sells-group/stock-researcher/pkg/quote"
	"github.com/sells-group/stock-researcher/pkg/tavily"
)

// Breaker names, one per oracle.
const (
	oracleGeneration = "generation"
	oracleJudge      = "judge"
	oracleSearch     = "search"
)

// pipelineEnv holds the initialized clients and the pipeline needed by the
// research and serve commands.
type pipelineEnv struct {
	Store    store.Store // nil when history is disabled or unavailable
	Pipeline *pipeline.Pipeline
	Breakers *resilience.Breakers
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline opens the optional run history and builds the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	env := &pipelineEnv{}

	if cfg.Store.Enabled {
		st, err := initStore(ctx)
		if err != nil {
			zap.L().Warn("run history unavailable, continuing without it", zap.Error(err))
		} else {
			env.Store = st
		}
	}

	env.Breakers = resilience.NewBreakers(resilience.BreakerFrom(cfg.Oracle.BreakerFailures, cfg.Oracle.BreakerResetSecs))
	deps := buildDeps(cfg, env.Breakers)
	deps.Store = env.Store

	p, err := pipeline.New(pipelineConfig(cfg), deps)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Pipeline = p
	return env, nil
}

// buildDeps wires the provider clients behind guarded oracle adapters. Every
// oracle gets its breaker registered up front so health checks list it.
func buildDeps(c *config.Config, breakers *resilience.Breakers) pipeline.Deps {
	guard := oracle.NewGuard(
		time.Duration(c.Oracle.TimeoutSecs)*time.Second,
		resilience.PolicyFrom(c.Oracle.MaxAttempts, c.Oracle.InitialBackoffMs, c.Oracle.MaxBackoffMs),
		breakers,
	)
	for _, name := range []string{oracleGeneration, oracleJudge, oracleSearch} {
		guard.Breakers.Get(name)
	}

	var anthropicOpts []anthropicpkg.Option
	if c.Generation.BaseURL != "" {
		anthropicOpts = append(anthropicOpts, anthropicpkg.WithBaseURL(c.Generation.BaseURL))
	}
	// The guard owns retries.
	anthropicOpts = append(anthropicOpts, anthropicpkg.WithMaxRetries(0))
	anthropicClient := anthropicpkg.NewClient(c.Generation.Key, anthropicOpts...)

	tavilyOpts := []tavily.Option{tavily.WithBaseURL(c.Search.BaseURL)}
	if c.Search.RatePerSec > 0 {
		tavilyOpts = append(tavilyOpts, tavily.WithRateLimit(c.Search.RatePerSec, 1))
	}
	tavilyClient := tavily.NewClient(c.Search.Key, tavilyOpts...)

	gen := oracle.GuardGenerator(
		oracle.NewAnthropicGenerator(anthropicClient, c.Generation.Model, c.Generation.MaxTokens, c.Generation.Temperature),
		guard, oracleGeneration,
	)
	judgeGen := oracle.GuardGenerator(
		oracle.NewAnthropicGenerator(anthropicClient, judgeModel(c), c.Generation.MaxTokens, 0),
		guard, oracleJudge,
	)

	deps := pipeline.Deps{
		Generator:    gen,
		Searcher:     oracle.GuardSearcher(oracle.NewTavilySearcher(tavilyClient), guard, oracleSearch),
		Faithfulness: oracle.NewFaithfulnessJudge(judgeGen),
		Relevancy:    oracle.NewRelevancyJudge(judgeGen),
		Costs:        cost.NewCalculator(costRates(c.Pricing)),
	}
	if c.Quote.Enabled {
		deps.Quotes = quote.NewClient()
	}
	return deps
}

// pipelineConfig maps file and environment settings onto the pipeline.
func pipelineConfig(c *config.Config) pipeline.Config {
	return pipeline.Config{
		ConfidenceThreshold:           c.Pipeline.ConfidenceThreshold,
		FaithfulnessThreshold:         c.Pipeline.FaithfulnessThreshold,
		RelevancyThreshold:            c.Pipeline.RelevancyThreshold,
		AnalysisFaithfulnessThreshold: c.Pipeline.AnalysisFaithfulnessThreshold,
		MaxTickers:                    c.Pipeline.MaxTickers,
		SearchDepth:                   oracle.SearchDepth(c.Search.Depth),
		SearchMaxResults:              c.Search.MaxResults,
		ParallelAnalysis:              c.Pipeline.ParallelAnalysis,
		CompileEvidence:               c.Pipeline.CompileEvidence,
		MaxSteps:                      c.Pipeline.MaxSteps,
		QuoteTimeout:                  time.Duration(c.Oracle.TimeoutSecs) * time.Second,
		GenerationModel:               c.Generation.Model,
		JudgeModel:                    judgeModel(c),
	}
}

func judgeModel(c *config.Config) string {
	if c.Generation.JudgeModel != "" {
		return c.Generation.JudgeModel
	}
	return c.Generation.Model
}

// costRates converts configured pricing, falling back to the built-in rates
// when none are configured.
func costRates(p config.PricingConfig) cost.Rates {
	def := cost.DefaultRates()
	rates := cost.Rates{
		Anthropic: make(map[string]cost.ModelRate, len(p.Anthropic)),
		Tavily:    cost.SearchRate{Basic: p.Tavily.Basic, Advanced: p.Tavily.Advanced},
	}
	for model, r := range p.Anthropic {
		rates.Anthropic[model] = cost.ModelRate{Input: r.Input, Output: r.Output}
	}
	if len(rates.Anthropic) == 0 {
		rates.Anthropic = def.Anthropic
	}
	if rates.Tavily.Basic == 0 && rates.Tavily.Advanced == 0 {
		rates.Tavily = def.Tavily
	}
	return rates
}
