package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/oracle"
)

// gather collects evidence for every ticker concurrently. Each ticker runs
// on a forked state and writes only its own findings record; logs are merged
// in ticker order once all lookups finish.
func (p *Pipeline) gather(ctx context.Context, st *model.PipelineState) *model.PipelineState {
	tickers := st.Query.Tickers
	if len(tickers) == 0 {
		st.Errorf("no tickers to gather data for")
		return st
	}

	branches := make([]*model.PipelineState, len(tickers))
	found := make([]*model.PerTickerFindings, len(tickers))

	var g errgroup.Group
	for i, ticker := range tickers {
		branches[i] = st.Fork()
		g.Go(func() error {
			found[i] = p.gatherTicker(ctx, branches[i], ticker)
			return nil
		})
	}
	_ = g.Wait()

	for i, ticker := range tickers {
		st.Findings[ticker] = found[i]
	}
	st.Merge(branches...)
	return st
}

func (p *Pipeline) gatherTicker(ctx context.Context, st *model.PipelineState, ticker string) *model.PerTickerFindings {
	f := &model.PerTickerFindings{Ticker: ticker}
	st.Logf("gathering market data for %s", ticker)

	resp, err := p.search.Search(ctx, oracle.SearchRequest{
		Query:      searchQuery(ticker),
		Depth:      p.cfg.SearchDepth,
		MaxResults: p.cfg.SearchMaxResults,
	})
	if err != nil {
		st.Errorf("market data search failed for %s: %v", ticker, err)
		f.RawEvidence = model.DataUnavailable
		return f
	}
	if p.cfg.SearchDepth == oracle.DepthBasic {
		st.Usage.BasicSearches++
	} else {
		st.Usage.AdvancedSearches++
	}

	if p.quotes != nil {
		quoteCtx, cancel := context.WithTimeout(ctx, p.cfg.QuoteTimeout)
		snap, err := p.quotes.Snapshot(quoteCtx, ticker)
		cancel()
		if err != nil {
			zap.L().Debug("pipeline: quote lookup failed", zap.String("ticker", ticker), zap.Error(err))
			st.Logf("market snapshot unavailable for %s: %v", ticker, err)
		} else {
			f.Quote = quoteFromSnapshot(snap)
		}
	}

	evidence := formatEvidence(ticker, resp, f.Quote)
	if p.cfg.CompileEvidence {
		compiled, err := p.compileEvidence(ctx, st, ticker, evidence)
		if err != nil {
			st.Logf("evidence compilation failed for %s, using search results as-is: %v", ticker, err)
		} else {
			evidence = compiled
		}
	}

	f.RawEvidence = evidence
	st.Logf("collected %d sources for %s", len(resp.Results), ticker)
	return f
}

func searchQuery(ticker string) string {
	return fmt.Sprintf("%s stock current price market cap P/E ratio beta recent news business summary", ticker)
}

const compileSystem = "You are a financial data analyst. You only restate facts found in the material you are given."

// compileEvidence asks the generator to condense search results into one
// block. Search snippets remain the evidence of record if it fails.
func (p *Pipeline) compileEvidence(ctx context.Context, st *model.PipelineState, ticker, snippets string) (string, error) {
	g, err := p.gen.Generate(ctx, oracle.GenerateRequest{
		System: compileSystem,
		Prompt: fmt.Sprintf("Compile the material below into a single text block about %s covering: "+
			"current stock price, market capitalization, P/E ratio, beta, 3-4 recent news items with dates, "+
			"and a brief business summary. Write \"not found\" for any figure the material does not state.\n\n%s",
			ticker, snippets),
		MaxTokens: 1024,
	})
	addUsage(st, g)
	if err != nil {
		return "", err
	}
	return g.Text, nil
}
