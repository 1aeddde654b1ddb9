package pipeline

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/oracle"
)

const parseSystem = "You extract stock ticker symbols from investment research requests. " +
	"Map company names to their primary US listing (Apple is AAPL, Microsoft is MSFT). " +
	"Never invent a ticker for text that names no company."

var querySchema = &oracle.Schema{
	Name: "query",
	Fields: []oracle.Field{
		{Name: "tickers", Type: oracle.TypeStringArray, Description: "Upper-case ticker symbols mentioned or implied, at most 2."},
		{Name: "is_comparison", Type: oracle.TypeBoolean, Description: "True when the user asks to compare stocks."},
	},
}

type parsedQuery struct {
	Tickers      []string `json:"tickers"`
	IsComparison bool     `json:"is_comparison"`
}

var (
	candidatePattern = regexp.MustCompile(`\$?\b[A-Z]{1,5}\b`)
	symbolPattern    = regexp.MustCompile(`^[A-Z]{1,5}([.-][A-Z]{1,2})?$`)
)

// tickerStopwords are upper-case tokens that look like tickers but almost
// never are in research requests.
var tickerStopwords = map[string]bool{
	"A": true, "I": true, "AN": true, "AND": true, "OR": true, "THE": true,
	"VS": true, "TO": true, "OF": true, "IN": true, "ON": true, "FOR": true,
	"IS": true, "IT": true, "BE": true, "AT": true, "BY": true, "MY": true,
	"ME": true, "WE": true, "US": true, "DO": true, "IF": true, "SO": true,
	"NO": true, "UP": true, "ALL": true, "ARE": true, "BUY": true, "SELL": true,
	"HOLD": true, "WHAT": true, "WHICH": true, "HOW": true, "WHY": true,
	"ETF": true, "CEO": true, "CFO": true, "USA": true, "USD": true, "IPO": true,
	"EPS": true, "PE": true, "AI": true, "API": true, "GDP": true, "NYSE": true,
	"SEC": true, "FAQ": true, "OK": true, "YTD": true,
}

// parse turns the raw request into a Query. The oracle is asked first; a
// regex scan of the raw text recovers tickers when it fails or finds none.
func (p *Pipeline) parse(ctx context.Context, st *model.PipelineState) *model.PipelineState {
	raw := strings.TrimSpace(st.Query.RawText)

	var (
		tickers    []string
		comparison bool
		oracleErr  error
	)
	if raw != "" {
		var out parsedQuery
		g, err := oracle.GenerateInto(ctx, p.gen, oracle.GenerateRequest{
			System:    parseSystem,
			Prompt:    "Request: " + raw,
			MaxTokens: 256,
			Schema:    querySchema,
		}, &out)
		addUsage(st, g)
		if err != nil {
			oracleErr = err
		} else {
			tickers = cleanTickers(out.Tickers)
			comparison = out.IsComparison
		}
	}

	if len(tickers) == 0 {
		tickers = FallbackTickers(raw)
		if len(tickers) > 0 {
			st.Logf("recovered tickers from request text: %s", strings.Join(tickers, ", "))
		}
	}

	if len(tickers) == 0 {
		if oracleErr != nil {
			st.Errorf("query parsing failed: %v", oracleErr)
		}
		st.Errorf("could not identify any stock tickers in query")
		return st
	}
	if oracleErr != nil {
		zap.L().Warn("pipeline: query parser failed, used text scan", zap.Error(oracleErr))
		st.Logf("query parser unavailable (%v); continuing with tickers found in text", oracleErr)
	}

	if len(tickers) > p.cfg.MaxTickers {
		st.Logf("only the first %d tickers are analyzed; ignoring %s",
			p.cfg.MaxTickers, strings.Join(tickers[p.cfg.MaxTickers:], ", "))
		tickers = tickers[:p.cfg.MaxTickers]
	}

	st.Query = model.NewQuery(st.Query.RawText, tickers)
	if comparison && len(st.Query.Tickers) == 1 {
		st.Logf("comparison requested but only %s was identified; analyzing it alone", st.Query.Tickers[0])
	}
	st.Logf("identified %s (%s)", strings.Join(st.Query.Tickers, ", "), st.Query.Mode)
	return st
}

// cleanTickers normalizes oracle output, dropping anything that is not
// shaped like a listed symbol.
func cleanTickers(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, t := range in {
		t = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "$")))
		if !symbolPattern.MatchString(t) || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// FallbackTickers scans text for upper-case tokens of one to five letters
// that are not common words. Order of first appearance is kept.
func FallbackTickers(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range candidatePattern.FindAllString(text, -1) {
		t := strings.TrimPrefix(m, "$")
		if tickerStopwords[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
