package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/stock-researcher/internal/graph"
	"github.com/sells-group/stock-researcher/internal/model"
)

func TestRouteAfterParse(t *testing.T) {
	st := model.NewPipelineState("Analyze NVDA")
	assert.Equal(t, graph.Terminate, RouteAfterParse(st))

	st.Query = model.NewQuery(st.Query.RawText, []string{"NVDA"})
	assert.Equal(t, graph.Continue, RouteAfterParse(st))

	st.Errorf("query parsing failed")
	assert.Equal(t, graph.Terminate, RouteAfterParse(st))
}

func TestRouteAfterValidate(t *testing.T) {
	tests := []struct {
		name       string
		needsRetry bool
		validation *model.ValidationOutcome
		want       graph.Route
	}{
		{name: "not validated", want: graph.Terminate},
		{name: "passed", validation: &model.ValidationOutcome{Passed: true, Attempt: 1}, want: graph.Terminate},
		{name: "first failure", needsRetry: true, validation: &model.ValidationOutcome{Attempt: 1}, want: graph.Retry},
		{name: "second failure", needsRetry: true, validation: &model.ValidationOutcome{Attempt: 2}, want: graph.Terminate},
		{name: "caveat accepted", validation: &model.ValidationOutcome{Attempt: 2}, want: graph.Terminate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := model.NewPipelineState("x")
			st.NeedsRetry = tt.needsRetry
			st.Validation = tt.validation
			assert.Equal(t, tt.want, RouteAfterValidate(st))
		})
	}
}

func TestClampRiskScore(t *testing.T) {
	assert.Equal(t, 1, clampRiskScore(-3))
	assert.Equal(t, 1, clampRiskScore(0.4))
	assert.Equal(t, 5, clampRiskScore(4.5))
	assert.Equal(t, 7, clampRiskScore(7))
	assert.Equal(t, 10, clampRiskScore(42))
}

func TestValidate_NoNarrativeIsNoop(t *testing.T) {
	h := newHarness()
	p := h.pipeline(t, DefaultConfig())

	st := model.NewPipelineState("Analyze NVDA")
	st = p.validate(t.Context(), st)
	assert.Nil(t, st.Validation)
	assert.Empty(t, h.faithfulness.requests())
	assert.True(t, hasEntry(st.Log, "no summary to validate"))
}

func TestValidate_ContextCarriesEvidenceAndFindings(t *testing.T) {
	h := newHarness()
	p := h.pipeline(t, DefaultConfig())

	st := model.NewPipelineState("Analyze NVDA")
	st.Query = model.NewQuery(st.Query.RawText, []string{"NVDA"})
	st.Findings["NVDA"] = &model.PerTickerFindings{
		Ticker:      "NVDA",
		RawEvidence: "NVDA revenue rose 94%.",
		Sentiment:   &model.Sentiment{Label: model.SentimentPositive},
	}
	st.Narrative = "NVDA revenue rose sharply."

	st = p.validate(t.Context(), st)

	reqs := h.faithfulness.requests()
	assert.Len(t, reqs, 1)
	assert.Equal(t, "Analyze NVDA", reqs[0].Input)
	assert.Equal(t, "NVDA revenue rose 94%.", reqs[0].Context[0])
	assert.Contains(t, reqs[0].Context[1], `"label":"positive"`)
	assert.True(t, st.Validation.Passed)
	assert.Equal(t, 1, st.Validation.Attempt)
}
