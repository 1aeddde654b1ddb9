package pipeline

import (
	"github.com/sells-group/stock-researcher/internal/graph"
	"github.com/sells-group/stock-researcher/internal/model"
)

// RouteAfterParse continues only when tickers were found and nothing failed.
func RouteAfterParse(st *model.PipelineState) graph.Route {
	if len(st.Query.Tickers) > 0 && !st.HasErrors() {
		return graph.Continue
	}
	return graph.Terminate
}

// RouteAfterValidate loops back to synthesis once, after a first failed
// validation.
func RouteAfterValidate(st *model.PipelineState) graph.Route {
	if st.NeedsRetry && st.Validation != nil && st.Validation.Attempt == 1 {
		return graph.Retry
	}
	return graph.Terminate
}
