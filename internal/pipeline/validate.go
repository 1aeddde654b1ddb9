package pipeline

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/monitoring"
	"github.com/sells-group/stock-researcher/internal/oracle"
)

// Validation outcomes, as reported to metrics.
const (
	validationPassed = "passed"
	validationRetry  = "retry"
	validationCaveat = "caveat"
)

// validate grades the narrative for faithfulness to the evidence and
// relevancy to the request. A first failure clears the narrative and asks
// for one rewrite; a second failure keeps it with a caveat.
func (p *Pipeline) validate(ctx context.Context, st *model.PipelineState) *model.PipelineState {
	if st.Narrative == "" {
		st.Logf("no summary to validate")
		return st
	}

	attempt := 1
	if st.Validation != nil {
		attempt = st.Validation.Attempt + 1
	}

	req := oracle.ScoreRequest{
		Input:   st.Query.RawText,
		Output:  st.Narrative,
		Context: validationContext(st),
	}

	var faith, rel *oracle.Score
	var faithErr, relErr error
	var g errgroup.Group
	g.Go(func() error {
		r := req
		r.Threshold = p.cfg.FaithfulnessThreshold
		faith, faithErr = p.faithfulness.Score(ctx, r)
		return nil
	})
	g.Go(func() error {
		r := req
		r.Threshold = p.cfg.RelevancyThreshold
		rel, relErr = p.relevancy.Score(ctx, r)
		return nil
	})
	_ = g.Wait()

	addJudgeUsage(st, faith)
	addJudgeUsage(st, rel)
	f := scoreValue(st, "faithfulness", faith, faithErr)
	r := scoreValue(st, "relevancy", rel, relErr)

	passed := f > p.cfg.FaithfulnessThreshold && r > p.cfg.RelevancyThreshold
	st.Validation = &model.ValidationOutcome{
		Passed:            passed,
		FaithfulnessScore: f,
		RelevancyScore:    r,
		Attempt:           attempt,
	}

	switch {
	case passed:
		st.NeedsRetry = false
		st.Logf("validation passed on attempt %d (faithfulness %.2f, relevancy %.2f)", attempt, f, r)
		monitoring.ObserveValidation(validationPassed)
	case attempt == 1:
		st.NeedsRetry = true
		st.Narrative = ""
		st.Dashboard = nil
		st.Logf("validation failed on attempt 1 (faithfulness %.2f, relevancy %.2f); retrying synthesis", f, r)
		monitoring.ObserveValidation(validationRetry)
	default:
		st.NeedsRetry = false
		st.Logf("validation failed on attempt %d (faithfulness %.2f, relevancy %.2f); accepted with caveat", attempt, f, r)
		monitoring.ObserveValidation(validationCaveat)
	}
	return st
}

// scoreValue treats a scorer failure as a zero score.
func scoreValue(st *model.PipelineState, metric string, s *oracle.Score, err error) float64 {
	if err != nil || s == nil {
		st.Logf("WARNING: %s scoring failed: %v; counting it as 0.00", metric, err)
		return 0
	}
	return s.Value
}

// validationContext is the evidence the narrative may rely on: raw evidence
// plus the structured findings derived from it.
func validationContext(st *model.PipelineState) []string {
	out := evidenceContext(st)
	for _, f := range st.OrderedFindings() {
		if raw, err := json.Marshal(digest(f)); err == nil {
			out = append(out, string(raw))
		}
	}
	if st.Dashboard != nil {
		if raw, err := json.Marshal(st.Dashboard); err == nil {
			out = append(out, string(raw))
		}
	}
	return out
}
