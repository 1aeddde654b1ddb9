package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/stock-researcher/internal/model"
)

// analyze runs sentiment and risk side by side. Sentiment writes only
// findings' Sentiment and risk only Risk, so the branches share the records;
// their logs merge sentiment first.
func (p *Pipeline) analyze(ctx context.Context, st *model.PipelineState) *model.PipelineState {
	sb, rb := st.Fork(), st.Fork()

	var g errgroup.Group
	g.Go(func() error {
		p.sentiment(ctx, sb)
		return nil
	})
	g.Go(func() error {
		p.risk(ctx, rb)
		return nil
	})
	_ = g.Wait()

	st.Merge(sb, rb)
	return st
}
