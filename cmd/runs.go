package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/monitoring"
	"github.com/sells-group/stock-researcher/internal/report"
	"github.com/sells-group/stock-researcher/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect research run history",
	Long:  "Commands for listing, viewing, and summarizing research runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List research runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		ticker, _ := cmd.Flags().GetString("ticker")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Ticker: ticker,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a stored run",
	Long:  "Prints the stored report for a run. --format json prints the full record with its stage timings.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		stages, err := st.ListStages(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "runs show stages")
		}

		format, _ := cmd.Flags().GetString("format")
		return showRun(os.Stdout, run, stages, format)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		snap, err := monitoring.NewCollector(st).Collect(ctx, int(since.Hours()))
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, snap)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, aborted, failed)")
	runsListCmd.Flags().String("ticker", "", "filter by ticker")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().String("format", "text", "output format: text, markdown, json or yaml")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h); 0 for all runs")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// showRun prints a stored run. JSON carries the whole record; the other
// formats render the stored state as a report.
func showRun(out io.Writer, run *model.Run, stages []model.StageRecord, format string) error {
	f, err := report.ParseFormat(format)
	if err != nil {
		return err
	}

	if f == report.FormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*model.Run
			Stages []model.StageRecord `json:"stages"`
		}{Run: run, Stages: stages})
	}

	if run.Result == nil || run.Result.State == nil {
		_, _ = fmt.Fprintf(out, "Run %s (%s) has no stored report.\n", run.ID, run.Status)
		if run.Error != "" {
			_, _ = fmt.Fprintf(out, "Error: %s\n", run.Error)
		}
		return nil
	}
	return report.Write(out, run.Result.State, f)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTICKERS\tSTATUS\tVALIDATION\tCOST\tCREATED\tQUERY")
	_, _ = fmt.Fprintln(w, "--\t-------\t------\t----------\t----\t-------\t-----")

	for _, r := range runs {
		tickers, validation, cost := "-", "-", "-"
		if res := r.Result; res != nil {
			if len(res.Tickers) > 0 {
				tickers = strings.Join(res.Tickers, ",")
			}
			if res.Attempts > 0 {
				validation = "failed"
				if res.Passed {
					validation = "passed"
				}
				if res.Attempts > 1 {
					validation += " (retried)"
				}
			}
			cost = fmt.Sprintf("$%.4f", res.CostUSD)
		}

		query := r.Query
		if len(query) > 40 {
			query = query[:37] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			tickers,
			r.Status,
			validation,
			cost,
			r.CreatedAt.Format("2006-01-02 15:04"),
			query,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	window := "all time"
	if s.LookbackHours > 0 {
		window = fmt.Sprintf("last %dh", s.LookbackHours)
	}
	_, _ = fmt.Fprintf(w, "Window:\t%s\n", window)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.RunsTotal)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.RunsComplete)
	_, _ = fmt.Fprintf(w, "Aborted:\t%d\n", s.RunsAborted)
	_, _ = fmt.Fprintf(w, "Failed:\t%d\n", s.RunsFailed)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.RunsRunning)
	_, _ = fmt.Fprintf(w, "Comparisons:\t%d\n", s.ComparisonRuns)
	if s.Validated > 0 {
		_, _ = fmt.Fprintf(w, "Validation pass rate:\t%.1f%% (%d validated, %d retried)\n", s.PassRate*100, s.Validated, s.Retried)
		_, _ = fmt.Fprintf(w, "Avg faithfulness:\t%.2f\n", s.AvgFaithfulness)
		_, _ = fmt.Fprintf(w, "Avg relevancy:\t%.2f\n", s.AvgRelevancy)
	}
	_, _ = fmt.Fprintf(w, "Total cost:\t$%.4f\n", s.CostUSD)
	if s.AvgCostUSD > 0 {
		_, _ = fmt.Fprintf(w, "Avg cost:\t$%.4f\n", s.AvgCostUSD)
	}
	if s.AvgDurationMs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", float64(s.AvgDurationMs)/1000)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
