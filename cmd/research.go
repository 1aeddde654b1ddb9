package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/stock-researcher/internal/model"
	"github.com/sells-group/stock-researcher/internal/report"
)

var (
	researchFormat string
	researchXLSX   string
)

var researchCmd = &cobra.Command{
	Use:         "research <query>",
	Short:       "Research one stock or compare two",
	Long:        "Runs the research pipeline for a free-form question such as \"Compare AAPL and MSFT\" and prints the report.",
	Example:     `  stock-researcher research "How is NVDA doing?"` + "\n" + `  stock-researcher research --format markdown "Compare AAPL and MSFT"`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: oracleAnnotations,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := report.ParseFormat(researchFormat)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		query := strings.Join(args, " ")
		res, runErr := env.Pipeline.Run(ctx, query)
		if res == nil || res.State == nil {
			return eris.Wrap(runErr, "research")
		}

		if err := writeResearch(os.Stdout, res.State, format, researchXLSX); err != nil {
			return err
		}

		if res.RunID != "" {
			zap.L().Info("research run recorded",
				zap.String("run_id", res.RunID),
				zap.Float64("cost_usd", res.CostUSD),
			)
		}
		return runErr
	},
}

// writeResearch prints the report and, when xlsxPath is set, saves the
// workbook next to it.
func writeResearch(w io.Writer, st *model.PipelineState, format report.Format, xlsxPath string) error {
	if err := report.Write(w, st, format); err != nil {
		return err
	}
	if xlsxPath == "" {
		return nil
	}
	if err := report.SaveXLSX(xlsxPath, st); err != nil {
		return err
	}
	if format == report.FormatText || format == report.FormatMarkdown {
		fmt.Fprintf(w, "\nWorkbook saved to %s\n", xlsxPath)
	}
	return nil
}

func init() {
	researchCmd.Flags().StringVar(&researchFormat, "format", "text", "output format: text, markdown, json or yaml")
	researchCmd.Flags().StringVar(&researchXLSX, "xlsx", "", "also write the dashboard and findings to this .xlsx file")
	rootCmd.AddCommand(researchCmd)
}
