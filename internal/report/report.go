// Package report renders a finished research run for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/stock-researcher/internal/model"
)

// Format selects an output rendering.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// CaveatNote is shown under a report that did not pass validation.
const CaveatNote = "This report did not pass automated validation. Verify key claims against the source data before relying on it."

// ParseFormat maps a flag value onto a Format. The empty string means text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatMarkdown, FormatJSON, FormatYAML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", eris.Errorf("report: unknown format %q (want text, markdown, json or yaml)", s)
}

// Write renders st to w in the requested format.
func Write(w io.Writer, st *model.PipelineState, f Format) error {
	if st == nil {
		return eris.New("report: nil state")
	}

	var (
		out []byte
		err error
	)
	switch f {
	case FormatText, "":
		out = []byte(Terminal(st))
	case FormatMarkdown:
		out = []byte(Markdown(st))
	case FormatJSON:
		out, err = JSON(st)
	case FormatYAML:
		out, err = YAML(st)
	default:
		return eris.Errorf("report: unknown format %q", f)
	}
	if err != nil {
		return err
	}

	if _, err := w.Write(out); err != nil {
		return eris.Wrap(err, "report: write")
	}
	return nil
}

// JSON dumps the full state, indented.
func JSON(st *model.PipelineState) ([]byte, error) {
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "report: marshal json")
	}
	return append(b, '\n'), nil
}

// YAML dumps the full state.
func YAML(st *model.PipelineState) ([]byte, error) {
	b, err := yaml.Marshal(st)
	if err != nil {
		return nil, eris.Wrap(err, "report: marshal yaml")
	}
	return b, nil
}

// Failed reports whether st carries a narrative that did not pass validation.
func Failed(st *model.PipelineState) bool {
	return st.Narrative != "" && st.Validation != nil && !st.Validation.Passed
}

// Title names the report after its tickers.
func Title(st *model.PipelineState) string {
	if len(st.Query.Tickers) == 0 {
		return "Stock research"
	}
	return "Stock research: " + strings.Join(st.Query.Tickers, " vs ")
}

// A Caser carries state, so each call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// label title-cases a lower-case enum value for display.
func label(s string) string {
	if s == "" {
		return "Unknown"
	}
	return titleCase(s)
}

// dashboardCell title-cases the leading word of a dashboard value, so
// "positive (3)" reads "Positive (3)" while "4/10" is left alone.
func dashboardCell(s string) string {
	head, tail, found := strings.Cut(s, " ")
	head = titleCase(head)
	if !found {
		return head
	}
	return head + " " + tail
}

// betterTicker resolves a dashboard "better" marker to a ticker name.
func betterTicker(d *model.Dashboard, better string) string {
	switch better {
	case "A":
		return d.Tickers[0]
	case "B":
		return d.Tickers[1]
	default:
		return "Tie"
	}
}

func sentimentLine(s *model.Sentiment) string {
	if s == nil {
		return "not assessed"
	}
	return fmt.Sprintf("%s (confidence %.2f, data quality %s)", label(string(s.Label)), s.Confidence, s.DataQuality)
}

func riskLine(r *model.Risk) string {
	if r == nil {
		return "not assessed"
	}
	beta := "beta n/a"
	if r.Beta != nil {
		beta = fmt.Sprintf("beta %.2f", *r.Beta)
	}
	return fmt.Sprintf("%d/10, %s volatility, %s (confidence %.2f, %s data)",
		r.RiskScore, r.Volatility, beta, r.Confidence, r.Completeness)
}
