package report

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/stock-researcher/internal/model"
)

// Workbook sheet names.
const (
	SheetDashboard  = "Dashboard"
	SheetFindings   = "Findings"
	SheetValidation = "Validation"
)

var findingsHeader = []string{
	"Ticker", "Sentiment", "Sentiment confidence", "Data quality", "Notable events",
	"Risk score", "Volatility", "Beta", "Risk confidence", "Completeness", "Risk factors",
}

// Workbook builds a spreadsheet with the comparison dashboard (when the run
// compared two tickers), per-ticker findings and the validation outcome.
func Workbook(st *model.PipelineState) (*xlsx.File, error) {
	f := xlsx.NewFile()

	if d := st.Dashboard; d != nil {
		if err := addDashboardSheet(f, d); err != nil {
			return nil, err
		}
	}
	if err := addFindingsSheet(f, st); err != nil {
		return nil, err
	}
	if err := addValidationSheet(f, st); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteXLSX streams the workbook for st to w.
func WriteXLSX(w io.Writer, st *model.PipelineState) error {
	f, err := Workbook(st)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "xlsx: write workbook")
}

// SaveXLSX writes the workbook for st to path.
func SaveXLSX(path string, st *model.PipelineState) error {
	f, err := Workbook(st)
	if err != nil {
		return err
	}
	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

func addDashboardSheet(f *xlsx.File, d *model.Dashboard) error {
	sheet, err := f.AddSheet(SheetDashboard)
	if err != nil {
		return eris.Wrap(err, "xlsx: add dashboard sheet")
	}

	addHeader(sheet, []string{"Metric", d.Tickers[0], d.Tickers[1], "Better"})
	for _, r := range d.Rows {
		addStrings(sheet.AddRow(), r.Metric, dashboardCell(r.A), dashboardCell(r.B), betterTicker(d, r.Better))
	}
	addStrings(sheet.AddRow())
	addStrings(sheet.AddRow(), "Overall edge", d.Winner)
	return nil
}

func addFindingsSheet(f *xlsx.File, st *model.PipelineState) error {
	sheet, err := f.AddSheet(SheetFindings)
	if err != nil {
		return eris.Wrap(err, "xlsx: add findings sheet")
	}

	addHeader(sheet, findingsHeader)
	for _, fd := range st.OrderedFindings() {
		row := sheet.AddRow()
		row.AddCell().SetString(fd.Ticker)

		if s := fd.Sentiment; s != nil {
			row.AddCell().SetString(label(string(s.Label)))
			row.AddCell().SetFloat(s.Confidence)
			row.AddCell().SetString(label(string(s.DataQuality)))
			row.AddCell().SetString(strings.Join(s.NotableEvents, "\n"))
		} else {
			addStrings(row, "", "", "", "")
		}

		if r := fd.Risk; r != nil {
			row.AddCell().SetInt(r.RiskScore)
			row.AddCell().SetString(label(string(r.Volatility)))
			if r.Beta != nil {
				row.AddCell().SetFloat(*r.Beta)
			} else {
				row.AddCell().SetString("")
			}
			row.AddCell().SetFloat(r.Confidence)
			row.AddCell().SetString(label(string(r.Completeness)))
			row.AddCell().SetString(strings.Join(r.RiskFactors, "\n"))
		} else {
			addStrings(row, "", "", "", "", "", "")
		}
	}
	return nil
}

func addValidationSheet(f *xlsx.File, st *model.PipelineState) error {
	sheet, err := f.AddSheet(SheetValidation)
	if err != nil {
		return eris.Wrap(err, "xlsx: add validation sheet")
	}

	addHeader(sheet, []string{"Field", "Value"})
	addStrings(sheet.AddRow(), "Query", st.Query.RawText)
	addStrings(sheet.AddRow(), "Mode", string(st.Query.Mode))

	if v := st.Validation; v != nil {
		passed := "no"
		if v.Passed {
			passed = "yes"
		}
		addStrings(sheet.AddRow(), "Passed", passed)

		row := sheet.AddRow()
		row.AddCell().SetString("Attempts")
		row.AddCell().SetInt(v.Attempt)

		row = sheet.AddRow()
		row.AddCell().SetString("Faithfulness")
		row.AddCell().SetFloat(v.FaithfulnessScore)

		row = sheet.AddRow()
		row.AddCell().SetString("Relevancy")
		row.AddCell().SetFloat(v.RelevancyScore)
	}
	if Failed(st) {
		addStrings(sheet.AddRow(), "Caveat", CaveatNote)
	}
	for _, e := range st.Errors {
		addStrings(sheet.AddRow(), "Error", e)
	}
	return nil
}

func addHeader(sheet *xlsx.Sheet, cols []string) {
	style := xlsx.NewStyle()
	style.Font.Bold = true
	style.ApplyFont = true

	row := sheet.AddRow()
	for _, c := range cols {
		cell := row.AddCell()
		cell.SetString(c)
		cell.SetStyle(style)
	}
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
