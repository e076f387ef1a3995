// Package report renders finished assessments: an Excel workbook with
// one sheet per company, the per-company console tables, and the batch
// closing summary.
package report

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/raumwerk/standort-cli/internal/model"
)

// Filename returns the default workbook name for a batch finished at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("standort_scores_%s.xlsx", t.Format("20060102_150405"))
}

// WriteWorkbook writes one sheet per assessment to path.
func WriteWorkbook(path string, assessments []model.Assessment) error {
	if len(assessments) == 0 {
		return eris.New("report: no assessments to export")
	}

	f := xlsx.NewFile()
	taken := make(map[string]bool, len(assessments))

	for i := range assessments {
		a := &assessments[i]
		sheet, err := f.AddSheet(sheetName(a.Company, taken))
		if err != nil {
			return eris.Wrapf(err, "report: add sheet for %s", a.Company)
		}
		writeSheet(sheet, a)
	}

	return eris.Wrapf(f.Save(path), "report: save workbook %s", path)
}

// writeSheet lays out one assessment on a four-column grid: company
// header, the two parameter tables with their averaged scores, and the
// overall score last.
func writeSheet(sheet *xlsx.Sheet, a *model.Assessment) {
	addRow(sheet, fmt.Sprintf("Firma: %s, %s", a.Company, a.Address))
	addRow(sheet)

	addRow(sheet, "Standort-Parameter: "+a.Location, "Tatsächlicher Wert", "Kategorie", "Punkte")
	for _, p := range a.LocationParameters {
		addRow(sheet, p.Label, p.Value, p.Bucket, p.Points)
	}
	addRow(sheet)
	addRow(sheet, "", "", "Durchschnittlicher Score", a.Scores.Location)
	addRow(sheet)

	addRow(sheet, "Firmen-Parameter", "Tatsächlicher Wert", "Kategorie", "Punkte")
	for _, p := range a.CompanyParameters {
		addRow(sheet, p.Label, p.Value, p.Bucket, p.Points)
	}
	addRow(sheet)
	addRow(sheet, "", "", "Durchschnittlicher Score", a.Scores.Company)
	addRow(sheet)

	addRow(sheet, "", "", "Gesamt-Score", a.Scores.Overall)
}

// addRow appends a row with one cell per value. Scores stay numeric
// cells so the workbook can be sorted and aggregated.
func addRow(sheet *xlsx.Sheet, values ...any) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		switch t := v.(type) {
		case string:
			cell.SetString(t)
		case int:
			cell.SetInt(t)
		case float64:
			cell.SetFloat(t)
		default:
			cell.SetString(fmt.Sprint(t))
		}
	}
}

// maxSheetName is the sheet name length Excel allows.
const maxSheetName = 31

// sheetName derives a legal, unique sheet name from a company name.
// Characters Excel rejects are replaced, the result is capped at 31
// bytes, and collisions get a numeric suffix.
func sheetName(company string, taken map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '-'
		}
		return r
	}, company)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Firma"
	}
	name = truncate(name, maxSheetName)

	if !taken[name] {
		taken[name] = true
		return name
	}
	for i := 2; ; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate := truncate(name, maxSheetName-len(suffix)) + suffix
		if !taken[candidate] {
			taken[candidate] = true
			return candidate
		}
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
