package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/raumwerk/standort-cli/internal/model"
)

// WriteAssessment writes the full parameter tables for one company.
func WriteAssessment(out io.Writer, a *model.Assessment) {
	_, _ = fmt.Fprintln(out, strings.Repeat("=", 60))
	_, _ = fmt.Fprintf(out, "FIRMA: %s\n", a.Company)
	_, _ = fmt.Fprintf(out, "Adresse: %s\n", a.Address)
	_, _ = fmt.Fprintf(out, "Standort: %s\n", a.Location)
	_, _ = fmt.Fprintln(out, strings.Repeat("=", 60))

	_, _ = fmt.Fprintln(out, "\nSTANDORT-PARAMETER:")
	writeParamTable(out, a.LocationParameters)
	_, _ = fmt.Fprintf(out, "\nDurchschnittlicher Standort-Score: %s\n", formatScore(a.Scores.Location))

	_, _ = fmt.Fprintln(out, "\nFIRMEN-PARAMETER:")
	writeParamTable(out, a.CompanyParameters)
	_, _ = fmt.Fprintf(out, "\nDurchschnittlicher Firmen-Score: %s\n", formatScore(a.Scores.Company))

	_, _ = fmt.Fprintf(out, "\nGESAMT-SCORE: %s\n", formatScore(a.Scores.Overall))
	_, _ = fmt.Fprintln(out, strings.Repeat("=", 60))
}

// WriteScoreLine writes the one-line confirmation printed after each
// company during a batch.
func WriteScoreLine(out io.Writer, a *model.Assessment) {
	_, _ = fmt.Fprintf(out, "   ✅ Gesamt-Score: %s (Standort: %s, Firma: %s)\n",
		formatScore(a.Scores.Overall), formatScore(a.Scores.Location), formatScore(a.Scores.Company))
}

// WriteSummary writes the closing report for a batch: counts, the five
// best companies, and the three lowest-scoring ones worst first.
func WriteSummary(out io.Writer, assessments []model.Assessment, failed int) {
	_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))
	_, _ = fmt.Fprintln(out, "ZUSAMMENFASSUNG")
	_, _ = fmt.Fprintln(out, strings.Repeat("=", 80))
	_, _ = fmt.Fprintf(out, "Erfolgreich verarbeitet: %d Firmen\n", len(assessments))
	_, _ = fmt.Fprintf(out, "Fehler: %d\n", failed)

	if len(assessments) == 0 {
		return
	}

	_, _ = fmt.Fprintln(out, "\n🏆 TOP 5 FIRMEN (nach Gesamt-Score):")
	top := rank(assessments, false)
	if len(top) > 5 {
		top = top[:5]
	}
	for i, idx := range top {
		a := &assessments[idx]
		_, _ = fmt.Fprintf(out, "%d. %s (%s): Score %s\n", i+1, a.Company, a.Location, formatScore(a.Scores.Overall))
	}

	_, _ = fmt.Fprintln(out, "\n⚠️  FIRMEN MIT VERBESSERUNGSPOTENTIAL:")
	bottom := rank(assessments, true)
	if len(bottom) > 3 {
		bottom = bottom[:3]
	}
	for _, idx := range bottom {
		a := &assessments[idx]
		_, _ = fmt.Fprintf(out, "- %s (%s): Score %s\n", a.Company, a.Location, formatScore(a.Scores.Overall))
	}
}

// WriteCSV writes one row per assessment with the three scores.
func WriteCSV(out io.Writer, assessments []model.Assessment) error {
	cw := csv.NewWriter(out)
	defer cw.Flush()

	header := []string{"firma", "standort", "standort_score", "firmen_score", "gesamt_score"}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "report: write CSV header")
	}

	for i := range assessments {
		a := &assessments[i]
		row := []string{
			a.Company,
			a.Location,
			formatScore(a.Scores.Location),
			formatScore(a.Scores.Company),
			formatScore(a.Scores.Overall),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "report: write CSV row")
		}
	}
	return nil
}

// writeParamTable writes one fixed-width parameter table.
func writeParamTable(out io.Writer, params []model.Parameter) {
	_, _ = fmt.Fprintf(out, "%-35s %-20s %-15s %-6s\n", "Parameter", "Wert", "Kategorie", "Punkte")
	_, _ = fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, p := range params {
		_, _ = fmt.Fprintf(out, "%-35s %-20s %-15s %-6d\n", p.Label, p.Value, p.Bucket, p.Points)
	}
}

// rank returns assessment indices ordered by overall score, descending
// unless asc is set. Ties keep submission order.
func rank(assessments []model.Assessment, asc bool) []int {
	idx := make([]int, len(assessments))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if asc {
			return assessments[idx[a]].Scores.Overall < assessments[idx[b]].Scores.Overall
		}
		return assessments[idx[a]].Scores.Overall > assessments[idx[b]].Scores.Overall
	})
	return idx
}

// formatScore renders the single decimal place scores carry.
func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
