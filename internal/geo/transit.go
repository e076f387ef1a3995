package geo

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// TransitTable holds the per-municipality mean transit quality scores from
// the ARE Güteklassen dataset.
type TransitTable struct {
	rows []transitRow
}

type transitRow struct {
	municipality string
	meanScore    float64
}

// LoadTransitTable reads the transit quality CSV at path. Expected columns
// are gemeinde and mean_score; encoding follows decodeReader.
func LoadTransitTable(path, encoding string) (*TransitTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open transit table %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ParseTransitTable(f, encoding)
}

// ParseTransitTable reads transit quality rows from r.
func ParseTransitTable(r io.Reader, encoding string) (*TransitTable, error) {
	decoded, err := decodeReader(r, encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "geo: read transit table header")
	}
	idx, err := columnIndex(header, "gemeinde", "mean_score")
	if err != nil {
		return nil, err
	}

	var rows []transitRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "geo: read transit table row")
		}
		name := strings.TrimSpace(rec[idx["gemeinde"]])
		score, err := strconv.ParseFloat(strings.TrimSpace(rec[idx["mean_score"]]), 64)
		if err != nil {
			return nil, eris.Wrapf(err, "geo: parse mean_score for %q", name)
		}
		rows = append(rows, transitRow{municipality: name, meanScore: score})
	}
	if len(rows) == 0 {
		return nil, eris.New("geo: transit table is empty")
	}
	return &TransitTable{rows: rows}, nil
}

// Lookup returns the quality class and mean score of the first row whose
// municipality name contains name, matched case-insensitively in file
// order.
func (t *TransitTable) Lookup(name string) (string, float64, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return "", 0, eris.New("geo: municipality name is empty")
	}
	for _, row := range t.rows {
		if strings.Contains(strings.ToLower(row.municipality), needle) {
			return classForScore(row.meanScore), row.meanScore, nil
		}
	}
	return "", 0, eris.Errorf("geo: municipality %q not in transit table", name)
}

// Len reports the number of municipalities in the table.
func (t *TransitTable) Len() int {
	return len(t.rows)
}

// classForScore maps a mean quality score to its A-E class.
func classForScore(mean float64) string {
	switch {
	case mean >= 4.5:
		return "A"
	case mean >= 3.5:
		return "B"
	case mean >= 2.5:
		return "C"
	case mean >= 1.5:
		return "D"
	default:
		return "E"
	}
}
