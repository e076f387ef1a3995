package geo

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeReader wraps r with a charset decoder when encoding names one.
// The federal datasets ship in both UTF-8 and Latin-1; an empty encoding
// means the data is already UTF-8.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	if encoding == "" {
		return r, nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: unsupported charset %q", encoding)
	}
	return enc.NewDecoder().Reader(r), nil
}

// columnIndex maps the lowercased header names to their positions and
// verifies every required column is present. A UTF-8 BOM on the first
// column is stripped.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, eris.Errorf("geo: missing column %q", col)
		}
	}
	return idx, nil
}
