package dataset

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// PointSpec names the columns carrying a row's coordinates. Either the
// Lon/Lat pair or the Combined column must be set. Combined columns encode
// a single "(lat, lon)" string, latitude first, matching how 311 and crime
// extracts publish location fields.
type PointSpec struct {
	LonColumn      string
	LatColumn      string
	CombinedColumn string
}

// Validate checks that the spec names exactly one coordinate encoding and
// that the named columns exist in the table.
func (s PointSpec) Validate(t *Table) error {
	combined := s.CombinedColumn != ""
	split := s.LonColumn != "" || s.LatColumn != ""

	switch {
	case combined && split:
		return eris.New("dataset: point spec sets both combined and split columns")
	case combined:
		if _, ok := t.ColumnIndex(s.CombinedColumn); !ok {
			return eris.Errorf("dataset: missing column %q", s.CombinedColumn)
		}
	case s.LonColumn != "" && s.LatColumn != "":
		if _, ok := t.ColumnIndex(s.LonColumn); !ok {
			return eris.Errorf("dataset: missing column %q", s.LonColumn)
		}
		if _, ok := t.ColumnIndex(s.LatColumn); !ok {
			return eris.Errorf("dataset: missing column %q", s.LatColumn)
		}
	default:
		return eris.New("dataset: point spec must set lon+lat columns or a combined column")
	}
	return nil
}

// extractor resolves column indices once so per-row parsing is just slicing.
type extractor struct {
	spec    PointSpec
	lonIdx  int
	latIdx  int
	combIdx int
}

func newExtractor(t *Table, spec PointSpec) (*extractor, error) {
	if err := spec.Validate(t); err != nil {
		return nil, err
	}
	ex := &extractor{spec: spec}
	if spec.CombinedColumn != "" {
		ex.combIdx, _ = t.ColumnIndex(spec.CombinedColumn)
	} else {
		ex.lonIdx, _ = t.ColumnIndex(spec.LonColumn)
		ex.latIdx, _ = t.ColumnIndex(spec.LatColumn)
	}
	return ex, nil
}

// point extracts a row's coordinates. The raw return holds the original
// cell text for malformed-input reporting; ok is false when the row does
// not parse to a finite coordinate pair.
func (ex *extractor) point(row []string) (lng, lat float64, raw string, ok bool) {
	if ex.spec.CombinedColumn != "" {
		raw = cell(row, ex.combIdx)
		lat, lng, ok = parseCombined(raw)
		return lng, lat, raw, ok
	}

	lonRaw := cell(row, ex.lonIdx)
	latRaw := cell(row, ex.latIdx)
	raw = "(" + latRaw + ", " + lonRaw + ")"

	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(lonRaw), 64)
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if lngErr != nil || latErr != nil {
		return 0, 0, raw, false
	}
	return lng, lat, raw, true
}

// parseCombined parses a "(lat, lon)" string. Parens are optional; the
// latitude always comes first in this encoding.
func parseCombined(s string) (lat, lng float64, ok bool) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "(")
	trimmed = strings.TrimSuffix(trimmed, ")")

	parts := strings.Split(trimmed, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}

	lat, latErr := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if latErr != nil || lngErr != nil {
		return 0, 0, false
	}
	return lat, lng, true
}

// cell safely reads a field from a possibly short row.
func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return row[idx]
}
