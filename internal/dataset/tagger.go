package dataset

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/streetscope/blockgeo/internal/locator"
)

// Appended column names.
const (
	ColProperties      = "geo_properties"
	ColBlockGroupGEOID = "block_group_geoid"
	ColTractGEOID      = "tract_geoid"
	ColStatus          = "geo_status"
)

// Summary counts lookup outcomes for one tagged dataset.
type Summary struct {
	Rows      int `json:"rows"`
	Found     int `json:"found"`
	NoMatch   int `json:"no_match"`
	Malformed int `json:"malformed"`
}

// Tagger appends block-group lookup columns to tables using a shared
// read-only index.
type Tagger struct {
	index       *locator.Index
	concurrency int
}

// NewTagger creates a Tagger. Concurrency below 1 runs sequentially.
func NewTagger(index *locator.Index, concurrency int) *Tagger {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Tagger{index: index, concurrency: concurrency}
}

// Tag returns a copy of the table with four appended columns: the matched
// property map as JSON, the block-group GEOID, the derived tract GEOID, and
// the lookup status. Rows are processed concurrently but output order
// matches input order. Lookup failures never abort the batch; they surface
// as the row's status.
func (tg *Tagger) Tag(ctx context.Context, t *Table, spec PointSpec) (*Table, Summary, error) {
	ex, err := newExtractor(t, spec)
	if err != nil {
		return nil, Summary{}, err
	}

	results := make([]locator.Result, len(t.Rows))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(tg.concurrency)
	for i, row := range t.Rows {
		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}
			lng, lat, raw, ok := ex.point(row)
			if !ok {
				results[i] = locator.Malformed(raw)
				return nil
			}
			results[i] = tg.index.Locate(lng, lat)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Summary{}, err
	}

	out := &Table{
		Header: append(append([]string{}, t.Header...), ColProperties, ColBlockGroupGEOID, ColTractGEOID, ColStatus),
		Rows:   make([][]string, len(t.Rows)),
	}

	var summary Summary
	summary.Rows = len(t.Rows)
	for i, row := range t.Rows {
		props, geoid, tract := renderResult(results[i])
		out.Rows[i] = append(append([]string{}, row...), props, geoid, tract, string(results[i].Status))

		switch results[i].Status {
		case locator.StatusFound:
			summary.Found++
		case locator.StatusNoMatch:
			summary.NoMatch++
		case locator.StatusMalformed:
			summary.Malformed++
		}
	}

	zap.L().Info("dataset: tagged table",
		zap.Int("rows", summary.Rows),
		zap.Int("found", summary.Found),
		zap.Int("no_match", summary.NoMatch),
		zap.Int("malformed", summary.Malformed),
	)

	return out, summary, nil
}

// renderResult serializes a lookup result for CSV cells. The first match in
// record order fills the GEOID columns; geo_properties carries one JSON
// object for the common single-match case and a JSON array when the point
// falls in overlapping polygons, so no match is ever dropped.
func renderResult(res locator.Result) (props, geoid, tract string) {
	if res.Status != locator.StatusFound || len(res.Matches) == 0 {
		return "", "", ""
	}

	first := res.Matches[0]
	var encoded []byte
	var err error
	if len(res.Matches) == 1 {
		encoded, err = json.Marshal(first.Properties)
	} else {
		all := make([]map[string]any, len(res.Matches))
		for i, m := range res.Matches {
			all[i] = m.Properties
		}
		encoded, err = json.Marshal(all)
	}
	if err != nil {
		zap.L().Warn("dataset: encode match properties", zap.Error(err))
		encoded = nil
	}

	return string(encoded), first.GEOID, first.TractGEOID
}
