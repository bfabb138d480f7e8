package main

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streetscope/blockgeo/internal/dataset"
	"github.com/streetscope/blockgeo/internal/model"
	"github.com/streetscope/blockgeo/internal/store"
)

var (
	tagBoundaries  string
	tagLatColumn   string
	tagLngColumn   string
	tagPointColumn string
	tagOutDir      string
	tagConcurrency int
	tagNoStore     bool
)

var tagCmd = &cobra.Command{
	Use:   "tag <dataset> [dataset...]",
	Short: "Append block-group and tract columns to point datasets",
	Long: `Reads one or more CSV/XLSX datasets with point coordinates, resolves each
point against the boundary index, and writes a tagged copy of each dataset
with four appended columns: the matched block group's properties as JSON,
the block-group GEOID, the tract GEOID, and the lookup status.

Coordinates come either from separate columns (--lat-column/--lng-column)
or from a single "(lat, lon)" column (--point-column).

Examples:
  blockgeo tag --boundaries cb_2018_36_bg_500k.geojson \
    --lat-column Latitude --lng-column Longitude listings.csv

  blockgeo tag --point-column Location permits.csv violations.xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ix, err := loadIndex(tagBoundaries)
		if err != nil {
			return err
		}

		concurrency := tagConcurrency
		if concurrency == 0 {
			concurrency = cfg.Tag.Concurrency
		}
		tagger := dataset.NewTagger(ix, concurrency)

		spec := dataset.PointSpec{
			LatColumn:      tagLatColumn,
			LonColumn:      tagLngColumn,
			CombinedColumn: tagPointColumn,
		}

		var st store.Store
		if !tagNoStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		outDir := tagOutDir
		if outDir == "" {
			outDir = cfg.Tag.OutDir
		}

		var failed int
		for _, path := range args {
			if err := tagOne(cmd, tagger, st, spec, path, outDir); err != nil {
				failed++
				zap.L().Error("tag: dataset failed",
					zap.String("dataset", path),
					zap.Error(err),
				)
			}
		}

		if failed > 0 {
			return eris.Errorf("tag: %d of %d datasets failed", failed, len(args))
		}
		return nil
	},
}

func tagOne(cmd *cobra.Command, tagger *dataset.Tagger, st store.Store, spec dataset.PointSpec, path, outDir string) error {
	ctx := cmd.Context()

	t, err := dataset.Read(path)
	if err != nil {
		return err
	}
	zap.L().Info("tag: read dataset",
		zap.String("dataset", path),
		zap.Int("rows", len(t.Rows)),
	)

	outPath := taggedPath(path, outDir)

	var run *model.Run
	if st != nil {
		run, err = st.CreateRun(ctx, path, outPath)
		if err != nil {
			return err
		}
	}

	tagged, summary, err := tagger.Tag(ctx, t, spec)
	if err != nil {
		if run != nil {
			_ = st.CompleteRun(ctx, run.ID, model.RunStatusFailed, 0, 0, 0, 0)
		}
		return err
	}

	if err := dataset.WriteCSV(tagged, outPath); err != nil {
		if run != nil {
			_ = st.CompleteRun(ctx, run.ID, model.RunStatusFailed, summary.Rows, summary.Found, summary.NoMatch, summary.Malformed)
		}
		return err
	}

	if run != nil {
		if err := st.CompleteRun(ctx, run.ID, model.RunStatusCompleted, summary.Rows, summary.Found, summary.NoMatch, summary.Malformed); err != nil {
			return err
		}
	}

	zap.L().Info("tag: dataset complete",
		zap.String("dataset", path),
		zap.String("output", outPath),
		zap.Int("rows", summary.Rows),
		zap.Int("found", summary.Found),
		zap.Int("no_match", summary.NoMatch),
		zap.Int("malformed", summary.Malformed),
	)
	return nil
}

// taggedPath derives the output path for a tagged dataset. XLSX inputs are
// written back as CSV.
func taggedPath(path, outDir string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	return filepath.Join(outDir, name+"_tagged.csv")
}

func init() {
	tagCmd.Flags().StringVar(&tagBoundaries, "boundaries", "", "boundary file (.geojson/.json or .shp), default from config")
	tagCmd.Flags().StringVar(&tagLatColumn, "lat-column", "", "latitude column name")
	tagCmd.Flags().StringVar(&tagLngColumn, "lng-column", "", "longitude column name")
	tagCmd.Flags().StringVar(&tagPointColumn, "point-column", "", `single "(lat, lon)" column name`)
	tagCmd.Flags().StringVar(&tagOutDir, "out-dir", "", "directory for tagged outputs (default from config)")
	tagCmd.Flags().IntVar(&tagConcurrency, "concurrency", 0, "rows resolved concurrently (default from config)")
	tagCmd.Flags().BoolVar(&tagNoStore, "no-store", false, "skip recording runs in the store")
	rootCmd.AddCommand(tagCmd)
}
