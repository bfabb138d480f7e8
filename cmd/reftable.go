package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streetscope/blockgeo/internal/reftable"
)

var (
	reftableBoundaries string
	reftableAttrsOut   string
	reftableLookupOut  string
	reftableNoStore    bool
)

var reftableCmd = &cobra.Command{
	Use:   "reftable",
	Short: "Build reference tables from the boundary file",
	Long: `Flattens boundary feature properties into an attribute table and builds
the block-group-to-tract lookup, writing both as artifacts and persisting
them to the store.

The lookup keys are 11-digit tract GEOIDs composed from the state prefix,
the borough's county code, and the tract code carried in the boundary
properties; values are the raw tract codes.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		groups, err := loadBoundaries(reftableBoundaries)
		if err != nil {
			return err
		}

		attrs := reftable.Flatten(groups)
		lookup, err := reftable.TractLookup(groups,
			cfg.Boundaries.StatePrefix,
			cfg.Boundaries.TractKey,
			cfg.Boundaries.BoroughKey,
		)
		if err != nil {
			return err
		}
		zap.L().Info("built reference tables",
			zap.Int("attr_rows", len(attrs.Rows)),
			zap.Int("attr_columns", len(attrs.Columns)),
			zap.Int("lookup_entries", len(lookup)),
		)

		if reftableAttrsOut != "" {
			if err := writeAttrsCSV(attrs, reftableAttrsOut); err != nil {
				return err
			}
			zap.L().Info("wrote attribute table", zap.String("path", reftableAttrsOut))
		}
		if reftableLookupOut != "" {
			if err := writeLookupJSON(lookup, reftableLookupOut); err != nil {
				return err
			}
			zap.L().Info("wrote tract lookup", zap.String("path", reftableLookupOut))
		}

		if reftableNoStore {
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.SaveAttributes(ctx, attrs.Columns, attrs.Rows); err != nil {
			return eris.Wrap(err, "reftable: save attributes")
		}
		if err := st.SaveTractLookup(ctx, lookup); err != nil {
			return eris.Wrap(err, "reftable: save tract lookup")
		}
		zap.L().Info("persisted reference tables", zap.String("driver", cfg.Store.Driver))

		return nil
	},
}

// writeAttrsCSV writes the attribute table with its first-seen column order.
func writeAttrsCSV(t reftable.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "reftable: create attrs file")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return eris.Wrap(err, "reftable: write header")
	}
	for _, row := range t.Rows {
		record := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			if v, ok := row[col]; ok {
				record[i] = fmt.Sprint(v)
			}
		}
		if err := w.Write(record); err != nil {
			return eris.Wrap(err, "reftable: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "reftable: flush attrs file")
}

func writeLookupJSON(lookup map[string]string, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "reftable: create lookup file")
	}
	defer f.Close() //nolint:errcheck

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(lookup), "reftable: encode lookup")
}

func init() {
	reftableCmd.Flags().StringVar(&reftableBoundaries, "boundaries", "", "boundary file (.geojson/.json or .shp), default from config")
	reftableCmd.Flags().StringVar(&reftableAttrsOut, "attrs-out", "", "write the flattened attribute table CSV to this path")
	reftableCmd.Flags().StringVar(&reftableLookupOut, "lookup-out", "", "write the tract lookup JSON to this path")
	reftableCmd.Flags().BoolVar(&reftableNoStore, "no-store", false, "skip persisting tables to the store")
	rootCmd.AddCommand(reftableCmd)
}
