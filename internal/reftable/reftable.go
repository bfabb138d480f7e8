// Package reftable flattens boundary feature properties into tabular
// lookups used to join tagged datasets against census reference data.
package reftable

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/streetscope/blockgeo/internal/boundary"
	"github.com/streetscope/blockgeo/internal/fips"
)

// Table is an ordered property table: one row per input feature, columns
// in first-seen key order.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// Flatten converts boundary records to a property table, preserving input
// order. The column set is the union of all property keys, ordered by first
// appearance so output is deterministic for identical input.
func Flatten(groups []boundary.BlockGroup) Table {
	var columns []string
	seen := make(map[string]bool)

	rows := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		row := make(map[string]any, len(g.Properties))
		for k, v := range g.Properties {
			row[k] = v
		}
		rows = append(rows, row)
	}

	// Column order must not depend on map iteration: scan per-row keys in
	// sorted order within each row's first pass.
	for _, g := range groups {
		for _, k := range sortedKeys(g.Properties) {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}

	return Table{Columns: columns, Rows: rows}
}

// Pair is one identifier/value entry for lookup construction.
type Pair struct {
	Key   string
	Value string
}

// BuildLookup builds an identifier map from ordered pairs. Duplicate keys
// resolve last-write-wins: the pair appearing latest in input order is kept.
// This is the documented conflict policy, not an accident of map iteration,
// so callers must supply pairs in a stable order.
func BuildLookup(pairs []Pair) map[string]string {
	lookup := make(map[string]string, len(pairs))
	for _, p := range pairs {
		lookup[p.Key] = p.Value
	}
	return lookup
}

// TractLookup composes the borough-tract identifier for every record and
// maps it to the record's raw tract code. The composite key format matches
// the tract GEOIDs derived from block-group lookups, so the two sides join
// exactly. An unrecognized borough name aborts the build.
func TractLookup(groups []boundary.BlockGroup, statePrefix, tractKey, boroughKey string) (map[string]string, error) {
	pairs := make([]Pair, 0, len(groups))
	for i, g := range groups {
		tract := stringProp(g.Properties, tractKey)
		borough := stringProp(g.Properties, boroughKey)
		if tract == "" || borough == "" {
			return nil, eris.Errorf("reftable: record %d missing %q or %q property", i, tractKey, boroughKey)
		}
		geoid, err := fips.ComposeTractGEOID(statePrefix, tract, borough)
		if err != nil {
			return nil, eris.Wrapf(err, "reftable: record %d", i)
		}
		pairs = append(pairs, Pair{Key: geoid, Value: tract})
	}
	return BuildLookup(pairs), nil
}

// stringProp fetches a property as a string, rendering numeric scalars the
// way they appear in source tables.
func stringProp(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
