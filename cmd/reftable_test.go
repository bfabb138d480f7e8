package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetscope/blockgeo/internal/reftable"
)

func TestWriteAttrsCSV(t *testing.T) {
	table := reftable.Table{
		Columns: []string{"BoroName", "GEOID"},
		Rows: []map[string]any{
			{"BoroName": "Bronx", "GEOID": "360050121011"},
			{"BoroName": "Brooklyn"}, // missing column renders empty
		},
	}

	path := filepath.Join(t.TempDir(), "attrs.csv")
	require.NoError(t, writeAttrsCSV(table, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "BoroName,GEOID\nBronx,360050121011\nBrooklyn,\n", string(data))
}

func TestWriteLookupJSON(t *testing.T) {
	lookup := map[string]string{"360050121011": "36005012101"}

	path := filepath.Join(t.TempDir(), "lookup.json")
	require.NoError(t, writeLookupJSON(lookup, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, lookup, got)
}
