package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streetscope/blockgeo/internal/dataset"
)

func TestTaggedPath(t *testing.T) {
	tests := []struct {
		path   string
		outDir string
		want   string
	}{
		{"listings.csv", ".", "listings_tagged.csv"},
		{"/data/permits.csv", "/out", "/out/permits_tagged.csv"},
		{"violations.xlsx", "out", filepath.Join("out", "violations_tagged.csv")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, taggedPath(tt.path, tt.outDir))
	}
}

func TestTagOne(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "listings.csv")
	csvData := strings.Join([]string{
		"id,Latitude,Longitude",
		"1,40.8448,-73.8648",
		"2,34.05,-118.24",
		"3,not-a-number,-73.9",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(input, []byte(csvData), 0o644))

	tagger := dataset.NewTagger(testIndex(t), 2)
	spec := dataset.PointSpec{LatColumn: "Latitude", LonColumn: "Longitude"}

	cmd := &cobra.Command{}
	cmd.SetContext(t.Context())
	err := tagOne(cmd, tagger, nil, spec, input, dir)
	require.NoError(t, err)

	out, err := dataset.ReadCSV(filepath.Join(dir, "listings_tagged.csv"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"id", "Latitude", "Longitude",
		dataset.ColProperties, dataset.ColBlockGroupGEOID, dataset.ColTractGEOID, dataset.ColStatus,
	}, out.Header)
	require.Len(t, out.Rows, 3)

	statusIdx, ok := out.ColumnIndex(dataset.ColStatus)
	require.True(t, ok)
	geoidIdx, ok := out.ColumnIndex(dataset.ColBlockGroupGEOID)
	require.True(t, ok)

	assert.Equal(t, "found", out.Rows[0][statusIdx])
	assert.Equal(t, "360050121011", out.Rows[0][geoidIdx])
	assert.Equal(t, "no_match", out.Rows[1][statusIdx])
	assert.Equal(t, "malformed", out.Rows[2][statusIdx])
}

func TestTagOneRecordsRun(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "points.csv")
	require.NoError(t, os.WriteFile(input, []byte("lat,lng\n40.8448,-73.8648\n"), 0o644))

	st := testStore(t)
	tagger := dataset.NewTagger(testIndex(t), 1)
	spec := dataset.PointSpec{LatColumn: "lat", LonColumn: "lng"}

	cmd := &cobra.Command{}
	cmd.SetContext(t.Context())
	err := tagOne(cmd, tagger, st, spec, input, dir)
	require.NoError(t, err)

	runs, err := st.ListRuns(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, input, runs[0].Dataset)
	assert.Equal(t, 1, runs[0].Rows)
	assert.Equal(t, 1, runs[0].Found)
}
