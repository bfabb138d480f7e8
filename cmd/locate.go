package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/streetscope/blockgeo/internal/locator"
)

var (
	locateBoundaries string
	locateLat        float64
	locateLng        float64
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Resolve a single point to its block group",
	Long: `Resolves one coordinate pair against the boundary index and prints the
result as JSON: the matched block groups with their properties, the derived
tract GEOID, and the lookup status (found, no_match, or malformed).

Example:
  blockgeo locate --lat 40.8448 --lng -73.8648`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ix, err := loadIndex(locateBoundaries)
		if err != nil {
			return err
		}

		res := ix.Locate(locateLng, locateLat)
		return printResult(res)
	},
}

func printResult(res locator.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func init() {
	locateCmd.Flags().Float64Var(&locateLat, "lat", 0, "latitude (required)")
	locateCmd.Flags().Float64Var(&locateLng, "lng", 0, "longitude (required)")
	locateCmd.Flags().StringVar(&locateBoundaries, "boundaries", "", "boundary file (.geojson/.json or .shp), default from config")
	_ = locateCmd.MarkFlagRequired("lat")
	_ = locateCmd.MarkFlagRequired("lng")
	rootCmd.AddCommand(locateCmd)
}
