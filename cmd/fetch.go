package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streetscope/blockgeo/internal/fetch"
)

var fetchOut string

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download a boundary file",
	Long: `Downloads a boundary file (GeoJSON or zipped shapefile) with retry and
rate limiting.

Example:
  blockgeo fetch --out cb_2018_36_bg_500k.geojson \
    https://data.cityofnewyork.us/api/geospatial/bg-geojson`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := fetch.New(fetch.Options{
			UserAgent:  cfg.Fetch.UserAgent,
			Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Fetch.MaxRetries,
			RatePerSec: cfg.Fetch.RatePerSec,
		})

		n, err := f.DownloadToFile(cmd.Context(), args[0], fetchOut)
		if err != nil {
			return err
		}

		zap.L().Info("fetch complete",
			zap.String("url", args[0]),
			zap.String("out", fetchOut),
			zap.Int64("bytes", n),
		)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchOut, "out", "boundaries.geojson", "output path")
	rootCmd.AddCommand(fetchCmd)
}
