package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streetscope/blockgeo/internal/locator"
	"github.com/streetscope/blockgeo/internal/store"
)

var (
	servePort       int
	serveBoundaries string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lookup HTTP server",
	Long: `Loads the boundary index into memory and serves point lookups over HTTP.

Endpoints:
  GET /health
  GET /v1/locate?lat=<lat>&lng=<lng>
  GET /v1/tract/{geoid}
  GET /v1/runs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ix, err := loadIndex(serveBoundaries)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ix, st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(ix *locator.Index, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/locate", func(w http.ResponseWriter, r *http.Request) {
		lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
		lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
		if latErr != nil || lngErr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "lat and lng query params are required"})
			return
		}

		res := ix.Locate(lng, lat)
		writeJSON(w, http.StatusOK, res)
	})

	r.Get("/v1/tract/{geoid}", func(w http.ResponseWriter, r *http.Request) {
		geoid := chi.URLParam(r, "geoid")
		tract, err := st.GetTractCode(r.Context(), geoid)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown geoid"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"geoid": geoid, "tract_code": tract})
	})

	r.Get("/v1/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := st.ListRuns(r.Context(), 50)
		if err != nil {
			zap.L().Error("serve: list runs", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list runs failed"})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveBoundaries, "boundaries", "", "boundary file (.geojson/.json or .shp), default from config")
	rootCmd.AddCommand(serveCmd)
}
