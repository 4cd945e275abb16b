package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/kmz2csv/internal/export"
	"github.com/sells-group/kmz2csv/internal/kml"
)

// maxUploadBytes bounds the multipart form kept in memory per request.
const maxUploadBytes = 64 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the upload server for conversion requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close() //nolint:errcheck

		mux := newServeMux(env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newServeMux builds the request routes over a wired environment.
func newServeMux(env *env) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"}) //nolint:errcheck
	})

	mux.HandleFunc("POST /convert", func(w http.ResponseWriter, r *http.Request) {
		handleConvert(env, w, r)
	})

	return mux
}

// handleConvert runs one conversion request: upload in, attachment out.
// Input rejections map to 400 with a JSON error body; everything else to
// 500. Per-point geocode failures never surface here.
func handleConvert(env *env, w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	kmlBytes, err := kml.SelectDocument(data, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := kml.Parse(kmlBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, "document is not valid KML")
		return
	}

	// Presence-based flag: any with_geocode field enables the pass.
	_, withGeocode := r.MultipartForm.Value["with_geocode"]

	format := r.FormValue("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}

	table, err := env.converter.Convert(r.Context(), doc, export.Options{Geocode: withGeocode})
	if err != nil {
		if eris.Is(err, kml.ErrNoPoints) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("conversion failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "conversion failed")
		return
	}

	if format == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="output.xlsx"`)
		if err := export.WriteXLSX(w, table); err != nil {
			zap.L().Error("write xlsx response", zap.Error(err))
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="output.csv"`)
	if err := export.WriteCSV(w, table); err != nil {
		zap.L().Error("write csv response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
