package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rategrid/contract-extractor/internal/extractor"
	"github.com/rategrid/contract-extractor/internal/model"
	"github.com/rategrid/contract-extractor/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the extraction HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		ex, err := newExtractor()
		if err != nil {
			return err
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Post("/v1/extract", handleExtract(ex, st))
		r.Get("/v1/runs", handleListRuns(st))
		r.Get("/v1/runs/{id}", handleGetRun(st))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

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

// extractRequest is the POST /v1/extract body. The document travels as
// base64 so the caller's rate-management system can forward uploads as-is.
type extractRequest struct {
	Document string                  `json:"document"`
	MIMEType string                  `json:"mimeType"`
	Context  model.ExtractionContext `json:"context"`
}

func handleExtract(ex *extractor.Extractor, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Document == "" {
			writeError(w, http.StatusBadRequest, "document is required")
			return
		}

		docBytes, err := base64.StdEncoding.DecodeString(req.Document)
		if err != nil {
			writeError(w, http.StatusBadRequest, "document must be base64")
			return
		}
		mimeType := req.MIMEType
		if mimeType == "" {
			mimeType = "application/pdf"
		}

		run, err := st.CreateRun(r.Context(), "")
		if err != nil {
			zap.L().Error("create run failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store unavailable")
			return
		}

		// Accept now, extract in the background; callers poll /v1/runs/{id}.
		// The request context dies with the response, so the extraction runs
		// on its own.
		go func() {
			ctx := context.Background()
			result, err := ex.Extract(ctx, extractor.Document{Bytes: docBytes, MIMEType: mimeType}, req.Context)
			if err != nil {
				zap.L().Error("extraction failed", zap.String("run_id", run.ID), zap.Error(err))
				if ferr := st.FailRun(ctx, run.ID, err); ferr != nil {
					zap.L().Error("fail run failed", zap.Error(ferr))
				}
				return
			}
			if err := st.CompleteRun(ctx, run.ID, result); err != nil {
				zap.L().Error("complete run failed", zap.String("run_id", run.ID), zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]any{
			"runId":  run.ID,
			"status": run.Status,
		})
	}
}

func handleListRuns(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		runs, err := st.ListRuns(r.Context(), limit)
		if err != nil {
			zap.L().Error("list runs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "store unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

func handleGetRun(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
