package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finsight-labs/finsight/internal/extract"
	"github.com/finsight-labs/finsight/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for analysis sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/api", func(r chi.Router) {
			r.Post("/analyses", handleStartAnalysis(env))
			r.Get("/analyses/{id}", handleGetSession(env))
			r.Get("/analyses/{id}/events", handleEvents(env))
			r.Get("/analyses/{id}/result", handleResult(env))
			r.Delete("/analyses/{id}", handleCancel(env))
			r.Get("/providers", handleProviders(env))
			r.Get("/sessions", handleSessions(env))
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// analysisRequest is the POST /api/analyses body. Document payloads are
// base64 so spreadsheets survive the JSON trip.
type analysisRequest struct {
	Subject   string `json:"subject"`
	Documents []struct {
		Name string `json:"name"`
		MIME string `json:"mime"`
		Data string `json:"data"`
	} `json:"documents"`
}

func handleStartAnalysis(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body analysisRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		docs := make([]extract.Document, 0, len(body.Documents))
		for _, d := range body.Documents {
			data, err := base64.StdEncoding.DecodeString(d.Data)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("document %s: payload is not base64", d.Name))
				return
			}
			docs = append(docs, extract.Document{Name: d.Name, MIME: d.MIME, Data: data})
		}

		sessionID, err := env.Coordinator.Start(req.Context(), pipeline.Request{
			Subject:   body.Subject,
			Documents: docs,
		})
		if err != nil {
			if errors.Is(err, pipeline.ErrSessionActive) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"session_id": sessionID})
	}
}

func handleGetSession(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		session, err := env.Coordinator.Session(chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, session)
	}
}

// handleEvents streams session progress as server-sent events. The stream is
// finite: it closes after the terminal stage event.
func handleEvents(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		events, err := env.Coordinator.Subscribe(chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-req.Context().Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
				flusher.Flush()
			}
		}
	}
}

func handleResult(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		result, err := env.Coordinator.Result(chi.URLParam(req, "id"))
		if err != nil {
			switch {
			case errors.Is(err, pipeline.ErrSessionNotFound):
				writeError(w, http.StatusNotFound, err.Error())
			case errors.Is(err, pipeline.ErrSessionPending):
				writeError(w, http.StatusConflict, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func handleCancel(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		if err := env.Coordinator.Cancel(id); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"session_id": id, "status": "cancelling"})
	}
}

// handleProviders reports the configured fallback chains and which providers
// are currently sitting out a cool-down.
func handleProviders(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		limited := map[string]string{}
		for name, until := range env.Tracker.Snapshot() {
			limited[name] = until.UTC().Format(time.RFC3339)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"registered": env.Registry.List(),
			"routing":    env.Routing.Chains,
			"limited":    limited,
		})
	}
}

func handleSessions(env *analysisEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		sessions, err := env.Audit.ListSessions(req.Context(), 50)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
