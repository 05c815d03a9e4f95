package main

import (
	"context"
	"encoding/json"
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

	"github.com/scribeworks/keyword-cli/internal/model"
	"github.com/scribeworks/keyword-cli/internal/pipeline"
	"github.com/scribeworks/keyword-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		progress := pipeline.NewMemoryNotifier()
		env, err := initEnv(ctx, pipeline.WithNotifier(pipeline.MultiNotifier{
			pipeline.NewLogNotifier(zap.L()),
			progress,
		}))
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{env: env, progress: progress, runCtx: ctx}
		r := newRouter(api)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(api *apiServer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", api.health)
	r.Post("/projects", api.createProject)
	r.Get("/projects", api.listProjects)
	r.Get("/projects/{id}/status", api.projectStatus)
	r.Get("/projects/{id}/results", api.projectResults)
	r.Get("/projects/{id}/ledger", api.projectLedger)
	r.Post("/projects/{id}/run", api.runProject)

	return r
}

type apiServer struct {
	env      *env
	progress *pipeline.MemoryNotifier
	// runCtx outlives individual requests; async pipeline runs are bound
	// to the server lifetime, not the request that started them.
	runCtx context.Context
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *apiServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) createProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string               `json:"name"`
		Seeds    []string             `json:"seeds"`
		Geo      string               `json:"geo"`
		Language string               `json:"language"`
		Focus    string               `json:"content_focus"`
		Hints    model.DiscoveryHints `json:"hints"`
		Run      bool                 `json:"run"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Seeds) == 0 {
		writeError(w, http.StatusBadRequest, "seeds are required")
		return
	}

	project, err := s.env.Runner.CreateProject(r.Context(), req.Name, req.Seeds, req.Geo, req.Language,
		model.Intent(req.Focus), req.Hints)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Run {
		s.startRun(project.ID)
	}
	writeJSON(w, http.StatusCreated, project)
}

func (s *apiServer) runProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.env.Store.GetProject(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.startRun(id)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "project_id": id})
}

func (s *apiServer) startRun(projectID string) {
	go func() {
		if err := s.env.Runner.Run(s.runCtx, projectID); err != nil {
			zap.L().Error("async run failed",
				zap.String("project_id", projectID),
				zap.Error(err),
			)
		}
	}()
}

func (s *apiServer) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.env.Store.ListProjects(r.Context(), store.ProjectFilter{
		Status: model.ProjectStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *apiServer) projectStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	project, err := s.env.Store.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	out := struct {
		*model.Project
		PercentComplete float64         `json:"percent_complete"`
		LastEvent       *pipeline.Event `json:"last_event,omitempty"`
	}{
		Project:         project,
		PercentComplete: project.LastCheckpoint.PercentComplete(),
	}
	if event, ok := s.progress.Latest(id); ok {
		out.LastEvent = &event
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) projectResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := s.env.Store.GetResults(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if results == nil {
		writeError(w, http.StatusNotFound, "results not available")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *apiServer) projectLedger(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := s.env.Store.ListLedger(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
