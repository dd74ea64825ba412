package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"matrixci/internal/core"
	"matrixci/internal/ctxlog"
	"matrixci/internal/ledger"
	"matrixci/internal/storage"
)

const maxPipelineBytes = 1 << 20

// Agent is an external runner that pulls expanded jobs.
type Agent struct {
	ID   string `json:"id"`
	Host string `json:"host"`
}

// SavedPlans finds plans persisted by an earlier run.
type SavedPlans interface {
	FindPlan(id string) (*core.Plan, error)
}

// Server accepts pipeline documents, expands them and hands the jobs to agents.
type Server struct {
	mu     sync.Mutex
	runner *core.Runner
	ledger *ledger.Ledger
	sched  *core.Scheduler
	plans  map[string]*core.Plan
	saved  SavedPlans
	agents map[string]Agent
	logger *slog.Logger
}

// New creates a server. The ledger and saved plans are optional; plans missing
// from memory are looked up in saved.
func New(runner *core.Runner, l *ledger.Ledger, saved SavedPlans, logger *slog.Logger) *Server {
	return &Server{
		runner: runner,
		ledger: l,
		saved:  saved,
		sched:  core.NewScheduler(),
		plans:  make(map[string]*core.Plan),
		agents: make(map[string]Agent),
		logger: logger,
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/pipelines", func(r chi.Router) {
		r.Post("/", s.handleSubmitPipeline)
		r.Get("/{id}", s.handleGetPipeline)
		r.Get("/{id}/jobs", s.handleGetPipelineJobs)
	})

	r.Post("/agents/register", s.handleRegisterAgent)
	r.Get("/agents/{id}/jobs/next", s.handleNextJob)

	r.Get("/ledger/verify", s.handleVerifyLedger)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("matrixci server listening.", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down server.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

//=============================== pipelines ===============================//

// POST /pipelines -> submit a pipeline YAML
func (s *Server) handleSubmitPipeline(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPipelineBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("pipeline exceeds %d bytes", tooLarge.Limit), "")
			return
		}
		writeError(w, http.StatusBadRequest, "cannot read body", "")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "submitted"
	}

	ctx := ctxlog.WithLogger(r.Context(), s.logger.With("request_id", middleware.GetReqID(r.Context())))
	plan, err := s.runner.Run(ctx, name, data)
	if err != nil {
		if kind := core.ErrorKind(err); kind != "" {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), kind)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}

	s.mu.Lock()
	s.plans[plan.ID] = plan
	s.mu.Unlock()
	s.sched.Enqueue(plan.ID, plan.Jobs)

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     plan.ID,
		"status": "expanded",
		"jobs":   len(plan.Jobs),
	})
}

// GET /pipelines/{id}
func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.plan(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "pipeline not found", "")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// GET /pipelines/{id}/jobs
func (s *Server) handleGetPipelineJobs(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.plan(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "pipeline not found", "")
		return
	}
	writeJSON(w, http.StatusOK, plan.Jobs)
}

func (s *Server) plan(id string) (*core.Plan, bool) {
	s.mu.Lock()
	p, ok := s.plans[id]
	s.mu.Unlock()
	if ok || s.saved == nil {
		return p, ok
	}

	p, err := s.saved.FindPlan(id)
	if err != nil {
		if !errors.Is(err, storage.ErrPlanNotFound) {
			s.logger.Warn("Cannot load saved plan.", "plan", id, "error", err)
		}
		return nil, false
	}
	s.mu.Lock()
	s.plans[id] = p
	s.mu.Unlock()
	return p, true
}

//=============================== agents ===============================//

// POST /agents/register
func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var agent Agent
	if err := json.NewDecoder(r.Body).Decode(&agent); err != nil || agent.ID == "" {
		writeError(w, http.StatusBadRequest, "bad request", "")
		return
	}

	s.mu.Lock()
	s.agents[agent.ID] = agent
	s.mu.Unlock()

	s.logger.Info("Agent registered.", "agent", agent.ID, "host", agent.Host)
	writeJSON(w, http.StatusOK, agent)
}

// GET /agents/{id}/jobs/next
func (s *Server) handleNextJob(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")

	s.mu.Lock()
	_, known := s.agents[agentID]
	s.mu.Unlock()
	if !known {
		writeError(w, http.StatusNotFound, "agent not registered", "")
		return
	}

	next, ok := s.sched.Next()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.logger.Info("Dispatching job.", "job", next.Job.ID, "plan", next.PlanID, "agent", agentID)
	writeJSON(w, http.StatusOK, next)
}

//=============================== ledger ===============================//

// GET /ledger/verify
func (s *Server) handleVerifyLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "no ledger configured", "")
		return
	}
	if err := s.ledger.VerifyChain(); err != nil {
		writeError(w, http.StatusInternalServerError, "ledger verification failed: "+err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"entries": s.ledger.NextIndex(),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request.",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	body := map[string]string{"error": msg}
	if kind != "" {
		body["kind"] = kind
	}
	writeJSON(w, status, body)
}
