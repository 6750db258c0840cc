package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"liboqs-ci/internal/config"
	"liboqs-ci/internal/core"
	"liboqs-ci/internal/history"
	"liboqs-ci/internal/storage"
)

// Run is one triggered workflow run and its eventual outcome.
type Run struct {
	ID        string               `json:"id"`
	Pipeline  string               `json:"pipeline"`
	Workflow  string               `json:"workflow"`
	Status    string               `json:"status"`
	Error     string               `json:"error,omitempty"`
	Result    *core.WorkflowResult `json:"result,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

// Server accepts pipeline documents, resolves them, triggers workflow runs
// and reports their status.
type Server struct {
	mu        sync.Mutex
	pipelines map[string]*config.Pipeline
	runs      map[string]*Run

	scheduler *core.Scheduler
	logs      *storage.LogStorage
	journal   *history.Journal
}

func New(scheduler *core.Scheduler, logs *storage.LogStorage, journal *history.Journal) *Server {
	return &Server{
		pipelines: make(map[string]*config.Pipeline),
		runs:      make(map[string]*Run),
		scheduler: scheduler,
		logs:      logs,
		journal:   journal,
	}
}

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/pipelines", s.handleSubmitPipeline)
	r.Get("/pipelines/{pipelineID}", s.handleGetPipeline)
	r.Post("/pipelines/{pipelineID}/workflows/{workflow}/run", s.handleTriggerWorkflow)

	r.Get("/runs/{runID}", s.handleGetRun)
	r.Get("/runs/{runID}/jobs/{job}/steps/{step}/log", s.handleGetStepLog)

	r.Get("/journal/verify", s.handleVerifyJournal)
	return r
}

// POST /pipelines: submit a pipeline document (YAML body).
func (s *Server) handleSubmitPipeline(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	pipeline, err := config.Parse(data)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.pipelines[id] = pipeline
	s.mu.Unlock()

	respond(w, http.StatusCreated, map[string]string{"id": id})
}

// GET /pipelines/{id}: the document resolved into concrete jobs.
func (s *Server) handleGetPipeline(w http.ResponseWriter, r *http.Request) {
	pipeline, ok := s.pipeline(chi.URLParam(r, "pipelineID"))
	if !ok {
		httpError(w, http.StatusNotFound, "pipeline not found")
		return
	}

	jobs, err := core.ResolveAll(pipeline)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// POST /pipelines/{id}/workflows/{name}/run: trigger a workflow run. The
// run executes in the background; poll /runs/{id} for the outcome.
func (s *Server) handleTriggerWorkflow(w http.ResponseWriter, r *http.Request) {
	pipelineID := chi.URLParam(r, "pipelineID")
	workflow := chi.URLParam(r, "workflow")

	pipeline, ok := s.pipeline(pipelineID)
	if !ok {
		httpError(w, http.StatusNotFound, "pipeline not found")
		return
	}
	if _, ok := pipeline.Workflows[workflow]; !ok {
		httpError(w, http.StatusNotFound, fmt.Sprintf("unknown workflow %q", workflow))
		return
	}

	run := &Run{
		ID:        uuid.NewString(),
		Pipeline:  pipelineID,
		Workflow:  workflow,
		Status:    core.StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	accepted := *run
	go s.execute(run, pipeline)

	respond(w, http.StatusAccepted, accepted)
}

func (s *Server) execute(run *Run, pipeline *config.Pipeline) {
	result, err := s.scheduler.RunWorkflow(context.Background(), pipeline, run.ID, run.Workflow)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case err != nil:
		run.Status = core.StatusFailed
		run.Error = err.Error()
	case result.Failed():
		run.Status = core.StatusFailed
		run.Result = result
		if result.Err != nil {
			run.Error = result.Err.Error()
		}
	default:
		run.Status = core.StatusSuccess
		run.Result = result
	}
}

// GET /runs/{id}
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.run(chi.URLParam(r, "runID"))
	if !ok {
		httpError(w, http.StatusNotFound, "run not found")
		return
	}
	respond(w, http.StatusOK, run)
}

// GET /runs/{id}/jobs/{job}/steps/{n}/log: one executed step output.
func (s *Server) handleGetStepLog(w http.ResponseWriter, r *http.Request) {
	stepNum, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil || stepNum < 1 {
		httpError(w, http.StatusBadRequest, "bad step number")
		return
	}

	run, ok := s.run(chi.URLParam(r, "runID"))
	if !ok {
		httpError(w, http.StatusNotFound, "run not found")
		return
	}
	if run.Result == nil {
		httpError(w, http.StatusNotFound, "run has no results yet")
		return
	}

	job := chi.URLParam(r, "job")
	for _, jr := range run.Result.Jobs {
		if jr.Job != job {
			continue
		}
		if stepNum > len(jr.Steps) {
			httpError(w, http.StatusNotFound, "step was not executed")
			return
		}
		sr := jr.Steps[stepNum-1]
		if sr.LogPath == "" {
			httpError(w, http.StatusNotFound, "no log for step")
			return
		}
		data, err := s.logs.ReadLog(sr.LogPath)
		if err != nil {
			httpError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(data)
		return
	}
	httpError(w, http.StatusNotFound, "job not found in run")
}

// GET /journal/verify
func (s *Server) handleVerifyJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		httpError(w, http.StatusNotFound, "no journal configured")
		return
	}
	if err := s.journal.Verify(); err != nil {
		httpError(w, http.StatusConflict, "journal verification failed: "+err.Error())
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) pipeline(id string) (*config.Pipeline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pipelines[id]
	return p, ok
}

// run returns a snapshot of a run, taken under the lock since the background
// executor mutates runs as they finish.
func (s *Server) run(id string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}
