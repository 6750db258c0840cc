package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"liboqs-ci/internal/core"
	"liboqs-ci/internal/storage"
)

// The agent is a bare job executor: POST a resolved job to /run and it
// executes the steps on this host, returning the job result.

type runRequest struct {
	RunID string           `json:"runId"`
	Job   core.ResolvedJob `json:"job"`
}

type agent struct {
	runner *core.Runner
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "9090"
	}
	dataDir := os.Getenv("LIBOQS_CI_DATA")
	if dataDir == "" {
		dataDir = "./agent-data"
	}
	source := os.Getenv("LIBOQS_CI_SOURCE")
	if source == "" {
		source = "."
	}

	a := &agent{
		runner: core.NewRunner(
			core.NewExecutor(source),
			storage.NewLogStorage(filepath.Join(dataDir, "logs")),
			nil, // the server owns the journal, not the agent
			filepath.Join(dataDir, "work"),
		),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/run", a.handleRun)

	fmt.Println("agent listening on port", port)
	log.Fatal(http.ListenAndServe(":"+port, mux))
}

func (a *agent) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.RunID == "" || req.Job.Name == "" || len(req.Job.Steps) == 0 {
		http.Error(w, "runId and a job with steps are required", http.StatusBadRequest)
		return
	}

	fmt.Printf("agent running job %s (run %s)\n", req.Job.Name, req.RunID)
	result := a.runner.RunJob(r.Context(), req.RunID, "", &req.Job)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
