package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"liboqs-ci/internal/core"
	"liboqs-ci/internal/history"
	"liboqs-ci/internal/identity"
	"liboqs-ci/internal/server"
	"liboqs-ci/internal/storage"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dataDir := os.Getenv("LIBOQS_CI_DATA")
	if dataDir == "" {
		dataDir = "./data"
	}
	source := os.Getenv("LIBOQS_CI_SOURCE")
	if source == "" {
		source = "."
	}

	signer, err := identity.LoadOrGenerate(filepath.Join(dataDir, "keys"))
	if err != nil {
		log.Fatalf("init runner identity: %v", err)
	}
	journal, err := history.Open(filepath.Join(dataDir, "journal.jsonl"), signer)
	if err != nil {
		log.Fatalf("open journal: %v", err)
	}

	logs := storage.NewLogStorage(filepath.Join(dataDir, "logs"))
	runner := core.NewRunner(core.NewExecutor(source), logs, journal, filepath.Join(dataDir, "work"))
	srv := server.New(core.NewScheduler(runner), logs, journal)

	fmt.Println("liboqs-ci server listening on port", port)
	log.Fatal(http.ListenAndServe(":"+port, srv.Routes()))
}
