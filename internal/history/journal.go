package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"liboqs-ci/internal/identity"
)

// Entry is the payload a caller records for one executed step. The journal
// fills in index, timestamp, chain link, hash and signature.
type Entry struct {
	RunID    string
	Workflow string
	Job      string
	Step     string
	ExitCode int
	LogPath  string
	LogHash  string
}

// Journal is an append-only, hash-chained record of executed steps,
// persisted as JSON lines. Appends are signed with the runner identity and
// guarded by a file lock so concurrent jobs of one workflow interleave
// safely.
type Journal struct {
	mu      sync.Mutex
	records []*Record
	path    string
	signer  *identity.Signer
	lock    *flock.Flock
}

// Open loads an existing journal file or starts an empty one. The signer may
// be nil, in which case records are chained but unsigned.
func Open(path string, signer *identity.Signer) (*Journal, error) {
	j := &Journal{
		path:   path,
		signer: signer,
		lock:   flock.New(path + ".lock"),
	}
	if err := j.reload(); err != nil {
		return nil, err
	}
	return j, nil
}

// reload replaces the in-memory view with the file's current contents.
// Callers must hold mu.
func (j *Journal) reload() error {
	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		j.records = nil
		return nil
	}
	if err != nil {
		return err
	}

	var records []*Record
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return fmt.Errorf("decode journal record: %w", err)
		}
		records = append(records, &rec)
	}
	j.records = records
	return nil
}

// Append chains, signs and persists one entry. The chain link is taken from
// the file's tail while the flock is held, so appends from another handle on
// the same file (another process, another Journal) extend the chain instead
// of forking it.
func (j *Journal) Append(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.lock.Lock(); err != nil {
		return fmt.Errorf("lock journal: %w", err)
	}
	defer j.lock.Unlock()

	if err := j.reload(); err != nil {
		return fmt.Errorf("reload journal: %w", err)
	}

	rec := &Record{
		Index:     len(j.records),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RunID:     e.RunID,
		Workflow:  e.Workflow,
		Job:       e.Job,
		Step:      e.Step,
		ExitCode:  e.ExitCode,
		LogPath:   e.LogPath,
		LogHash:   e.LogHash,
	}
	if len(j.records) > 0 {
		rec.PrevHash = j.records[len(j.records)-1].Hash
	}

	h, err := rec.ComputeHash()
	if err != nil {
		return fmt.Errorf("compute record hash: %w", err)
	}
	rec.Hash = h

	if j.signer != nil {
		rec.Signature = j.signer.Sign([]byte(rec.Hash))
		rec.PubKey = j.signer.PublicKeyHex()
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}

	j.records = append(j.records, rec)
	return nil
}

// Records returns the journal contents, oldest first.
func (j *Journal) Records() []*Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*Record, len(j.records))
	copy(out, j.records)
	return out
}

// LastHash returns the newest record's hash, or "" on an empty journal.
func (j *Journal) LastHash() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.records) == 0 {
		return ""
	}
	return j.records[len(j.records)-1].Hash
}
