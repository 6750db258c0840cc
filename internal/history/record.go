package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Record is one tamper-evident journal entry for an executed step. Hash
// covers the canonical fields and PrevHash links it to its predecessor;
// Signature covers Hash.
type Record struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	RunID     string `json:"runId"`
	Workflow  string `json:"workflow"`
	Job       string `json:"job"`
	Step      string `json:"step"`
	ExitCode  int    `json:"exitCode"`
	LogPath   string `json:"logPath,omitempty"`
	LogHash   string `json:"logHash"`
	PrevHash  string `json:"prevHash"`
	Hash      string `json:"hash"`
	Signature string `json:"signature,omitempty"`
	PubKey    string `json:"pubKey,omitempty"`
}

// canonicalData returns the JSON bytes the record hash is computed over.
// Hash, Signature and PubKey are excluded.
func (r *Record) canonicalData() ([]byte, error) {
	view := struct {
		Index     int    `json:"index"`
		Timestamp string `json:"timestamp"`
		RunID     string `json:"runId"`
		Workflow  string `json:"workflow"`
		Job       string `json:"job"`
		Step      string `json:"step"`
		ExitCode  int    `json:"exitCode"`
		LogPath   string `json:"logPath"`
		LogHash   string `json:"logHash"`
		PrevHash  string `json:"prevHash"`
	}{
		Index:     r.Index,
		Timestamp: r.Timestamp,
		RunID:     r.RunID,
		Workflow:  r.Workflow,
		Job:       r.Job,
		Step:      r.Step,
		ExitCode:  r.ExitCode,
		LogPath:   r.LogPath,
		LogHash:   r.LogHash,
		PrevHash:  r.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash calculates SHA-256 over canonicalData.
func (r *Record) ComputeHash() (string, error) {
	data, err := r.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
