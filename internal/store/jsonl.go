package store

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/collectifor/collectifor/internal/types"
)

// Record is one JSONL line: a finding tagged with its run.
type Record struct {
	RunID       string        `json:"run_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Fingerprint string        `json:"fingerprint"`
	Finding     types.Finding `json:"finding"`
}

// JSONL appends findings to a JSON Lines file.
type JSONL struct {
	path  string
	runID string
	now   func() time.Time
}

// NewJSONL creates a JSONL sink. Each sink gets a fresh run ID.
func NewJSONL(path string) *JSONL {
	return &JSONL{path: path, runID: uuid.New().String(), now: time.Now}
}

// RunID identifies the records written by this sink.
func (j *JSONL) RunID() string { return j.runID }

// StoreFindings implements Sink.
func (j *JSONL) StoreFindings(_ context.Context, findings []types.Finding) error {
	// Owner-only permissions.
	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "open jsonl store")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	ts := j.now().UTC()
	for _, fd := range findings {
		fd = fd.Normalize()
		rec := Record{RunID: j.runID, Timestamp: ts, Fingerprint: fd.Fingerprint(), Finding: fd}
		if err := enc.Encode(rec); err != nil {
			return errors.Wrap(err, "write jsonl record")
		}
	}
	return nil
}

// Close implements Sink.
func (j *JSONL) Close() error { return nil }

// ReadJSONL loads every record from a JSONL store.
func ReadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open jsonl store")
	}
	defer f.Close()

	var out []Record
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return out, errors.Wrap(err, "decode jsonl record")
		}
		out = append(out, rec)
	}
	return out, nil
}
