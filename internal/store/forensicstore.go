package store

import (
	"context"
	"encoding/json"
	"os"

	"github.com/forensicanalysis/forensicstore"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/collectifor/collectifor/internal/types"
)

// ElementType is the forensicstore element type used for findings.
const ElementType = "finding"

// Forensicstore writes findings as elements of a forensicstore, next to any
// artifacts a collector already put there.
type Forensicstore struct {
	store *forensicstore.ForensicStore
	runID string
}

// OpenForensicstore opens the store at path, creating it when missing.
func OpenForensicstore(path string) (*Forensicstore, error) {
	var (
		fs  *forensicstore.ForensicStore
		err error
	)
	if _, statErr := os.Stat(path); statErr == nil {
		fs, err = forensicstore.Open(path)
	} else {
		fs, err = forensicstore.New(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "open forensicstore")
	}
	return &Forensicstore{store: fs, runID: uuid.New().String()}, nil
}

// findingElement flattens a finding into forensicstore element form. The
// element type is fixed; the engine type moves to finding_type because an
// element must not carry a field named after its own type.
func findingElement(f types.Finding, runID string) ([]byte, error) {
	f = f.Normalize()
	return json.Marshal(map[string]any{
		"type":         ElementType,
		"finding_type": f.Type,
		"run_id":       runID,
		"fingerprint":  f.Fingerprint(),
		"artifact":     f.Artifact,
		"indicator":    f.Indicator,
		"rule":         f.Rule,
		"source_file":  f.SourceFile,
		"message":      f.Message,
		"tags":         f.Tags,
		"namespace":    f.Namespace,
		"meta":         f.Meta,
	})
}

// StoreFindings implements Sink.
func (s *Forensicstore) StoreFindings(_ context.Context, findings []types.Finding) error {
	for _, f := range findings {
		el, err := findingElement(f, s.runID)
		if err != nil {
			return errors.Wrap(err, "marshal finding element")
		}
		if _, err := s.store.Insert(el); err != nil {
			return errors.Wrapf(err, "insert finding for %s", f.Artifact)
		}
	}
	return nil
}

// Close implements Sink.
func (s *Forensicstore) Close() error {
	return errors.Wrap(s.store.Close(), "close forensicstore")
}
