package scanner

import (
	"context"

	"github.com/collectifor/collectifor/internal/types"
)

// Scanner defines the interface every detection engine implements.
// Implementations include the YARA signature engine, the literal indicator
// engine and the structured log pattern engine.
type Scanner interface {
	// Name returns the engine name used in configuration and logs.
	Name() string

	// Scan evaluates the engine's rules against the target tree and returns
	// the findings. A returned error is fatal for this engine only; per-file
	// failures are logged and skipped.
	Scan(ctx context.Context, target Target) ([]types.Finding, error)
}

// Target describes what an engine scans.
type Target struct {
	// Root is the collection root. File-based engines only report paths
	// beneath it.
	Root string

	// Include and Exclude are substrings matched against absolute paths.
	Include []string
	Exclude []string

	// Workers bounds per-engine concurrency (0 uses the pool default).
	Workers int
}

// Engine names as used in configuration and on the command line.
const (
	EngineSignature   = "signature"
	EngineLiteral     = "literal"
	EngineStructured  = "structured"
	EnginePermissions = "permissions"
	EnginePersistence = "persistence"
	EngineEntropy     = "entropy"
)

// EngineNames lists all engines in execution order.
func EngineNames() []string {
	return []string{EngineSignature, EngineLiteral, EngineStructured, EnginePermissions, EnginePersistence, EngineEntropy}
}
