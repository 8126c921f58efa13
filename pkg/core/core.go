package core

import (
	"context"

	"github.com/collectifor/collectifor/internal/engine"
	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/types"
)

// Re-export selected internal types as a stable public API surface.
// These are type aliases so external consumers can depend on a stable path.
type (
	Config  = engine.Config
	Result  = engine.Result
	Finding = types.Finding
)

// Finding type tags.
const (
	TypeSignature   = types.TypeSignature
	TypeLiteral     = types.TypeLiteral
	TypeStructured  = types.TypeStructured
	TypePermissions = types.TypePermissions
	TypeAnomaly     = types.TypeAnomaly
	TypePersistence = types.TypePersistence
)

// Scan is the stable entrypoint for other programs.
func Scan(ctx context.Context, cfg Config) ([]Finding, error) {
	return engine.Scan(ctx, cfg)
}

// ScanWithStats runs a scan and returns per-engine counts, durations and
// errors alongside the findings.
func ScanWithStats(ctx context.Context, cfg Config) (Result, error) {
	return engine.ScanWithStats(ctx, cfg)
}

// Engines returns the engine names in execution order.
func Engines() []string { return scanner.EngineNames() }
