// Package core provides a small, stable facade over collectifor's internal
// engine for external integrations. It re-exports a narrow API surface so
// other tools can depend on a stable import path without importing internal
// packages.
//
// Example:
//
//	cfg := core.Config{Root: "/cases/host01", Workers: 8}
//	cfg.Engines.Structured.Enabled = true
//	cfg.Engines.Structured.BuiltinAuth = true
//	findings, err := core.Scan(ctx, cfg)
//	if err != nil { /* handle */ }
//	_ = core.MarshalFindings(os.Stdout, findings)
package core
