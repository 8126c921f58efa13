package core_test

import (
	"context"
	"fmt"
	"os"

	"github.com/collectifor/collectifor/pkg/core"
)

// ExampleScan runs the built-in auth-log rules over a collection.
func ExampleScan() {
	cfg := core.Config{Root: "/cases/host01", Workers: 4}
	cfg.Engines.Structured.Enabled = true
	cfg.Engines.Structured.BuiltinAuth = true

	findings, err := core.Scan(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		return
	}
	_ = core.MarshalFindings(os.Stdout, findings)
}

// ExampleScanWithStats shows per-engine results.
func ExampleScanWithStats() {
	cfg := core.Config{Root: "/cases/host01"}
	cfg.Engines.Enable = map[string]bool{"permissions": true}

	res, err := core.ScanWithStats(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		return
	}
	for name, st := range res.PerEngine {
		fmt.Printf("%s: %d findings in %s\n", name, st.Findings, st.Duration)
	}
	for name, err := range res.EngineErrors {
		fmt.Printf("%s failed: %v\n", name, err)
	}
}
