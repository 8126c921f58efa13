package factory

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/scanner/entropy"
	"github.com/collectifor/collectifor/internal/scanner/literal"
	"github.com/collectifor/collectifor/internal/scanner/permissions"
	"github.com/collectifor/collectifor/internal/scanner/persistence"
	"github.com/collectifor/collectifor/internal/scanner/signature"
	"github.com/collectifor/collectifor/internal/scanner/structured"
	"github.com/collectifor/collectifor/internal/types"
)

// Signature holds the YARA engine settings.
type Signature struct {
	Enabled  bool
	RulesDir string
}

// Literal holds the indicator-list engine settings.
type Literal struct {
	Enabled  bool
	RulesDir string
	Binary   string
}

// Structured holds the line-pattern engine settings.
type Structured struct {
	Enabled     bool
	RulesDir    string
	BuiltinAuth bool
}

// Permissions holds the permission listing analyzer settings.
type Permissions struct {
	Enabled bool
	File    string
	Fs      afero.Fs
}

// Persistence holds the persistence mechanism analyzer settings.
type Persistence struct {
	Enabled bool
	Fs      afero.Fs
}

// Entropy holds the high-entropy analyzer settings.
type Entropy struct {
	Enabled   bool
	Threshold float64
	MaxSize   int64
}

// Config is the subset of configuration needed to create scanners.
type Config struct {
	Signature   Signature
	Literal     Literal
	Structured  Structured
	Permissions Permissions
	Persistence Persistence
	Entropy     Entropy

	// Enable, when non-empty, restricts the run to these engine names and
	// overrides the per-engine Enabled flags. Disable always wins.
	Enable  map[string]bool
	Disable map[string]bool

	Logger *zap.Logger
}

// Active reports whether the named engine will run.
func (c Config) Active(name string) bool {
	if c.Disable[name] {
		return false
	}
	if len(c.Enable) > 0 {
		return c.Enable[name]
	}
	switch name {
	case scanner.EngineSignature:
		return c.Signature.Enabled
	case scanner.EngineLiteral:
		return c.Literal.Enabled
	case scanner.EngineStructured:
		return c.Structured.Enabled
	case scanner.EnginePermissions:
		return c.Permissions.Enabled
	case scanner.EnginePersistence:
		return c.Persistence.Enabled
	case scanner.EngineEntropy:
		return c.Entropy.Enabled
	}
	return false
}

// New creates the active scanners in the fixed engine order. An engine that
// cannot be constructed is returned as a scanner whose Scan reports the
// construction error, so the failure surfaces per engine.
func New(cfg Config) []scanner.Scanner {
	var out []scanner.Scanner
	for _, name := range scanner.EngineNames() {
		if !cfg.Active(name) {
			continue
		}
		s, err := build(name, cfg)
		if err != nil {
			s = &failed{name: name, err: err}
		}
		out = append(out, s)
	}
	return out
}

func build(name string, cfg Config) (scanner.Scanner, error) {
	switch name {
	case scanner.EngineSignature:
		if cfg.Signature.RulesDir == "" {
			return nil, fmt.Errorf("signature engine: no rules directory configured")
		}
		return signature.New(signature.Options{RulesDir: cfg.Signature.RulesDir, Logger: cfg.Logger}), nil
	case scanner.EngineLiteral:
		if cfg.Literal.RulesDir == "" {
			return nil, fmt.Errorf("literal engine: no rules directory configured")
		}
		s, err := literal.NewScanner(literal.Options{RulesDir: cfg.Literal.RulesDir, Binary: cfg.Literal.Binary, Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("failed to create literal scanner: %w", err)
		}
		return s, nil
	case scanner.EngineStructured:
		return structured.New(structured.Options{
			RulesDir:    cfg.Structured.RulesDir,
			BuiltinAuth: cfg.Structured.BuiltinAuth,
			Logger:      cfg.Logger,
		}), nil
	case scanner.EnginePermissions:
		return permissions.New(permissions.Options{File: cfg.Permissions.File, Fs: cfg.Permissions.Fs, Logger: cfg.Logger}), nil
	case scanner.EnginePersistence:
		return persistence.New(persistence.Options{Fs: cfg.Persistence.Fs, Logger: cfg.Logger}), nil
	case scanner.EngineEntropy:
		return entropy.New(entropy.Options{
			Threshold: cfg.Entropy.Threshold,
			MaxSize:   cfg.Entropy.MaxSize,
			Logger:    cfg.Logger,
		}), nil
	}
	return nil, fmt.Errorf("unknown engine %q", name)
}

type failed struct {
	name string
	err  error
}

func (f *failed) Name() string { return f.name }

func (f *failed) Scan(context.Context, scanner.Target) ([]types.Finding, error) { return nil, f.err }
