package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration shape for collectifor.
// Unset fields are nil so layers can be merged by precedence.
type FileConfig struct {
	LogLevel *string  `yaml:"log_level,omitempty"`
	Workers  *int     `yaml:"workers,omitempty"`
	Include  []string `yaml:"include,omitempty"`
	Exclude  []string `yaml:"exclude,omitempty"`
	Enable   *string  `yaml:"enable,omitempty"`
	Disable  *string  `yaml:"disable,omitempty"`
	NoColor  *bool    `yaml:"no_color,omitempty"`

	Signature   *SignatureConfig   `yaml:"signature,omitempty"`
	Literal     *LiteralConfig     `yaml:"literal,omitempty"`
	Structured  *StructuredConfig  `yaml:"structured,omitempty"`
	Permissions *PermissionsConfig `yaml:"permissions,omitempty"`
	Persistence *PersistenceConfig `yaml:"persistence,omitempty"`
	Entropy     *EntropyConfig     `yaml:"entropy,omitempty"`
	Store       *StoreConfig       `yaml:"store,omitempty"`
}

// SignatureConfig configures the YARA engine.
type SignatureConfig struct {
	Enabled  *bool   `yaml:"enabled,omitempty"`
	RulesDir *string `yaml:"rules_dir,omitempty"`
}

// LiteralConfig configures the fixed-string indicator engine.
type LiteralConfig struct {
	Enabled  *bool   `yaml:"enabled,omitempty"`
	RulesDir *string `yaml:"rules_dir,omitempty"`
	// Binary is an explicit path to a grep-compatible matcher.
	// If empty, grep is searched in $PATH.
	Binary *string `yaml:"binary,omitempty"`
}

// StructuredConfig configures the line-pattern engine.
type StructuredConfig struct {
	Enabled  *bool   `yaml:"enabled,omitempty"`
	RulesDir *string `yaml:"rules_dir,omitempty"`
	// BuiltinAuth prepends the embedded auth-log rules. Defaults to true.
	BuiltinAuth *bool `yaml:"builtin_auth,omitempty"`
}

// PermissionsConfig configures the permission listing analyzer.
type PermissionsConfig struct {
	Enabled *bool   `yaml:"enabled,omitempty"`
	File    *string `yaml:"file,omitempty"`
}

// PersistenceConfig configures the persistence mechanism analyzer.
type PersistenceConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// EntropyConfig configures the high-entropy analyzer. It is off by default
// because it reads every file in full.
type EntropyConfig struct {
	Enabled   *bool    `yaml:"enabled,omitempty"`
	Threshold *float64 `yaml:"threshold,omitempty"`
	// MaxSize is a human size such as "512MB".
	MaxSize *string `yaml:"max_size,omitempty"`
}

// StoreConfig selects the findings sink.
type StoreConfig struct {
	// Backend is one of jsonl, forensicstore, postgres. Empty disables
	// persistence.
	Backend *string `yaml:"backend,omitempty"`
	Path    *string `yaml:"path,omitempty"`
	DSN     *string `yaml:"dsn,omitempty"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LocalNames are the file names LoadLocal looks for, in order.
var LocalNames = []string{".collectifor.yml", ".collectifor.yaml", "collectifor.yml", "collectifor.yaml"}

// LoadLocal searches for a config file in the given directory.
func LoadLocal(dir string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range LocalNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, errors.New("no local config")
}

// LoadGlobal loads the global config file from XDG base directory or ~/.config.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return cfg, errors.New("no config dir")
	}
	p := filepath.Join(base, "collectifor", "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, errors.New("no global config")
}

// Section accessors never return nil, so callers can read fields without
// checking each level.

func (fc FileConfig) SignatureSection() SignatureConfig {
	if fc.Signature == nil {
		return SignatureConfig{}
	}
	return *fc.Signature
}

func (fc FileConfig) LiteralSection() LiteralConfig {
	if fc.Literal == nil {
		return LiteralConfig{}
	}
	return *fc.Literal
}

func (fc FileConfig) StructuredSection() StructuredConfig {
	if fc.Structured == nil {
		return StructuredConfig{}
	}
	return *fc.Structured
}

func (fc FileConfig) PermissionsSection() PermissionsConfig {
	if fc.Permissions == nil {
		return PermissionsConfig{}
	}
	return *fc.Permissions
}

func (fc FileConfig) PersistenceSection() PersistenceConfig {
	if fc.Persistence == nil {
		return PersistenceConfig{}
	}
	return *fc.Persistence
}

func (fc FileConfig) EntropySection() EntropyConfig {
	if fc.Entropy == nil {
		return EntropyConfig{}
	}
	return *fc.Entropy
}

func (fc FileConfig) StoreSection() StoreConfig {
	if fc.Store == nil {
		return StoreConfig{}
	}
	return *fc.Store
}
