package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestLoadFile_Basic(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "collectifor.yaml", `
workers: 8
log_level: debug
include: [/var/log/]
exclude: [/proc/, /sys/]
signature:
  rules_dir: /rules/yara
literal:
  enabled: false
  binary: /usr/local/bin/grep
structured:
  rules_dir: /rules/logs
  builtin_auth: false
entropy:
  enabled: true
  threshold: 7.2
  max_size: 256MB
store:
  backend: forensicstore
  path: case.forensicstore
`)
	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Workers == nil || *cfg.Workers != 8 {
		t.Fatalf("expected workers=8, got %#v", cfg.Workers)
	}
	if cfg.LogLevel == nil || *cfg.LogLevel != "debug" {
		t.Fatalf("expected log_level=debug, got %#v", cfg.LogLevel)
	}
	assert.Equal(t, []string{"/var/log/"}, cfg.Include)
	assert.Equal(t, []string{"/proc/", "/sys/"}, cfg.Exclude)

	sig := cfg.SignatureSection()
	require.NotNil(t, sig.RulesDir)
	assert.Equal(t, "/rules/yara", *sig.RulesDir)
	assert.Nil(t, sig.Enabled)

	lit := cfg.LiteralSection()
	require.NotNil(t, lit.Enabled)
	assert.False(t, *lit.Enabled)
	assert.Equal(t, "/usr/local/bin/grep", *lit.Binary)

	st := cfg.StructuredSection()
	require.NotNil(t, st.BuiltinAuth)
	assert.False(t, *st.BuiltinAuth)

	ent := cfg.EntropySection()
	assert.Equal(t, 7.2, *ent.Threshold)
	assert.Equal(t, "256MB", *ent.MaxSize)

	store := cfg.StoreSection()
	assert.Equal(t, "forensicstore", *store.Backend)
	assert.Nil(t, store.DSN)

	assert.Nil(t, cfg.PermissionsSection().Enabled)
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "bad.yml", "workers: [1, 2\n")
	if _, err := LoadFile(p); err == nil {
		t.Fatal("expected YAML error")
	}
}

func TestLoadLocal_PrefersDotfile(t *testing.T) {
	dir := t.TempDir()
	// place both, expect the dotfile to be picked first by search order
	writeTemp(t, dir, "collectifor.yaml", "workers: 1\n")
	writeTemp(t, dir, ".collectifor.yaml", "workers: 7\n")
	cfg, err := LoadLocal(dir)
	if err != nil {
		t.Fatalf("LoadLocal: %v", err)
	}
	if cfg.Workers == nil || *cfg.Workers != 7 {
		t.Fatalf("expected workers=7 from .collectifor.yaml, got %#v", cfg.Workers)
	}
}

func TestLoadLocal_NoConfig(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadLocal(dir); err == nil {
		t.Fatal("expected error when no local config exists")
	}
}

func TestLoadGlobal_XDG_Config(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "collectifor")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeTemp(t, cfgDir, "config.yml", "workers: 9\n")
	t.Setenv("XDG_CONFIG_HOME", dir)
	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if cfg.Workers == nil || *cfg.Workers != 9 {
		t.Fatalf("expected workers=9 from global config, got %#v", cfg.Workers)
	}
}

func TestLoadGlobal_NoConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "")
	if _, err := LoadGlobal(); err == nil {
		t.Fatal("expected error when no global config dir exists")
	}
}
