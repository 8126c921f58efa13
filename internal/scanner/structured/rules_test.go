package structured

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestNormalizePattern(t *testing.T) {
	assert.Equal(t, `a b c`, NormalizePattern("  a\n\t b\r\n c \n"))
}

func TestLoadRules_OrderAndFields(t *testing.T) {
	dir := t.TempDir()
	b := writeTemp(t, dir, "b.yml", `
events:
  - name: second
    indicator: Second
    pattern: "beta"
    message_template: "b"
    filenames: [/var/log/b.log]
`)
	a := writeTemp(t, dir, "a.yaml", `
events:
  - name: first
    indicator: First
    pattern: >
      alpha
      (?P<x>\d+)
    message_template: "x={x}"
    meta_fields: [x]
    filenames: [/var/log/a.log, /var/log/a.log]
`)
	writeTemp(t, dir, "ignored.json", `{}`)

	rules, err := LoadRules(dir)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "first", rules[0].Name)
	assert.Equal(t, a, rules[0].SourceFile)
	assert.Equal(t, `alpha (?P<x>\d+)`, rules[0].Pattern)
	assert.Equal(t, PatternRegex, rules[0].Type)
	assert.Equal(t, []string{"x"}, rules[0].MetaFields)
	assert.Equal(t, "second", rules[1].Name)
	assert.Equal(t, b, rules[1].SourceFile)

	idx := BuildIndex(rules)
	assert.Len(t, idx["/var/log/a.log"], 1)
	assert.ElementsMatch(t, []string{"/var/log/a.log", "/var/log/b.log"}, idx.Prefixes())
}

func TestLoadRules_InvalidPatternFailsFast(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "bad.yml", `
events:
  - name: broken
    pattern: "(unclosed"
    filenames: [/x]
`)
	_, err := LoadRules(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRule)
	assert.Contains(t, err.Error(), `invalid pattern in rule "broken" (`+p+`)`)
}

func TestParseRules_Errors(t *testing.T) {
	cases := map[string]string{
		"unknown type": "events:\n  - name: r\n    type: pcre\n    pattern: x\n",
		"missing name": "events:\n  - pattern: x\n",
		"bad yaml":     "events: [",
	}
	for name, doc := range cases {
		_, err := ParseRules([]byte(doc), "mem.yml")
		assert.ErrorIs(t, err, ErrInvalidRule, name)
	}
}

func TestLoadRules_MissingDir(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestGrokRule(t *testing.T) {
	rules, err := ParseRules([]byte(`
events:
  - name: grok-ssh
    type: grok
    pattern: 'Failed password for %{USERNAME:user} from %{IP:ip} port %{INT:port}'
    message_template: "{user}@{ip}"
    meta_fields: [user, ip, port]
    filenames: [/var/log/auth.log]
`), "g.yml")
	require.NoError(t, err)
	require.Len(t, rules, 1)

	caps, ok := rules[0].Match("sshd[1]: Failed password for bob from 10.1.2.3 port 2222 ssh2")
	require.True(t, ok)
	assert.Equal(t, "bob", caps["user"])
	assert.Equal(t, "10.1.2.3", caps["ip"])
	assert.Equal(t, "2222", caps["port"])

	_, ok = rules[0].Match("Accepted password for bob")
	assert.False(t, ok)
}

func TestGrokRule_UnknownPattern(t *testing.T) {
	_, err := ParseRules([]byte("events:\n  - name: g\n    type: grok\n    pattern: '%{NOPE_NOT_DEFINED:x}'\n"), "g.yml")
	assert.ErrorIs(t, err, ErrInvalidRule)
}

func TestRegexMatcher_NonParticipatingGroup(t *testing.T) {
	m, err := compileMatcher(PatternRegex, `user=(?P<user>\w+)(?: ip=(?P<ip>\S+))?`)
	require.NoError(t, err)
	caps, ok := m.Match("user=alice")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"user": "alice", "ip": ""}, caps)
}

func TestBuiltinAuthRules(t *testing.T) {
	rules, err := BuiltinAuthRules()
	require.NoError(t, err)
	var names []string
	for _, r := range rules {
		names = append(names, r.Name)
		assert.Equal(t, BuiltinAuthSource, r.SourceFile)
		assert.Equal(t, []string{"/var/log/auth.log", "/var/log/secure"}, r.Filenames)
	}
	assert.Equal(t, []string{"sudo-auth-failure", "desktop-auth-failure", "ssh-auth-failure", "ssh-login-success"}, names)

	caps, ok := rules[0].Match("Jan  1 10:00:00 host sudo: pam_unix(sudo:auth): authentication failure; logname=alice uid=1000 euid=0 tty=/dev/pts/1 ruser=alice rhost=  user=alice")
	require.True(t, ok)
	assert.Equal(t, "alice", caps["user"])
	assert.Equal(t, "/dev/pts/1", caps["tty"])
	assert.Equal(t, "", caps["rhost"])
}
