package structured

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	doublestar "github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRule is wrapped by every rule load failure caused by rule content.
var ErrInvalidRule = errors.New("invalid structured rule")

// Pattern syntaxes.
const (
	PatternRegex = "regex"
	PatternGrok  = "grok"
)

// Rule is one compiled structured-pattern rule.
type Rule struct {
	Name            string
	Indicator       string
	Pattern         string
	Type            string
	MessageTemplate string
	MetaFields      []string
	Filenames       []string
	SourceFile      string

	m Matcher
}

// Match applies the rule to one line.
func (r *Rule) Match(line string) (map[string]string, bool) { return r.m.Match(line) }

type ruleFile struct {
	Events []ruleEntry `yaml:"events"`
}

type ruleEntry struct {
	Name            string   `yaml:"name"`
	Indicator       string   `yaml:"indicator"`
	Pattern         string   `yaml:"pattern"`
	Type            string   `yaml:"type"`
	MessageTemplate string   `yaml:"message_template"`
	MetaFields      []string `yaml:"meta_fields"`
	Filenames       []string `yaml:"filenames"`
}

var whitespaceRun = regexp.MustCompile(`[ \t\r\n]+`)

// NormalizePattern collapses whitespace runs, as left by YAML folding, into
// single spaces.
func NormalizePattern(p string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(p, " "))
}

// LoadRules reads every *.yml/*.yaml file under dir in lexical order. The
// first invalid rule aborts the load.
func LoadRules(dir string) ([]*Rule, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("structured rules directory: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("structured rules directory %s is not a directory", dir)
	}
	rels, err := doublestar.Glob(os.DirFS(dir), "**/*.{yml,yaml}")
	if err != nil {
		return nil, fmt.Errorf("list structured rules: %w", err)
	}
	sort.Strings(rels)
	var rules []*Rule
	for _, rel := range rels {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read rule file %s: %w", p, err)
		}
		rs, err := ParseRules(b, p)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rs...)
	}
	return rules, nil
}

// ParseRules compiles the events of one rule document. source is recorded as
// each rule's SourceFile.
func ParseRules(data []byte, source string) ([]*Rule, error) {
	var doc ruleFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidRule, source, err)
	}
	rules := make([]*Rule, 0, len(doc.Events))
	for i, ev := range doc.Events {
		if strings.TrimSpace(ev.Name) == "" {
			return nil, fmt.Errorf("%w: event %d in %s has no name", ErrInvalidRule, i, source)
		}
		r := &Rule{
			Name:            ev.Name,
			Indicator:       ev.Indicator,
			Pattern:         NormalizePattern(ev.Pattern),
			Type:            strings.ToLower(strings.TrimSpace(ev.Type)),
			MessageTemplate: ev.MessageTemplate,
			MetaFields:      ev.MetaFields,
			Filenames:       ev.Filenames,
			SourceFile:      source,
		}
		if r.Type == "" {
			r.Type = PatternRegex
		}
		m, err := compileMatcher(r.Type, r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid pattern in rule %q (%s): %v", ErrInvalidRule, r.Name, source, err)
		}
		r.m = m
		rules = append(rules, r)
	}
	return rules, nil
}
