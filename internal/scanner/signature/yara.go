//go:build yara

package signature

import (
	"fmt"
	"os"

	yara "github.com/hillu/go-yara/v4"
)

var compileRules = compileYARA

type yaraMatcher struct {
	rules *yara.Rules
}

func compileYARA(files []RuleFile, needed AttributeSet) (matcher, error) {
	c, err := yara.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("create yara compiler: %w", err)
	}
	defer c.Destroy()
	for _, a := range needed.Attributes() {
		if err := c.DefineVariable(a.String(), ""); err != nil {
			return nil, fmt.Errorf("declare external %s: %w", a, err)
		}
	}
	for _, rf := range files {
		f, err := os.Open(rf.Path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", rf.Path, err)
		}
		err = c.AddFile(f, rf.Namespace)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rf.Path, err)
		}
	}
	rules, err := c.GetRules()
	if err != nil {
		return nil, err
	}
	return &yaraMatcher{rules: rules}, nil
}

// Match creates a scanner per call; yara.Scanner is not safe for concurrent
// use while the compiled rules are.
func (m *yaraMatcher) Match(path string, vars map[string]any) ([]match, error) {
	s, err := yara.NewScanner(m.rules)
	if err != nil {
		return nil, err
	}
	defer s.Destroy()
	for k, v := range vars {
		if err := s.DefineVariable(k, v); err != nil {
			return nil, fmt.Errorf("bind %s: %w", k, err)
		}
	}
	var mrs yara.MatchRules
	if err := s.SetCallback(&mrs).ScanFile(path); err != nil {
		return nil, err
	}
	out := make([]match, 0, len(mrs))
	for _, mr := range mrs {
		m := match{Rule: mr.Rule, Namespace: mr.Namespace, Tags: mr.Tags}
		for _, meta := range mr.Metas {
			m.Metas = append(m.Metas, metaValue{Identifier: meta.Identifier, Value: meta.Value})
		}
		for _, ms := range mr.Strings {
			m.Strings = append(m.Strings, stringHit{Name: ms.Name, Offset: ms.Base + ms.Offset, Data: ms.Data})
		}
		out = append(out, m)
	}
	return out, nil
}

func (m *yaraMatcher) Destroy() {
	if m.rules != nil {
		m.rules.Destroy()
	}
}
