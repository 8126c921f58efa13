package structured

import (
	"fmt"
	"regexp"

	"github.com/vjeantet/grok"
)

// Matcher tests a line and returns the named captures on success. Groups
// that did not participate map to "".
type Matcher interface {
	Match(line string) (map[string]string, bool)
}

func compileMatcher(kind, pattern string) (Matcher, error) {
	switch kind {
	case PatternRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		return &regexMatcher{re: re}, nil
	case PatternGrok:
		return newGrokMatcher(pattern)
	default:
		return nil, fmt.Errorf("unknown pattern type %q", kind)
	}
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m *regexMatcher) Match(line string) (map[string]string, bool) {
	idx := m.re.FindStringSubmatchIndex(line)
	if idx == nil {
		return nil, false
	}
	caps := map[string]string{}
	for i, name := range m.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		if s, e := idx[2*i], idx[2*i+1]; s >= 0 {
			caps[name] = line[s:e]
		} else if _, ok := caps[name]; !ok {
			caps[name] = ""
		}
	}
	return caps, true
}

// grokMatcher holds a private grok instance. grok caches compiled
// expressions internally and guards the cache, so one instance is shared by
// all workers.
type grokMatcher struct {
	g       *grok.Grok
	pattern string
}

func newGrokMatcher(pattern string) (*grokMatcher, error) {
	g, err := grok.NewWithConfig(&grok.Config{NamedCapturesOnly: true})
	if err != nil {
		return nil, err
	}
	// Match compiles and caches the expression, surfacing syntax errors and
	// unknown pattern names at load time.
	if _, err := g.Match(pattern, ""); err != nil {
		return nil, err
	}
	return &grokMatcher{g: g, pattern: pattern}, nil
}

func (m *grokMatcher) Match(line string) (map[string]string, bool) {
	ok, err := m.g.Match(m.pattern, line)
	if err != nil || !ok {
		return nil, false
	}
	caps, err := m.g.Parse(m.pattern, line)
	if err != nil {
		return nil, false
	}
	return caps, true
}
