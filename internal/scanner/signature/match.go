package signature

import (
	"fmt"

	"github.com/collectifor/collectifor/internal/types"
)

type metaValue struct {
	Identifier string
	Value      any
}

type stringHit struct {
	Name   string
	Offset uint64
	Data   []byte
}

// match is an engine-neutral view of one matching rule.
type match struct {
	Rule      string
	Namespace string
	Tags      []string
	Metas     []metaValue
	Strings   []stringHit
}

// toFindings converts rule matches on path into findings. Every matched
// string instance is kept under meta.string_instances, keyed by the string
// identifier, as "0x<offset>:<quoted data>".
func (rs *RuleSet) toFindings(path string, ms []match) []types.Finding {
	out := make([]types.Finding, 0, len(ms))
	for _, m := range ms {
		f := types.NewFinding(types.TypeSignature)
		f.Artifact = path
		f.Indicator = m.Rule
		f.Rule = m.Rule
		f.Namespace = m.Namespace
		f.SourceFile = rs.SourceFile(m.Namespace)
		f.Tags = append(f.Tags, m.Tags...)
		f.Message = fmt.Sprintf(`Rule "%s" matched in file "%s"`, m.Rule, path)
		for _, mv := range m.Metas {
			f.Meta[mv.Identifier] = mv.Value
		}
		instances := map[string][]string{}
		for _, s := range m.Strings {
			instances[s.Name] = append(instances[s.Name], fmt.Sprintf("0x%x:%q", s.Offset, s.Data))
		}
		f.Meta["string_instances"] = instances
		out = append(out, f)
	}
	return out
}
