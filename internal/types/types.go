package types

import (
	"sort"
	"strings"

	xxhash "github.com/cespare/xxhash/v2"
)

// Finding type tags, one per producing engine.
const (
	TypeSignature   = "signature"
	TypeLiteral     = "literal"
	TypeStructured  = "structured"
	TypePermissions = "file_permissions"
	TypeAnomaly     = "file_anomaly"
	TypePersistence = "persistence"
)

// Finding is the normalized record every engine emits. All fields are always
// serialized so consumers never have to tell a null from a missing key.
type Finding struct {
	Type       string         `json:"type"`
	Artifact   string         `json:"artifact"`
	Indicator  string         `json:"indicator"`
	Rule       string         `json:"rule"`
	SourceFile string         `json:"source_file"`
	Message    string         `json:"message"`
	Tags       []string       `json:"tags"`
	Namespace  string         `json:"namespace"`
	Meta       map[string]any `json:"meta"`
}

// NewFinding returns a finding of the given type with empty, non-nil
// collections.
func NewFinding(kind string) Finding {
	return Finding{
		Type: kind,
		Tags: []string{},
		Meta: map[string]any{},
	}
}

// Normalize replaces nil collections with empty ones.
func (f Finding) Normalize() Finding {
	if f.Tags == nil {
		f.Tags = []string{}
	}
	if f.Meta == nil {
		f.Meta = map[string]any{}
	}
	return f
}

// NormalizeAll applies Normalize to every finding and never returns nil.
func NormalizeAll(fs []Finding) []Finding {
	out := make([]Finding, len(fs))
	for i, f := range fs {
		out[i] = f.Normalize()
	}
	return out
}

// Fingerprint is a stable identity for the finding, independent of meta
// ordering. Two runs over the same rules and tree produce equal fingerprints.
func (f Finding) Fingerprint() string {
	var b strings.Builder
	for _, s := range []string{f.Type, f.Artifact, f.Indicator, f.Rule, f.SourceFile, f.Namespace, f.Message} {
		b.WriteString(s)
		b.WriteByte(0)
	}
	tags := append([]string(nil), f.Tags...)
	sort.Strings(tags)
	b.WriteString(strings.Join(tags, ","))
	return hex16(xxhash.Sum64String(b.String()))
}

func hex16(sum uint64) string {
	var buf [16]byte
	const hex = "0123456789abcdef"
	for i := 15; i >= 0; i-- {
		buf[i] = hex[sum&0xF]
		sum >>= 4
	}
	return string(buf[:])
}
