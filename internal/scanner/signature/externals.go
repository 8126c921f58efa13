package signature

import (
	"regexp"
	"sort"
)

// Attribute is a per-file value a rule can reference as an external
// variable.
type Attribute uint8

const (
	AttrFilename Attribute = iota
	AttrFilepath
	AttrExtension
	AttrFiletype
	AttrMD5
	AttrOwner

	numAttributes
)

var attributeNames = [numAttributes]string{
	AttrFilename:  "filename",
	AttrFilepath:  "filepath",
	AttrExtension: "extension",
	AttrFiletype:  "filetype",
	AttrMD5:       "md5",
	AttrOwner:     "owner",
}

func (a Attribute) String() string {
	if a >= numAttributes {
		return "unknown"
	}
	return attributeNames[a]
}

// ParseAttribute maps an external variable name to its Attribute.
func ParseAttribute(name string) (Attribute, bool) {
	for i, n := range attributeNames {
		if n == name {
			return Attribute(i), true
		}
	}
	return 0, false
}

// AttributeSet is a bitmask of attributes.
type AttributeSet uint8

func (s AttributeSet) Has(a Attribute) bool { return s&(1<<a) != 0 }

func (s AttributeSet) With(a Attribute) AttributeSet { return s | 1<<a }

func (s AttributeSet) Empty() bool { return s == 0 }

// Attributes lists the members in declaration order.
func (s AttributeSet) Attributes() []Attribute {
	var out []Attribute
	for a := Attribute(0); a < numAttributes; a++ {
		if s.Has(a) {
			out = append(out, a)
		}
	}
	return out
}

// Names lists the member names, sorted.
func (s AttributeSet) Names() []string {
	out := []string{}
	for _, a := range s.Attributes() {
		out = append(out, a.String())
	}
	sort.Strings(out)
	return out
}

var externalPattern = regexp.MustCompile(`\b(filename|filepath|extension|filetype|md5|owner)\b`)

// DetectExternals keyword-scans rule text for external attribute names.
// It is deliberately not a parser: any whole-word occurrence counts.
func DetectExternals(text string) AttributeSet {
	var set AttributeSet
	for _, m := range externalPattern.FindAllString(text, -1) {
		if a, ok := ParseAttribute(m); ok {
			set = set.With(a)
		}
	}
	return set
}
