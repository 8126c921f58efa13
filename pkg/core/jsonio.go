package core

import (
	"encoding/json"
	"io"

	"github.com/collectifor/collectifor/internal/types"
)

// MarshalFindings pretty-prints findings as JSON. A nil slice encodes as [].
func MarshalFindings(w io.Writer, findings []Finding) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(types.NormalizeAll(findings))
}

// UnmarshalFindings decodes findings JSON. Null collections come back empty.
func UnmarshalFindings(r io.Reader) ([]Finding, error) {
	var fs []Finding
	if err := json.NewDecoder(r).Decode(&fs); err != nil {
		return nil, err
	}
	return types.NormalizeAll(fs), nil
}
