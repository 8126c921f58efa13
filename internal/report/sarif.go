package report

import (
	"encoding/json"
	"io"
	"sort"

	"github.com/collectifor/collectifor/internal/types"
)

// ToolName is reported as the SARIF driver name.
const ToolName = "collectifor"

// Version is stamped into SARIF output; the CLI overrides it at build time.
var Version = "dev"

type sarif struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool      `json:"tool"`
	Results    []sarifResult  `json:"results"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string         `json:"id"`
	ShortDescription sarifMessage   `json:"shortDescription"`
	Properties       map[string]any `json:"properties,omitempty"`
}

type sarifResult struct {
	RuleID     string         `json:"ruleId"`
	RuleIndex  int            `json:"ruleIndex"`
	Level      string         `json:"level"`
	Message    sarifMessage   `json:"message"`
	Locations  []sarifLoc     `json:"locations"`
	Properties map[string]any `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLoc struct {
	PhysicalLocation sarifPhys `json:"physicalLocation"`
}

type sarifPhys struct {
	ArtifactLocation sarifArt `json:"artifactLocation"`
}

type sarifArt struct {
	URI string `json:"uri"`
}

func typeToLevel(kind string) string {
	switch kind {
	case types.TypeSignature, types.TypeLiteral:
		return "error"
	case types.TypeStructured, types.TypePermissions, types.TypePersistence:
		return "warning"
	default:
		return "note"
	}
}

// ruleID names what matched: the indicator for literal findings, the rule
// for everything else.
func ruleID(f types.Finding) string {
	if f.Type == types.TypeLiteral && f.Indicator != "" {
		return f.Indicator
	}
	if f.Rule != "" {
		return f.Rule
	}
	return f.Type
}

// WriteSARIF writes findings as SARIF 2.1.0 to the provided writer.
func WriteSARIF(w io.Writer, findings []types.Finding) error {
	return WriteSARIFWithStats(w, findings, nil)
}

// WriteSARIFWithStats is WriteSARIF with per-engine finding counts attached
// as run properties.
func WriteSARIFWithStats(w io.Writer, findings []types.Finding, perEngine map[string]int) error {
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: ToolName, Version: Version, Rules: []sarifRule{}}},
		Results: []sarifResult{},
	}

	index := map[string]int{}
	ids := make([]string, 0)
	kinds := map[string]string{}
	for _, f := range findings {
		id := ruleID(f)
		if _, ok := kinds[id]; !ok {
			kinds[id] = f.Type
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for i, id := range ids {
		index[id] = i
		run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, sarifRule{
			ID:               id,
			ShortDescription: sarifMessage{Text: kinds[id] + " match: " + id},
			Properties:       map[string]any{"type": kinds[id]},
		})
	}

	for _, f := range findings {
		id := ruleID(f)
		props := map[string]any{
			"type":        f.Type,
			"fingerprint": f.Fingerprint(),
		}
		if f.SourceFile != "" {
			props["source_file"] = f.SourceFile
		}
		if f.Namespace != "" {
			props["namespace"] = f.Namespace
		}
		if len(f.Tags) > 0 {
			props["tags"] = f.Tags
		}
		if f.Indicator != "" {
			props["indicator"] = f.Indicator
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:    id,
			RuleIndex: index[id],
			Level:     typeToLevel(f.Type),
			Message:   sarifMessage{Text: f.Message},
			Locations: []sarifLoc{{
				PhysicalLocation: sarifPhys{ArtifactLocation: sarifArt{URI: f.Artifact}},
			}},
			Properties: props,
		})
	}
	if len(perEngine) > 0 {
		run.Properties = map[string]any{"engineFindings": perEngine}
	}
	doc := sarif{
		Schema:  "https://json.schemastore.org/sarif-2.1.0.json",
		Version: "2.1.0",
		Runs:    []sarifRun{run},
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
