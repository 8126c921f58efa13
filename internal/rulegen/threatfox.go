// Package rulegen turns ThreatFox IOC exports into YARA rules the signature
// engine can load.
package rulegen

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// MaxIOCsPerRule caps one rule's size; larger families are split into
// numbered rules.
const MaxIOCsPerRule = 50

// ThreatFox CSV column positions.
const (
	colValue      = 2
	colType       = 3
	colThreatType = 4
	colMalware    = 5
	colPrintable  = 7
)

var hashKinds = map[string]bool{"md5": true, "sha1": true, "sha256": true}

var stringKinds = map[string]bool{"domain": true, "ip:port": true, "url": true}

// IOC is one supported row of a ThreatFox export.
type IOC struct {
	Value      string
	Kind       string // md5, sha1, sha256, domain, ip:port or url
	Family     string
	Printable  string
	ThreatType string
}

// IsHash reports whether the IOC is a file hash rather than a string.
func (i IOC) IsHash() bool { return hashKinds[i.Kind] }

// Family groups the IOCs of one malware family.
type Family struct {
	Name       string
	Printable  string
	ThreatType string
	IOCs       []IOC
}

// ParseThreatFox reads a ThreatFox CSV export. Comment lines and rows with
// unsupported IOC types are skipped.
func ParseThreatFox(r io.Reader) ([]IOC, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	var out []IOC
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read threatfox csv: %w", err)
		}
		if len(row) <= colPrintable {
			continue
		}
		kind := iocKind(row[colType])
		if kind == "" {
			continue
		}
		malware := strings.TrimSpace(row[colMalware])
		printable := strings.TrimSpace(row[colPrintable])
		pretty := printable
		if pretty == "" {
			pretty = malware
		}
		if pretty == "" {
			pretty = "Unknown"
		}
		out = append(out, IOC{
			Value:      strings.TrimSpace(row[colValue]),
			Kind:       kind,
			Family:     familyName(malware, printable),
			Printable:  pretty,
			ThreatType: strings.TrimSpace(row[colThreatType]),
		})
	}
	return out, nil
}

func iocKind(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	if algo, ok := strings.CutSuffix(t, "_hash"); ok {
		if hashKinds[algo] {
			return algo
		}
		return ""
	}
	if stringKinds[t] {
		return t
	}
	return ""
}

// familyName prefers the last dotted segment of fk_malware, e.g.
// "win.cobalt_strike" becomes "cobalt_strike".
func familyName(malware, printable string) string {
	if malware != "" && !strings.EqualFold(malware, "none") {
		parts := strings.Split(malware, ".")
		return parts[len(parts)-1]
	}
	if printable != "" {
		return printable
	}
	return "unknown"
}

var (
	unsafeChars = regexp.MustCompile(`[^a-z0-9_]`)
	underscores = regexp.MustCompile(`_+`)
)

// SafeName reduces s to a YARA identifier fragment.
func SafeName(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	v = unsafeChars.ReplaceAllString(v, "_")
	v = underscores.ReplaceAllString(v, "_")
	v = strings.Trim(v, "_")
	if v == "" {
		return "unknown"
	}
	return v
}

// Group buckets IOCs by family, sorted by family name. IOC order within a
// family follows the input.
func Group(iocs []IOC) []Family {
	byName := map[string]*Family{}
	for _, i := range iocs {
		f, ok := byName[i.Family]
		if !ok {
			f = &Family{Name: i.Family, Printable: i.Printable, ThreatType: i.ThreatType}
			byName[i.Family] = f
		}
		f.IOCs = append(f.IOCs, i)
	}
	out := make([]Family, 0, len(byName))
	for _, f := range byName {
		out = append(out, *f)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// NeedsHashImport reports whether any rule of f uses the hash module.
func (f Family) NeedsHashImport() bool {
	for _, i := range f.IOCs {
		if i.IsHash() {
			return true
		}
	}
	return false
}

// Render returns the YARA source for f without the import line. It returns
// "" for a family with no IOCs.
func Render(f Family, now time.Time) string {
	var strs, hashes []IOC
	for _, i := range f.IOCs {
		if i.IsHash() {
			hashes = append(hashes, i)
		} else {
			strs = append(strs, i)
		}
	}
	strChunks := chunk(strs)
	hashChunks := chunk(hashes)
	n := max(len(strChunks), len(hashChunks))
	if n == 0 {
		return ""
	}

	stamp := now.UTC().Format("2006-01-02 15:04:05 UTC")
	var rules []string
	for i := 0; i < n; i++ {
		var sc, hc []IOC
		if i < len(strChunks) {
			sc = strChunks[i]
		}
		if i < len(hashChunks) {
			hc = hashChunks[i]
		}
		name := "ThreatFox_" + SafeName(f.Name)
		if n > 1 {
			name = fmt.Sprintf("%s_%d", name, i)
		}
		rules = append(rules, renderRule(name, f, stamp, sc, hc))
	}
	return strings.Join(rules, "\n\n")
}

func renderRule(name string, f Family, stamp string, strs, hashes []IOC) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rule %s\n{\n    meta:\n", name)
	fmt.Fprintf(&b, "        source = \"ThreatFox\"\n")
	fmt.Fprintf(&b, "        malware = %s\n", quote(f.Printable))
	fmt.Fprintf(&b, "        family = %s\n", quote(f.Name))
	fmt.Fprintf(&b, "        threat_type = %s\n", quote(f.ThreatType))
	fmt.Fprintf(&b, "        generated = %s\n", quote(stamp))

	var conds []string
	if len(strs) > 0 {
		b.WriteString("\n    strings:\n")
		idx := 0
		for _, i := range strs {
			for _, v := range stringValues(i) {
				fmt.Fprintf(&b, "        $ioc%d = %s ascii wide nocase\n", idx, quote(v))
				idx++
			}
		}
		conds = append(conds, "any of ($ioc*)")
	}
	for _, h := range hashes {
		conds = append(conds, fmt.Sprintf("hash.%s(0, filesize) == %s", h.Kind, quote(strings.ToLower(h.Value))))
	}
	b.WriteString("\n    condition:\n        ")
	b.WriteString(strings.Join(conds, " or\n        "))
	b.WriteString("\n}")
	return b.String()
}

// stringValues returns the strings searched for an IOC; ip:port values also
// yield the bare address.
func stringValues(i IOC) []string {
	if i.Kind != "ip:port" {
		return []string{i.Value}
	}
	host, _, err := net.SplitHostPort(i.Value)
	if err != nil || host == "" {
		return []string{i.Value}
	}
	return []string{i.Value, host}
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "", "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

func chunk(iocs []IOC) [][]IOC {
	var out [][]IOC
	for len(iocs) > 0 {
		n := min(MaxIOCsPerRule, len(iocs))
		out = append(out, iocs[:n])
		iocs = iocs[n:]
	}
	return out
}

// Options controls Generate.
type Options struct {
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// Out is a .yar/.yara file receiving every rule, or a directory that gets
	// one <family>.yar per family.
	Out string
	Now time.Time
}

// Generate parses a ThreatFox export and writes the resulting rules. It
// returns the paths written.
func Generate(in io.Reader, opts Options) ([]string, error) {
	fsys := opts.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if opts.Out == "" {
		return nil, errors.New("output path is required")
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	iocs, err := ParseThreatFox(in)
	if err != nil {
		return nil, err
	}
	families := Group(iocs)

	ext := strings.ToLower(filepath.Ext(opts.Out))
	if ext == ".yar" || ext == ".yara" {
		var parts []string
		hashImport := false
		for _, f := range families {
			if src := Render(f, now); src != "" {
				parts = append(parts, src)
				hashImport = hashImport || f.NeedsHashImport()
			}
		}
		if len(parts) == 0 {
			return nil, nil
		}
		body := strings.Join(parts, "\n\n") + "\n"
		if hashImport {
			body = "import \"hash\"\n\n" + body
		}
		if dir := filepath.Dir(opts.Out); dir != "." {
			if err := fsys.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := afero.WriteFile(fsys, opts.Out, []byte(body), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", opts.Out, err)
		}
		return []string{opts.Out}, nil
	}

	if err := fsys.MkdirAll(opts.Out, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", opts.Out, err)
	}
	var written []string
	for _, f := range families {
		src := Render(f, now)
		if src == "" {
			continue
		}
		if f.NeedsHashImport() {
			src = "import \"hash\"\n\n" + src
		}
		path := filepath.Join(opts.Out, SafeName(f.Name)+".yar")
		if err := afero.WriteFile(fsys, path, []byte(src+"\n"), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
