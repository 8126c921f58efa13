package collectifor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/collectifor/collectifor/internal/config"
	"github.com/collectifor/collectifor/internal/scanner"
	"github.com/collectifor/collectifor/internal/scanner/factory"
	"github.com/collectifor/collectifor/internal/store"
)

// targetFlags are the flags shared by every command that resolves a
// collection and its engines.
type targetFlags struct {
	root            string
	signatureRules  string
	literalRules    string
	structuredRules string
	include         []string
	exclude         []string
	enable          string
	disable         string
	storeBackend    string
	storePath       string
	storeDSN        string
}

// settings is the fully resolved run configuration.
type settings struct {
	Root     string
	LogLevel string
	Workers  int
	Include  []string
	Exclude  []string
	NoColor  bool
	Engines  factory.Config
	Store    store.Options
}

// layers holds the configuration sources below the CLI, highest first.
type layers struct {
	env, local, global config.FileConfig
}

func loadLayers(root string) (layers, error) {
	if err := config.LoadEnv(); err != nil {
		return layers{}, err
	}
	l := layers{env: config.FromEnv()}
	if flagConfig != "" {
		fc, err := config.LoadFile(flagConfig)
		if err != nil {
			return l, fmt.Errorf("load config %s: %w", flagConfig, err)
		}
		l.local = fc
		return l, nil
	}
	if c, err := config.LoadLocal(root); err == nil {
		l.local = c
	}
	if c, err := config.LoadGlobal(); err == nil {
		l.global = c
	}
	return l, nil
}

// resolve merges CLI > env > local > global for tf.
func resolve(tf targetFlags) (settings, error) {
	root := tf.root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return settings{}, fmt.Errorf("resolve root: %w", err)
	}
	ly, err := loadLayers(abs)
	if err != nil {
		return settings{}, err
	}
	env, lcfg, gcfg := ly.env, ly.local, ly.global

	s := settings{
		Root:     abs,
		LogLevel: pickString(flagLogLevel, env.LogLevel, lcfg.LogLevel, gcfg.LogLevel),
		Workers:  pickInt(flagWorkers, env.Workers, lcfg.Workers, gcfg.Workers),
		Include:  pickStrings(tf.include, lcfg.Include, gcfg.Include),
		Exclude:  pickStrings(tf.exclude, lcfg.Exclude, gcfg.Exclude),
		NoColor:  pickBool(flagNoColor, lcfg.NoColor, gcfg.NoColor),
	}

	ls, ll, lst, lp, le := lcfg.SignatureSection(), lcfg.LiteralSection(), lcfg.StructuredSection(), lcfg.PermissionsSection(), lcfg.EntropySection()
	gs, gl, gst, gp, ge := gcfg.SignatureSection(), gcfg.LiteralSection(), gcfg.StructuredSection(), gcfg.PermissionsSection(), gcfg.EntropySection()

	ec := &s.Engines
	ec.Signature.RulesDir = pickString(tf.signatureRules, ls.RulesDir, gs.RulesDir)
	ec.Signature.Enabled = pickBoolDefault(ec.Signature.RulesDir != "", ls.Enabled, gs.Enabled)

	ec.Literal.RulesDir = pickString(tf.literalRules, ll.RulesDir, gl.RulesDir)
	ec.Literal.Binary = pickString("", ll.Binary, gl.Binary)
	ec.Literal.Enabled = pickBoolDefault(ec.Literal.RulesDir != "", ll.Enabled, gl.Enabled)

	ec.Structured.RulesDir = pickString(tf.structuredRules, lst.RulesDir, gst.RulesDir)
	ec.Structured.BuiltinAuth = pickBoolDefault(true, lst.BuiltinAuth, gst.BuiltinAuth)
	ec.Structured.Enabled = pickBoolDefault(ec.Structured.RulesDir != "" || ec.Structured.BuiltinAuth, lst.Enabled, gst.Enabled)

	ec.Permissions.File = pickString("", lp.File, gp.File)
	ec.Permissions.Enabled = pickBoolDefault(true, lp.Enabled, gp.Enabled)

	ec.Persistence.Enabled = pickBoolDefault(true, lcfg.PersistenceSection().Enabled, gcfg.PersistenceSection().Enabled)

	ec.Entropy.Enabled = pickBoolDefault(false, le.Enabled, ge.Enabled)
	ec.Entropy.Threshold = pickFloat(0, le.Threshold, ge.Threshold)
	if raw := pickString("", le.MaxSize, ge.MaxSize); raw != "" {
		n, err := config.ParseSize(raw)
		if err != nil {
			return settings{}, fmt.Errorf("entropy.max_size: %w", err)
		}
		ec.Entropy.MaxSize = n
	}

	ec.Enable = scanner.NameSet(pickString(tf.enable, lcfg.Enable, gcfg.Enable))
	ec.Disable = scanner.NameSet(pickString(tf.disable, lcfg.Disable, gcfg.Disable))
	if err := checkNames(ec.Enable, ec.Disable); err != nil {
		return settings{}, err
	}

	es, lsto, gsto := env.StoreSection(), lcfg.StoreSection(), gcfg.StoreSection()
	s.Store = store.Options{
		Backend: pickString(tf.storeBackend, es.Backend, lsto.Backend, gsto.Backend),
		Path:    pickString(tf.storePath, es.Path, lsto.Path, gsto.Path),
		DSN:     pickString(tf.storeDSN, es.DSN, lsto.DSN, gsto.DSN),
	}
	return s, nil
}

func checkNames(sets ...map[string]bool) error {
	known := map[string]bool{}
	for _, n := range scanner.EngineNames() {
		known[n] = true
	}
	var bad []string
	for _, set := range sets {
		for n := range set {
			if !known[n] {
				bad = append(bad, n)
			}
		}
	}
	if len(bad) == 0 {
		return nil
	}
	sort.Strings(bad)
	return fmt.Errorf("unknown engine(s): %s (known: %s)", strings.Join(bad, ", "), strings.Join(scanner.EngineNames(), ", "))
}

// active lists the engines that will run under s, in execution order.
func (s settings) active() []string {
	var out []string
	for _, n := range scanner.EngineNames() {
		if s.Engines.Active(n) {
			out = append(out, n)
		}
	}
	return out
}
