package collectifor

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/collectifor/collectifor/internal/config"
)

var (
	cfgOutput          string
	cfgSignatureRules  string
	cfgLiteralRules    string
	cfgStructuredRules string
	cfgWorkers         int
	cfgEntropy         bool
	cfgStore           string
	cfgStorePath       string
	cfgNoColor         bool
	cfgForce           bool
)

func init() {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	rootCmd.AddCommand(cfgCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter .collectifor.yml",
		RunE:  runConfigInit,
	}
	cfgCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&cfgOutput, "output", config.LocalNames[0], "output file path")
	initCmd.Flags().StringVar(&cfgSignatureRules, "signature-rules", "rules/yara", "YARA rules directory")
	initCmd.Flags().StringVar(&cfgLiteralRules, "literal-rules", "rules/iocs", "indicator lists directory")
	initCmd.Flags().StringVar(&cfgStructuredRules, "structured-rules", "", "structured rules directory")
	initCmd.Flags().IntVar(&cfgWorkers, "workers", 0, "worker count (0 = GOMAXPROCS)")
	initCmd.Flags().BoolVar(&cfgEntropy, "entropy", false, "enable the high-entropy analyzer")
	initCmd.Flags().StringVar(&cfgStore, "store", "", "findings store backend: jsonl|forensicstore|postgres")
	initCmd.Flags().StringVar(&cfgStorePath, "store-path", "", "findings store file")
	initCmd.Flags().BoolVar(&cfgNoColor, "no-color", false, "disable color output by default")
	initCmd.Flags().BoolVar(&cfgForce, "force", false, "overwrite an existing file")
}

func starterConfig() config.FileConfig {
	fc := config.FileConfig{
		LogLevel: strPtr("info"),
		Workers:  intPtr(cfgWorkers),
		Signature: &config.SignatureConfig{
			RulesDir: optStrPtr(cfgSignatureRules),
		},
		Literal: &config.LiteralConfig{
			RulesDir: optStrPtr(cfgLiteralRules),
		},
		Structured: &config.StructuredConfig{
			RulesDir:    optStrPtr(cfgStructuredRules),
			BuiltinAuth: boolPtr(true),
		},
		Permissions: &config.PermissionsConfig{Enabled: boolPtr(true)},
		Persistence: &config.PersistenceConfig{Enabled: boolPtr(true)},
		Entropy: &config.EntropyConfig{
			Enabled: boolPtr(cfgEntropy),
			MaxSize: strPtr("1GB"),
		},
	}
	if cfgNoColor {
		fc.NoColor = boolPtr(true)
	}
	if cfgStore != "" {
		fc.Store = &config.StoreConfig{Backend: strPtr(cfgStore), Path: optStrPtr(cfgStorePath)}
	}
	return fc
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(cfgOutput); err == nil && !cfgForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgOutput)
	}
	fc := starterConfig()
	b, err := yaml.Marshal(&fc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfgOutput, b, 0644); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote", cfgOutput)
	return nil
}
