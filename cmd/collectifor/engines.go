package collectifor

import (
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/collectifor/collectifor/internal/scanner"
)

var enginesFlags targetFlags

func init() {
	cmd := &cobra.Command{
		Use:   "engines",
		Short: "List engines and whether they would run",
		RunE:  runEngines,
	}
	addTargetFlags(cmd, &enginesFlags)
	rootCmd.AddCommand(cmd)
}

func runEngines(cmd *cobra.Command, _ []string) error {
	s, err := resolve(enginesFlags)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("ENGINE", "STATE", "SOURCE")
	for _, name := range scanner.EngineNames() {
		state := "disabled"
		if s.Engines.Active(name) {
			state = "enabled"
		}
		if err := table.Append([]string{name, state, engineSource(s, name)}); err != nil {
			return err
		}
	}
	return table.Render()
}

func engineSource(s settings, name string) string {
	ec := s.Engines
	switch name {
	case scanner.EngineSignature:
		return orDash(ec.Signature.RulesDir)
	case scanner.EngineLiteral:
		return orDash(ec.Literal.RulesDir)
	case scanner.EngineStructured:
		src := orDash(ec.Structured.RulesDir)
		if ec.Structured.BuiltinAuth {
			src += " +builtin auth"
		}
		return src
	case scanner.EnginePermissions:
		if ec.Permissions.File != "" {
			return ec.Permissions.File
		}
		return "file_permissions.txt"
	case scanner.EnginePersistence:
		return "systemd, cron, shell profiles, ssh"
	}
	return "-"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
