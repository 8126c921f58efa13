// Package collectifor provides the command-line interface for collectifor.
// It configures subcommands (scan, engines, rules, baseline, config), parses
// flags, and executes the selected command.
//
// Typical usage from a main package:
//
//	package main
//	import "github.com/collectifor/collectifor/cmd/collectifor"
//	func main() { collectifor.Execute() }
package collectifor
