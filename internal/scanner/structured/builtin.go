package structured

import (
	_ "embed"
)

// BuiltinAuthSource names the embedded auth-log rule pack in findings.
const BuiltinAuthSource = "builtin:auth.yml"

//go:embed builtin/auth.yml
var builtinAuth []byte

// BuiltinAuthRules returns the embedded authentication log rules.
func BuiltinAuthRules() ([]*Rule, error) {
	return ParseRules(builtinAuth, BuiltinAuthSource)
}
