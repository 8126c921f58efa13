//go:build !yara

package signature

var compileRules = func([]RuleFile, AttributeSet) (matcher, error) {
	return nil, ErrUnsupported
}
