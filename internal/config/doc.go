// Package config loads collectifor configuration from local and global YAML
// files and the environment. It is internal; CLI code maps flags and these
// layers into engine configuration with CLI > env > local > global
// precedence.
package config
