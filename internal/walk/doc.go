// Package walk enumerates scan targets under a collection root. Walk yields
// regular files lazily with substring filters; ResolvePrefixes maps
// rule-declared path prefixes to rotated, globbed or literal files on disk.
package walk
