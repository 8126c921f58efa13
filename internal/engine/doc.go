// Package engine orchestrates a collectifor run. It validates the collection
// root, runs each enabled detection engine in a fixed order, merges their
// findings and hands the batch to an optional sink. This package is internal;
// external consumers should use the stable facade in pkg/core.
package engine
