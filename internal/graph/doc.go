// Package graph describes task graphs as plan files and runs them on a
// scheduler.
//
// A Plan is a list of named nodes with dependencies, stored as YAML. Plans
// can be written by hand, generated with Random, validated for duplicate
// names, unknown dependencies and cycles, and turned into scheduler tasks
// with Build. Every built task records when it started and finished, so
// Verify can check afterwards that no node started before all of its
// dependencies had finished.
//
// Plan files are written atomically (temp file plus rename) under an
// advisory flock so concurrent processes never observe a partial file.
package graph
