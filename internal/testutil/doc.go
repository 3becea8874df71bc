// Package testutil holds deterministic building blocks for replay runs
// that must be reproducible: sequential replay ids and event sequences
// with consecutive positions and timestamps.
package testutil
