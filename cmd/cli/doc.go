// Package cli constructs the prsync command-line interface, wiring the Cobra
// command hierarchy, the configuration loader and structured logging around
// the submodule-sync and automerge workflows.
package cli
