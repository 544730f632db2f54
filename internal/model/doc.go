// Package model defines the domain types and value objects for the
// bringup CLI.
//
// This package contains pure data structures with no external dependencies.
// There is no persistent in-memory state anywhere in the toolkit: every
// entity here (radio states, target reports) is a transient snapshot
// reconstructed from host system state (rfkill, mbimcli output, config
// files on disk) at query time.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
