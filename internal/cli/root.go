// Package cli implements the cobra-based CLI commands for bringup.
//
// Each subcommand group (wwan, fingerprint, suspend, display, hyprland,
// status) is defined in its own file within this package. This file
// defines the root command that serves as the parent for all
// subcommands and handles global flags, exit-code translation and the
// small helpers the command files share.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/bringup/internal/config"
	"github.com/mmr-tortoise/bringup/internal/model"
	"github.com/mmr-tortoise/bringup/internal/run"
)

// Global flag variables shared across all subcommands.
// These are bound to cobra persistent flags on the root command,
// which makes them available to every subcommand automatically.
var (
	// jsonOutput controls whether command output is formatted as JSON.
	// When true, all output uses structured JSON format for machine consumption.
	// When false (default), output uses human-readable text format.
	jsonOutput bool

	// verbose enables detailed logging output for debugging.
	// When true, additional information about operations is printed to stderr.
	verbose bool

	// dryRun previews side effects: external commands are printed
	// instead of executed and files are not written. Root is not
	// required under dry-run.
	dryRun bool

	// configPath is the toolkit configuration file location.
	configPath string
)

// version, commit, and date are set at build time via ldflags.
// They are injected from the main package to display version information.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// NewRootCommand creates and configures the root cobra command.
// This is the entry point for the entire CLI application.
//
// The root command itself does not perform any action — it only
// provides help text and global flags. Actual functionality is provided
// by the subcommand groups.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bringup",
		Short: "ThinkPad Linux desktop bring-up toolkit",
		Long: `bringup configures the device-specific pieces of a ThinkPad Linux
desktop: the WWAN modem and its carrier profile, fingerprint
authentication, the WWAN suspend fix, external display control and
Hyprland keybindings.

Every install action is idempotent: managed files and config blocks are
written only when absent or out of date, and the originals are backed up
before the first edit.`,

		// SilenceUsage prevents cobra from printing usage on every error.
		// We handle error output ourselves for cleaner UX.
		SilenceUsage: true,

		// SilenceErrors prevents cobra from printing errors automatically.
		// We format errors ourselves (text or JSON based on --json flag).
		SilenceErrors: true,

		// Version is displayed when --version flag is used.
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	// PersistentFlags are inherited by all subcommands. This is the cobra
	// mechanism for global flags — any flag defined here is automatically
	// available in every subcommand without re-declaration.
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Print side effects instead of applying them")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Toolkit configuration file")

	// Flag parse failures (unknown flag, bad value) are argument errors
	// and must exit 2, not 1. Cobra surfaces them as plain errors, so we
	// wrap them here before Execute sees them.
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return model.WrapCLIError(model.ExitUsage, "invalid arguments", err)
	})

	// Register subcommand groups. Each group is defined in its own file
	// (wwan.go, fingerprint.go, etc.) and returns a *cobra.Command.
	rootCmd.AddCommand(NewWWANCommand())
	rootCmd.AddCommand(NewFingerprintCommand())
	rootCmd.AddCommand(NewSuspendCommand())
	rootCmd.AddCommand(NewDisplayCommand())
	rootCmd.AddCommand(NewHyprlandCommand())
	rootCmd.AddCommand(NewStatusCommand())

	return rootCmd
}

// Execute runs the root command and handles exit codes.
// This is the main entry point called from main.go.
//
// It inspects errors returned by cobra commands and translates them
// into appropriate OS exit codes. CLIError types carry their own
// exit codes; other errors default to exit code 1.
func Execute(rootCmd *cobra.Command) {
	if err := rootCmd.Execute(); err != nil {
		// Check if the error is a CLIError with a specific exit code.
		// errors.As would also work here, but a type assertion is simpler
		// for this single-level check.
		if cliErr, ok := err.(*model.CLIError); ok {
			printError(cliErr.Message, cliErr.Err)
			os.Exit(int(cliErr.Code))
		}

		// Generic error — exit with code 1.
		printError(err.Error(), nil)
		os.Exit(int(model.ExitFailure))
	}
}

// noArgs validates that a command received no positional arguments,
// reporting violations as argument errors (exit 2).
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return model.WrapCLIError(model.ExitUsage, "invalid arguments", err)
	}
	return nil
}

// printError outputs an error message in the appropriate format
// (JSON or text) based on the --json global flag.
func printError(message string, underlying error) {
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// We write to stderr for errors, even in JSON mode, because
		// stdout is reserved for successful command output.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		if underlying != nil {
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, underlying)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		}
	}
}

// VerboseLog prints a message to stderr only when verbose mode is enabled.
// This is used throughout the CLI for debug/trace output that helps
// users understand what operations are being performed.
func VerboseLog(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// WarnLog prints a warning to stderr. Warnings mark optional steps that
// failed without aborting the command, e.g. a ModemManager restart that
// did not come back.
func WarnLog(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// IsJSONOutput returns whether the --json flag is set.
// Subcommands use this to decide their output format.
func IsJSONOutput() bool {
	return jsonOutput
}

// newRunner returns the command runner for this invocation, honoring
// the global --dry-run and --verbose flags.
func newRunner() *run.Exec {
	return &run.Exec{DryRun: dryRun, Verbose: VerboseLog}
}

// loadConfig loads the toolkit configuration honoring --config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, model.WrapCLIError(model.ExitFailure, "failed to load configuration", err)
	}
	return cfg, nil
}

// requireRoot aborts commands that mutate system state when not running
// as root. Dry runs are exempt so side effects can be previewed from a
// regular shell.
func requireRoot() error {
	if dryRun {
		return nil
	}
	if os.Geteuid() != 0 {
		return model.NewCLIError(model.ExitFailure, "this command must be run as root")
	}
	return nil
}

// resolveUser determines the target user for per-user actions
// (fingerprint enrollment, hyprland config). Precedence: the explicit
// flag, then SUDO_USER (the human behind a sudo invocation), then USER.
func resolveUser(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		return sudoUser, nil
	}
	if envUser := os.Getenv("USER"); envUser != "" {
		return envUser, nil
	}
	return "", model.NewCLIError(model.ExitUsage,
		"could not determine target user; pass --user")
}

// userHomeDir returns the home directory of the named user. An empty
// name means the current user.
func userHomeDir(name string) (string, error) {
	if name == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", model.WrapCLIError(model.ExitFailure, "failed to determine home directory", err)
		}
		return home, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return "", model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("unknown user %q", name), err)
	}
	return u.HomeDir, nil
}

// writeManagedFile writes a whole generated file, skipping the write
// when the on-disk content already matches. This is the whole-file
// analogue of the confedit block contract: a second install leaves the
// target byte-identical.
func writeManagedFile(path, content string, mode os.FileMode) (bool, error) {
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == content {
		VerboseLog("%s already current", path)
		return false, nil
	}

	if dryRun {
		fmt.Printf("[dry-run] write %s\n", path)
		return true, nil
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return false, model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to write %s", path), err)
	}
	VerboseLog("wrote %s", path)
	return true, nil
}

// removeManagedFile deletes a generated file. A missing file reports no
// change, keeping uninstall idempotent.
func removeManagedFile(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to stat %s", path), err)
	}
	if dryRun {
		fmt.Printf("[dry-run] remove %s\n", path)
		return true, nil
	}
	if err := os.Remove(path); err != nil {
		return false, model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to remove %s", path), err)
	}
	VerboseLog("removed %s", path)
	return true, nil
}

// printActionResult outputs a simple action summary in text or JSON.
// Commands with richer results define their own printers; the
// install/uninstall actions share this shape: which target, what
// happened, what changed.
func printActionResult(target, action string, changed []string) {
	if IsJSONOutput() {
		result := map[string]interface{}{
			"target":  target,
			"action":  action,
			"changed": changed,
		}
		if changed == nil {
			result["changed"] = []string{}
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	if len(changed) == 0 {
		fmt.Printf("%s %s: nothing to do, already up to date\n", target, action)
		return
	}
	fmt.Printf("%s %s:\n", target, action)
	for _, c := range changed {
		fmt.Printf("  %s\n", c)
	}
}
