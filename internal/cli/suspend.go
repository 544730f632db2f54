// Package cli — suspend.go implements the "bringup suspend" command
// group.
//
// The suspend fix addresses a ThinkPad WWAN firmware quirk: the modem
// wedges if it goes through S3 with the radio live, and comes back
// half-initialized if the MBIM function rebinds before the network
// function. Two files fix it:
//
//   - a systemd system-sleep hook that soft-blocks the radio and stops
//     ModemManager before suspend, reversing both on resume;
//   - a modprobe options file pinning the cdc_mbim binding order.
//
// Both are generated whole files, written only when their content
// differs from what is on disk.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/bringup/internal/assets"
	"github.com/mmr-tortoise/bringup/internal/model"
)

const (
	// defaultHookDir is where systemd-sleep(8) looks for hooks.
	defaultHookDir = "/usr/lib/systemd/system-sleep"

	// sleepHookName is the hook file installed into the hook dir.
	sleepHookName = "bringup-wwan.sh"

	// wwanModprobePath pins the cdc_mbim module options.
	wwanModprobePath = "/etc/modprobe.d/bringup-wwan.conf"
)

// suspendFlags holds the flag values for the suspend subcommands.
type suspendFlags struct {
	hookDir  string // --hook-dir: system-sleep hook directory
	noRfkill bool   // --no-rfkill: omit the rfkill block/unblock from the hook
}

// NewSuspendCommand creates the "suspend" command group.
func NewSuspendCommand() *cobra.Command {
	flags := &suspendFlags{}

	cmd := &cobra.Command{
		Use:   "suspend",
		Short: "WWAN suspend/resume fix",
		Long: `Install the WWAN suspend fix: a systemd system-sleep hook that
quiesces the modem before suspend and restores it on resume, plus a
modprobe options file keeping the MBIM driver binding stable across
suspend cycles.

Examples:
  bringup suspend install
  bringup suspend install --no-rfkill
  bringup suspend uninstall`,
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install the sleep hook and modprobe options",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuspendInstall(flags)
		},
	}
	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the sleep hook and modprobe options",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuspendUninstall(flags)
		},
	}

	for _, sub := range []*cobra.Command{installCmd, uninstallCmd} {
		sub.Flags().StringVar(&flags.hookDir, "hook-dir", defaultHookDir, "systemd system-sleep hook directory")
	}
	installCmd.Flags().BoolVar(&flags.noRfkill, "no-rfkill", false, "Do not rfkill-block the radio around suspend")

	cmd.AddCommand(installCmd)
	cmd.AddCommand(uninstallCmd)
	return cmd
}

// runSuspendInstall writes the hook and the modprobe file. systemd
// picks system-sleep hooks up per suspend, so no reload is needed; the
// modprobe options take effect at the next module load (in practice,
// the next boot or modem reset).
func runSuspendInstall(flags *suspendFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}

	var changed []string

	hook, err := assets.Render("wwan-sleep.sh.tmpl", struct{ UseRfkill bool }{UseRfkill: !flags.noRfkill})
	if err != nil {
		return model.WrapCLIError(model.ExitFailure, "failed to render sleep hook", err)
	}
	hookPath := filepath.Join(flags.hookDir, sleepHookName)
	// Hooks must be executable or systemd-sleep silently skips them.
	written, err := writeManagedFile(hookPath, hook, 0755)
	if err != nil {
		return err
	}
	if written {
		changed = append(changed, "installed "+hookPath)
	}

	modprobe, err := assets.Render("wwan-modprobe.conf.tmpl", nil)
	if err != nil {
		return model.WrapCLIError(model.ExitFailure, "failed to render modprobe options", err)
	}
	written, err = writeManagedFile(wwanModprobePath, modprobe, 0644)
	if err != nil {
		return err
	}
	if written {
		changed = append(changed, "installed "+wwanModprobePath)
		fmt.Println("Note: modprobe options apply at the next cdc_mbim module load.")
	}

	printActionResult("suspend", "install", changed)
	return nil
}

// runSuspendUninstall removes both generated files.
func runSuspendUninstall(flags *suspendFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}

	var changed []string
	for _, path := range []string{filepath.Join(flags.hookDir, sleepHookName), wwanModprobePath} {
		removed, err := removeManagedFile(path)
		if err != nil {
			return err
		}
		if removed {
			changed = append(changed, "removed "+path)
		}
	}

	printActionResult("suspend", "uninstall", changed)
	return nil
}
