// Package cli — display.go implements the "bringup display" command
// group.
//
// External display brightness/contrast control via ddcutil needs three
// things on an Arch host: the ddcutil package, the i2c-dev kernel
// module, and read/write access to the /dev/i2c-* nodes for a
// non-root group. install provides all three and applies them
// immediately (modprobe + udev reload) so no reboot is needed.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/bringup/internal/assets"
	"github.com/mmr-tortoise/bringup/internal/model"
	"github.com/mmr-tortoise/bringup/internal/pacman"
	"github.com/mmr-tortoise/bringup/internal/run"
)

const (
	// i2cModulesPath loads i2c-dev at boot.
	i2cModulesPath = "/etc/modules-load.d/bringup-i2c.conf"

	// i2cUdevRulePath grants the configured group access to /dev/i2c-*.
	i2cUdevRulePath = "/etc/udev/rules.d/60-bringup-i2c.rules"
)

// displayFlags holds the flag values for the display subcommands.
type displayFlags struct {
	group     string // --group: group granted access to the i2c devices
	noUpgrade bool   // --no-upgrade: skip the full system upgrade
}

// NewDisplayCommand creates the "display" command group.
func NewDisplayCommand() *cobra.Command {
	flags := &displayFlags{}

	cmd := &cobra.Command{
		Use:   "display",
		Short: "External display control setup (ddcutil + i2c access)",
		Long: `Set up DDC/CI display control: install ddcutil, load the i2c-dev
module at boot, and grant a group access to the I2C devices so
brightness can be adjusted without root.

Examples:
  bringup display install
  bringup display install --group video
  bringup display uninstall`,
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install ddcutil and configure i2c access",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisplayInstall(cmd.Context(), flags)
		},
	}
	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the i2c module load and udev rule",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisplayUninstall(cmd.Context(), flags)
		},
	}

	for _, sub := range []*cobra.Command{installCmd, uninstallCmd} {
		sub.Flags().StringVar(&flags.group, "group", "i2c", "Group granted access to /dev/i2c-*")
	}
	installCmd.Flags().BoolVar(&flags.noUpgrade, "no-upgrade", false, "Skip the full system upgrade before installing packages")

	cmd.AddCommand(installCmd)
	cmd.AddCommand(uninstallCmd)
	return cmd
}

// runDisplayInstall is the main orchestration function for display
// install.
func runDisplayInstall(ctx context.Context, flags *displayFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}
	runner := newRunner()

	pac := &pacman.Pacman{Run: runner, Verbose: VerboseLog}
	if !flags.noUpgrade {
		if err := pac.Upgrade(ctx); err != nil {
			return err
		}
	}
	if err := pac.EnsureInstalled(ctx, "ddcutil"); err != nil {
		return err
	}

	var changed []string

	modules, err := assets.Render("i2c-modules.conf.tmpl", nil)
	if err != nil {
		return model.WrapCLIError(model.ExitFailure, "failed to render module load file", err)
	}
	written, err := writeManagedFile(i2cModulesPath, modules, 0644)
	if err != nil {
		return err
	}
	if written {
		changed = append(changed, "installed "+i2cModulesPath)
	}

	rule, err := assets.Render("i2c-udev.rules.tmpl", struct{ Group string }{Group: flags.group})
	if err != nil {
		return model.WrapCLIError(model.ExitFailure, "failed to render udev rule", err)
	}
	written, err = writeManagedFile(i2cUdevRulePath, rule, 0644)
	if err != nil {
		return err
	}
	if written {
		changed = append(changed, "installed "+i2cUdevRulePath)
	}

	// Apply without a reboot: load the module now and have udev re-apply
	// permissions on the existing device nodes. Both are best-effort;
	// the boot-time configuration above is the durable part.
	if _, err := runner.Run(ctx, "modprobe", "i2c-dev"); err != nil {
		WarnLog("could not load i2c-dev now (will load at boot): %v", err)
	}
	if written {
		reloadUdevRules(ctx, runner)
	}

	printActionResult("display", "install", changed)
	return nil
}

// runDisplayUninstall removes the generated files. ddcutil stays
// installed; packages are never removed by uninstall actions.
func runDisplayUninstall(ctx context.Context, flags *displayFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}
	runner := newRunner()

	var changed []string
	ruleRemoved := false
	for _, path := range []string{i2cModulesPath, i2cUdevRulePath} {
		removed, err := removeManagedFile(path)
		if err != nil {
			return err
		}
		if removed {
			changed = append(changed, "removed "+path)
			if path == i2cUdevRulePath {
				ruleRemoved = true
			}
		}
	}
	if ruleRemoved {
		reloadUdevRules(ctx, runner)
	}

	printActionResult("display", "uninstall", changed)
	return nil
}

// reloadUdevRules reloads udev's rule set and re-triggers the i2c
// devices so permission changes apply to existing nodes.
func reloadUdevRules(ctx context.Context, runner run.Runner) {
	if _, err := runner.Run(ctx, "udevadm", "control", "--reload"); err != nil {
		WarnLog("udev reload failed (rule applies after reboot): %v", err)
		return
	}
	if _, err := runner.Run(ctx, "udevadm", "trigger", "--subsystem-match=i2c-dev"); err != nil {
		WarnLog("udev trigger failed (rule applies after reboot): %v", err)
	}
}
