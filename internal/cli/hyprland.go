// Package cli — hyprland.go implements the "bringup hyprland" command
// group.
//
// Keybindings are declared in a YAML file (the embedded defaults or a
// file given with --bindings), validated, rendered to hyprland
// `bind = ...` lines and maintained as one marker-delimited block in
// the user's hyprland.conf. Everything outside the block belongs to the
// user and is never touched.
//
// Unlike the other groups this one edits a per-user file, so it does
// not require root; when run under sudo the target user's config is
// edited, not root's.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/bringup/internal/assets"
	"github.com/mmr-tortoise/bringup/internal/confedit"
	"github.com/mmr-tortoise/bringup/internal/hypr"
	"github.com/mmr-tortoise/bringup/internal/model"
)

// hyprMarker names the managed block in hyprland.conf.
const hyprMarker = "hyprland"

// hyprlandFlags holds the flag values for the hyprland subcommands.
type hyprlandFlags struct {
	config   string // --config: hyprland.conf path (default: <home>/.config/hypr/hyprland.conf)
	bindings string // --bindings: YAML declaration file (default: embedded)
	user     string // --user: whose config to edit (default: invoking user)
}

// NewHyprlandCommand creates the "hyprland" command group.
func NewHyprlandCommand() *cobra.Command {
	flags := &hyprlandFlags{}

	cmd := &cobra.Command{
		Use:   "hyprland",
		Short: "Hyprland keybinding management",
		Long: `Maintain a managed keybindings block in the user's hyprland.conf,
rendered from a YAML keybinding declaration file.

Examples:
  bringup hyprland install
  bringup hyprland install --bindings ~/my-binds.yaml
  bringup hyprland install --user alice
  bringup hyprland uninstall`,
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Render the keybindings block into hyprland.conf",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHyprlandInstall(flags)
		},
	}
	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the managed keybindings block",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHyprlandUninstall(flags)
		},
	}

	for _, sub := range []*cobra.Command{installCmd, uninstallCmd} {
		sub.Flags().StringVar(&flags.config, "config", "", "hyprland.conf path (default: <home>/.config/hypr/hyprland.conf)")
		sub.Flags().StringVar(&flags.user, "user", "", "User whose config to edit (default: invoking user)")
	}
	installCmd.Flags().StringVar(&flags.bindings, "bindings", "", "Keybinding declaration file (default: built-in)")

	cmd.AddCommand(installCmd)
	cmd.AddCommand(uninstallCmd)
	return cmd
}

// hyprConfigPath resolves the target hyprland.conf from the flags.
func hyprConfigPath(flags *hyprlandFlags) (string, error) {
	if flags.config != "" {
		return flags.config, nil
	}

	// Resolve the user first so `sudo bringup hyprland install` edits
	// the human's config rather than /root's.
	name, err := resolveUser(flags.user)
	if err != nil {
		return "", err
	}
	home, err := userHomeDir(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "hypr", "hyprland.conf"), nil
}

// loadBindings reads and validates the declaration file, falling back
// to the embedded defaults.
func loadBindings(flags *hyprlandFlags) (*hypr.Bindings, error) {
	var data []byte
	var err error
	if flags.bindings != "" {
		data, err = os.ReadFile(flags.bindings)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitFailure,
				fmt.Sprintf("failed to read bindings file %s", flags.bindings), err)
		}
	} else {
		data, err = assets.DefaultHyprBindings()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitFailure, "failed to load default bindings", err)
		}
	}

	bindings, err := hypr.Parse(data)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitUsage, "invalid bindings file", err)
	}
	return bindings, nil
}

// runHyprlandInstall renders the bindings and applies the managed block.
func runHyprlandInstall(flags *hyprlandFlags) error {
	bindings, err := loadBindings(flags)
	if err != nil {
		return err
	}
	target, err := hyprConfigPath(flags)
	if err != nil {
		return err
	}

	if !dryRun {
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return model.WrapCLIError(model.ExitFailure,
				fmt.Sprintf("failed to create %s", filepath.Dir(target)), err)
		}
	}

	editor := &confedit.Editor{DryRun: dryRun, Verbose: VerboseLog}
	applied, err := editor.Apply(confedit.Block{
		Path:            target,
		Marker:          hyprMarker,
		Content:         bindings.Render(),
		CreateIfMissing: true,
	})
	if err != nil {
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to edit %s", target), err)
	}

	var changed []string
	if applied {
		changed = append(changed,
			fmt.Sprintf("updated %s (%d bindings)", target, len(bindings.Binds)))
	}
	printActionResult("hyprland", "install", changed)
	return nil
}

// runHyprlandUninstall removes the managed block.
func runHyprlandUninstall(flags *hyprlandFlags) error {
	target, err := hyprConfigPath(flags)
	if err != nil {
		return err
	}

	editor := &confedit.Editor{DryRun: dryRun, Verbose: VerboseLog}
	removed, err := editor.Remove(target, hyprMarker)
	if err != nil {
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to edit %s", target), err)
	}

	var changed []string
	if removed {
		changed = append(changed, "updated "+target)
	}
	printActionResult("hyprland", "uninstall", changed)
	return nil
}
