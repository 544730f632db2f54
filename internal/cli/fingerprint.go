// Package cli — fingerprint.go implements the "bringup fingerprint"
// command group.
//
// install sets up fingerprint authentication end to end: the fprintd
// package, a pam_fprintd.so line in the configured PAM stacks, and an
// interactive enrollment for the target user. enable applies only the
// PAM integration (for a host where fprintd is already installed and
// enrolled); uninstall removes the PAM lines and leaves the package and
// enrolled prints alone.
//
// The PAM edit is the sensitive part: the fprintd line must be inserted
// before the first existing auth line so the fingerprint reader is
// consulted before the password prompt, and a broken sudo PAM stack can
// lock the user out. All edits go through the marker-delimited block
// editor, which backs up each file before its first modification.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/bringup/internal/assets"
	"github.com/mmr-tortoise/bringup/internal/confedit"
	"github.com/mmr-tortoise/bringup/internal/model"
	"github.com/mmr-tortoise/bringup/internal/pacman"
)

// pamMarker names the managed block in PAM files.
const pamMarker = "fprintd"

// defaultPAMFiles are the stacks that get the fprintd line when no
// --pam-file is given: sudo and console login.
var defaultPAMFiles = []string{"/etc/pam.d/sudo", "/etc/pam.d/system-local-login"}

// pam_fprintd.so tuning: give up after three bad reads and fall through
// to the password within ten seconds, so a dirty sensor never locks up
// a sudo prompt.
const (
	pamMaxTries = 3
	pamTimeout  = 10
)

// fingerprintFlags holds the flag values for the fingerprint subcommands.
type fingerprintFlags struct {
	user      string   // --user: enrollment target (default SUDO_USER/USER)
	pamFiles  []string // --pam-file: PAM stacks to edit (repeatable)
	finger    string   // --finger: which finger to enroll
	noUpgrade bool     // --no-upgrade: skip the full system upgrade
	noEnroll  bool     // --no-enroll: skip interactive enrollment
}

// NewFingerprintCommand creates the "fingerprint" command group.
func NewFingerprintCommand() *cobra.Command {
	flags := &fingerprintFlags{}

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Fingerprint authentication setup (fprintd + PAM)",
		Long: `Set up fingerprint authentication: install fprintd, add pam_fprintd.so
to the configured PAM stacks ahead of the password prompt, and enroll a
fingerprint for the target user.

Examples:
  bringup fingerprint install
  bringup fingerprint install --user alice --finger left-index-finger
  bringup fingerprint install --pam-file /etc/pam.d/sudo --no-enroll
  bringup fingerprint uninstall`,
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install fprintd, integrate PAM and enroll a fingerprint",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprintInstall(cmd.Context(), flags)
		},
	}
	enableCmd := &cobra.Command{
		Use:   "enable",
		Short: "Add the fingerprint line to the PAM stacks",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprintEnable(flags)
		},
	}
	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the fingerprint line from the PAM stacks",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprintUninstall(flags)
		},
	}

	for _, sub := range []*cobra.Command{installCmd, enableCmd, uninstallCmd} {
		sub.Flags().StringSliceVar(&flags.pamFiles, "pam-file", defaultPAMFiles,
			"PAM file to edit (repeatable)")
	}
	installCmd.Flags().StringVar(&flags.user, "user", "", "User to enroll (default: invoking user)")
	installCmd.Flags().StringVar(&flags.finger, "finger", "right-index-finger", "Finger to enroll")
	installCmd.Flags().BoolVar(&flags.noUpgrade, "no-upgrade", false, "Skip the full system upgrade before installing packages")
	installCmd.Flags().BoolVar(&flags.noEnroll, "no-enroll", false, "Skip interactive fingerprint enrollment")

	cmd.AddCommand(installCmd)
	cmd.AddCommand(enableCmd)
	cmd.AddCommand(uninstallCmd)
	return cmd
}

// pamBlockContent renders the managed pam_fprintd.so line.
func pamBlockContent() (string, error) {
	content, err := assets.Render("pam-fprintd.tmpl", struct {
		MaxTries int
		Timeout  int
	}{MaxTries: pamMaxTries, Timeout: pamTimeout})
	if err != nil {
		return "", model.WrapCLIError(model.ExitFailure, "failed to render PAM block", err)
	}
	return content, nil
}

// applyPAMBlocks inserts the fprintd block into each PAM file, before
// the first auth line. Returns the files that changed.
func applyPAMBlocks(pamFiles []string) ([]string, error) {
	content, err := pamBlockContent()
	if err != nil {
		return nil, err
	}

	editor := &confedit.Editor{DryRun: dryRun, Verbose: VerboseLog}
	var changed []string
	for _, path := range pamFiles {
		applied, err := editor.Apply(confedit.Block{
			Path:         path,
			Marker:       pamMarker,
			Content:      content,
			InsertBefore: "auth",
		})
		if err != nil {
			return changed, model.WrapCLIError(model.ExitFailure,
				fmt.Sprintf("failed to edit %s", path), err)
		}
		if applied {
			changed = append(changed, "updated "+path)
		}
	}
	return changed, nil
}

// runFingerprintInstall is the main orchestration function for
// fingerprint install.
func runFingerprintInstall(ctx context.Context, flags *fingerprintFlags) error {
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
	if err := pac.EnsureInstalled(ctx, "fprintd"); err != nil {
		return err
	}

	changed, err := applyPAMBlocks(flags.pamFiles)
	if err != nil {
		return err
	}

	if !flags.noEnroll {
		enrollUser, err := resolveUser(flags.user)
		if err != nil {
			return err
		}
		if err := enrollFingerprint(ctx, enrollUser, flags.finger); err != nil {
			return err
		}
		changed = append(changed, fmt.Sprintf("enrolled %s for %s", flags.finger, enrollUser))
	}

	printActionResult("fingerprint", "install", changed)
	return nil
}

// runFingerprintEnable applies the PAM integration only.
func runFingerprintEnable(flags *fingerprintFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}
	changed, err := applyPAMBlocks(flags.pamFiles)
	if err != nil {
		return err
	}
	printActionResult("fingerprint", "enable", changed)
	return nil
}

// runFingerprintUninstall removes the managed block from each PAM file.
// fprintd stays installed and enrolled prints are kept; removing the
// PAM line is enough to stop fingerprint prompts.
func runFingerprintUninstall(flags *fingerprintFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}

	editor := &confedit.Editor{DryRun: dryRun, Verbose: VerboseLog}
	var changed []string
	for _, path := range flags.pamFiles {
		removed, err := editor.Remove(path, pamMarker)
		if err != nil {
			return model.WrapCLIError(model.ExitFailure,
				fmt.Sprintf("failed to edit %s", path), err)
		}
		if removed {
			changed = append(changed, "updated "+path)
		}
	}

	printActionResult("fingerprint", "uninstall", changed)
	return nil
}

// enrollFingerprint runs fprintd-enroll for the user. Unlike every
// other external command, enrollment is interactive (the user must
// swipe the sensor on prompt), so it bypasses the capturing runner and
// inherits the terminal directly.
func enrollFingerprint(ctx context.Context, enrollUser, finger string) error {
	if dryRun {
		fmt.Printf("[dry-run] fprintd-enroll -f %s %s\n", finger, enrollUser)
		return nil
	}

	fmt.Printf("Enrolling %s for %s; follow the prompts on the sensor.\n", finger, enrollUser)
	cmd := exec.CommandContext(ctx, "fprintd-enroll", "-f", finger, enrollUser)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("fingerprint enrollment for %s failed", enrollUser), err)
	}
	return nil
}
