// Package cli — status.go implements the "bringup status" command.
//
// status is read-only: it reconstructs the install state of every
// managed target from the filesystem and prints a summary. Nothing is
// cached between invocations, so the report always reflects the current
// state, including manual edits made outside this toolkit.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/bringup/internal/confedit"
	"github.com/mmr-tortoise/bringup/internal/model"
	"github.com/mmr-tortoise/bringup/internal/netman"
)

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the install state of all managed targets",
		Long: `Report the current state of every target this toolkit manages: the
WWAN connection profile, the PAM fingerprint integration, the suspend
hook, the display i2c setup and the Hyprland keybindings block.

Each target is reported as installed, partial (some pieces present,
typically after an interrupted install) or absent.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

// runStatus gathers and prints the state of all targets.
func runStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	targets := []model.Target{
		wwanStatus(cfg.WWAN.ConnectionName),
		fingerprintStatus(),
		filesStatus("suspend",
			filepath.Join(defaultHookDir, sleepHookName), wwanModprobePath),
		filesStatus("display", i2cModulesPath, i2cUdevRulePath),
		hyprlandStatus(),
	}

	printStatus(targets)
	return nil
}

// wwanStatus checks for the connection profile keyfile.
func wwanStatus(conName string) model.Target {
	writer := &netman.Writer{Dir: netman.SystemConnectionsDir}
	if writer.Exists(conName) {
		return model.Target{
			Name:   "wwan",
			Status: model.StatusInstalled,
			Detail: "connection profile " + conName,
		}
	}
	return model.Target{
		Name:   "wwan",
		Status: model.StatusAbsent,
		Detail: "no connection profile " + conName,
	}
}

// fingerprintStatus counts PAM files carrying the managed block.
func fingerprintStatus() model.Target {
	var present, missing []string
	for _, path := range defaultPAMFiles {
		if confedit.Present(path, pamMarker) {
			present = append(present, path)
		} else {
			missing = append(missing, path)
		}
	}

	switch {
	case len(missing) == 0:
		return model.Target{Name: "fingerprint", Status: model.StatusInstalled}
	case len(present) == 0:
		return model.Target{Name: "fingerprint", Status: model.StatusAbsent}
	default:
		return model.Target{
			Name:   "fingerprint",
			Status: model.StatusPartial,
			Detail: "missing from " + strings.Join(missing, ", "),
		}
	}
}

// filesStatus derives a target status from the presence of its
// generated files.
func filesStatus(name string, paths ...string) model.Target {
	var missing []string
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}

	switch {
	case len(missing) == 0:
		return model.Target{Name: name, Status: model.StatusInstalled}
	case len(missing) == len(paths):
		return model.Target{Name: name, Status: model.StatusAbsent}
	default:
		return model.Target{
			Name:   name,
			Status: model.StatusPartial,
			Detail: "missing " + strings.Join(missing, ", "),
		}
	}
}

// hyprlandStatus checks for the managed block in the invoking user's
// hyprland.conf. Failure to resolve the user (e.g. a stripped service
// environment) reports absent rather than failing the whole report.
func hyprlandStatus() model.Target {
	target, err := hyprConfigPath(&hyprlandFlags{})
	if err != nil {
		return model.Target{
			Name:   "hyprland",
			Status: model.StatusAbsent,
			Detail: "could not resolve user config",
		}
	}
	if confedit.Present(target, hyprMarker) {
		return model.Target{Name: "hyprland", Status: model.StatusInstalled, Detail: target}
	}
	return model.Target{Name: "hyprland", Status: model.StatusAbsent}
}

// printStatus outputs the target list in text or JSON format.
func printStatus(targets []model.Target) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(targets, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("%-12s  %-10s  %s\n", "TARGET", "STATUS", "DETAIL")
	for _, t := range targets {
		fmt.Printf("%-12s  %-10s  %s\n", t.Name, t.Status, t.Detail)
	}
}
