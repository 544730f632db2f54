// Package cli — wwan.go implements the "bringup wwan" command group.
//
// The wwan group is the primary operation of the toolkit: bring a
// ThinkPad WWAN modem from a fresh install (or a wedged radio) to an
// active carrier connection.
//
// Orchestration steps for install:
//  1. Refresh and install the modem stack packages (libmbim,
//     ModemManager, NetworkManager)
//  2. Clear any soft rfkill block on the WWAN radio
//  3. Run the radio-enable fallback chain against the MBIM device
//  4. Write the NetworkManager keyfile connection profile
//  5. Reload NetworkManager profiles if the keyfile changed
//  6. Activate the connection and wait for it to come up
//
// enable repeats steps 2-3 and 6 without touching packages or the
// profile; uninstall tears down the connection and removes the profile.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/bringup/internal/config"
	"github.com/mmr-tortoise/bringup/internal/model"
	"github.com/mmr-tortoise/bringup/internal/modem"
	"github.com/mmr-tortoise/bringup/internal/netman"
	"github.com/mmr-tortoise/bringup/internal/pacman"
	"github.com/mmr-tortoise/bringup/internal/rfkill"
	"github.com/mmr-tortoise/bringup/internal/run"
	"github.com/mmr-tortoise/bringup/internal/systemd"
)

// wwanPackages is the modem stack installed by `wwan install`.
var wwanPackages = []string{"libmbim", "modemmanager", "networkmanager"}

// wwanFlags holds the flag values for the wwan subcommands.
// These are bound to cobra flags in NewWWANCommand.
type wwanFlags struct {
	apn         string        // --apn: carrier access point name
	conName     string        // --con-name: NetworkManager connection id
	device      string        // --device: MBIM control device node
	wait        time.Duration // --wait: activation wait budget (0 checks once)
	directMBIM  bool          // --direct-mbim: skip the mbim-proxy step
	noUpgrade   bool          // --no-upgrade: skip the full system upgrade
	routeMetric int           // --route-metric: IPv4/IPv6 route metric
	username    string        // --username: carrier auth user
	password    string        // --password: carrier auth password
}

// NewWWANCommand creates the "wwan" command group with its
// install/enable/uninstall subcommands.
func NewWWANCommand() *cobra.Command {
	flags := &wwanFlags{}

	cmd := &cobra.Command{
		Use:   "wwan",
		Short: "WWAN modem bring-up and carrier connection management",
		Long: `Manage the WWAN modem: install the modem stack, enable the radio
through an ordered chain of fallback methods, and configure the
NetworkManager carrier connection profile.

Examples:
  bringup wwan install
  bringup wwan install --apn spmode.ne.jp --con-name docomo
  bringup wwan enable --direct-mbim
  bringup wwan uninstall`,
	}

	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Install the modem stack, enable the radio and configure the connection",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWWANInstall(cmd.Context(), flags)
		},
	}
	enableCmd := &cobra.Command{
		Use:   "enable",
		Short: "Enable the WWAN radio and activate the connection",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWWANEnable(cmd.Context(), flags)
		},
	}
	uninstallCmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Deactivate the connection and remove its profile",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWWANUninstall(cmd.Context(), flags)
		},
	}

	// Flags are shared across the group so `enable` and `uninstall`
	// address the same connection `install` created.
	for _, sub := range []*cobra.Command{installCmd, enableCmd, uninstallCmd} {
		sub.Flags().StringVar(&flags.apn, "apn", "", "Access point name (default from config)")
		sub.Flags().StringVar(&flags.conName, "con-name", "", "Connection name (default from config)")
		sub.Flags().StringVar(&flags.device, "device", "", "MBIM device node (default from config)")
		sub.Flags().DurationVar(&flags.wait, "wait", 90*time.Second, "How long to wait for the connection to activate (0 checks once)")
		sub.Flags().BoolVar(&flags.directMBIM, "direct-mbim", false, "Talk to the device directly, skipping mbim-proxy")
		sub.Flags().BoolVar(&flags.noUpgrade, "no-upgrade", false, "Skip the full system upgrade before installing packages")
		sub.Flags().IntVar(&flags.routeMetric, "route-metric", 0, "IPv4/IPv6 route metric for the connection (default from config)")
		sub.Flags().StringVar(&flags.username, "username", "", "Carrier auth username (most carriers need none)")
		sub.Flags().StringVar(&flags.password, "password", "", "Carrier auth password")
	}

	cmd.AddCommand(installCmd)
	cmd.AddCommand(enableCmd)
	cmd.AddCommand(uninstallCmd)
	return cmd
}

// applyWWANDefaults fills unset flags from the loaded configuration.
func applyWWANDefaults(flags *wwanFlags, cfg config.Config) {
	if flags.apn == "" {
		flags.apn = cfg.WWAN.APN
	}
	if flags.conName == "" {
		flags.conName = cfg.WWAN.ConnectionName
	}
	if flags.device == "" {
		flags.device = cfg.Modem.Device
	}
	if flags.routeMetric == 0 {
		flags.routeMetric = cfg.WWAN.RouteMetric
	}
}

// newRadioChain wires the radio-enable chain from the configuration.
// Under dry-run the chain gets no unit controller: previewing must not
// stop ModemManager for real.
func newRadioChain(flags *wwanFlags, cfg config.Config, runner run.Runner) *modem.Chain {
	var units modem.UnitController
	if !dryRun {
		units = systemd.New()
	}
	return &modem.Chain{
		Run:            runner,
		Units:          units,
		Device:         flags.device,
		ATPort:         cfg.Modem.ATPort,
		ResetPath:      cfg.Modem.ResetPath,
		AttemptTimeout: cfg.Modem.AttemptTimeout(),
		StepPause:      cfg.Modem.StepPause(),
		ResetWait:      cfg.Modem.ResetWait(),
		DirectOnly:     flags.directMBIM,
		Verbose:        VerboseLog,
	}
}

// enableRadio clears the soft rfkill block and runs the fallback chain.
func enableRadio(ctx context.Context, flags *wwanFlags, cfg config.Config, runner run.Runner) error {
	rf := &rfkill.Client{Run: runner}
	if err := rf.Unblock(ctx, "wwan"); err != nil {
		// A host without an rfkill switch for the modem is fine; the
		// chain queries the modem itself.
		WarnLog("could not clear rfkill block (continuing): %v", err)
	}

	if dryRun {
		fmt.Printf("[dry-run] run radio-enable chain against %s\n", flags.device)
		return nil
	}
	return newRadioChain(flags, cfg, runner).Enable(ctx)
}

// activateConnection brings the connection up and waits for activation.
func activateConnection(ctx context.Context, flags *wwanFlags, runner run.Runner) error {
	nm := &netman.Nmcli{Run: runner, Verbose: VerboseLog}
	if err := nm.Up(ctx, flags.conName); err != nil {
		return err
	}
	if dryRun {
		return nil
	}
	return nm.WaitActive(ctx, flags.conName, flags.wait)
}

// runWWANInstall is the main orchestration function for wwan install.
func runWWANInstall(ctx context.Context, flags *wwanFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyWWANDefaults(flags, cfg)
	runner := newRunner()

	var changed []string

	// Step 1: packages. The upgrade runs first so new packages are not
	// installed against a stale sync database.
	pac := &pacman.Pacman{Run: runner, Verbose: VerboseLog}
	if !flags.noUpgrade {
		if err := pac.Upgrade(ctx); err != nil {
			return err
		}
	}
	if err := pac.EnsureInstalled(ctx, wwanPackages...); err != nil {
		return err
	}

	// Steps 2-3: radio.
	if err := enableRadio(ctx, flags, cfg, runner); err != nil {
		return err
	}
	changed = append(changed, "radio enabled on "+flags.device)

	// Step 4: connection profile.
	writer := &netman.Writer{Dir: netman.SystemConnectionsDir, DryRun: dryRun, Verbose: VerboseLog}
	profileChanged, err := writer.Write(netman.Profile{
		Name:        flags.conName,
		APN:         flags.apn,
		Username:    flags.username,
		Password:    flags.password,
		Autoconnect: true,
		RouteMetric: flags.routeMetric,
	})
	if err != nil {
		return err
	}

	// Step 5: reload only when the keyfile actually changed.
	nm := &netman.Nmcli{Run: runner, Verbose: VerboseLog}
	if profileChanged {
		changed = append(changed, "connection profile "+flags.conName)
		if err := nm.Reload(ctx); err != nil {
			return err
		}
	}

	// Step 6: activation.
	if err := activateConnection(ctx, flags, runner); err != nil {
		return err
	}
	changed = append(changed, "connection "+flags.conName+" active")

	printWWANResult(ctx, "install", flags, runner, changed)
	return nil
}

// runWWANEnable enables the radio and activates the existing
// connection, without touching packages or the profile.
func runWWANEnable(ctx context.Context, flags *wwanFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyWWANDefaults(flags, cfg)
	runner := newRunner()

	if err := enableRadio(ctx, flags, cfg, runner); err != nil {
		return err
	}
	if err := activateConnection(ctx, flags, runner); err != nil {
		return err
	}

	printWWANResult(ctx, "enable", flags, runner,
		[]string{"radio enabled on " + flags.device, "connection " + flags.conName + " active"})
	return nil
}

// runWWANUninstall deactivates the connection and removes its profile.
// Packages are left installed: other components may depend on them, and
// removing them is a distinct decision the user can make with pacman.
func runWWANUninstall(ctx context.Context, flags *wwanFlags) error {
	if err := requireRoot(); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyWWANDefaults(flags, cfg)
	runner := newRunner()

	var changed []string

	nm := &netman.Nmcli{Run: runner, Verbose: VerboseLog}
	if err := nm.Down(ctx, flags.conName); err != nil {
		// An inactive or unknown connection is the desired end state.
		VerboseLog("connection down failed (ignored): %v", err)
	}

	writer := &netman.Writer{Dir: netman.SystemConnectionsDir, DryRun: dryRun, Verbose: VerboseLog}
	removed, err := writer.Remove(flags.conName)
	if err != nil {
		return err
	}
	if removed {
		changed = append(changed, "removed connection profile "+flags.conName)
		if err := nm.Reload(ctx); err != nil {
			return err
		}
	}

	printActionResult("wwan", "uninstall", changed)
	return nil
}

// printWWANResult outputs the wwan result in text or JSON format,
// including the final radio and connection state.
func printWWANResult(ctx context.Context, action string, flags *wwanFlags, runner run.Runner, changed []string) {
	if dryRun {
		printActionResult("wwan", action, changed)
		return
	}

	// Best-effort state snapshot for the summary; a failed query leaves
	// the fields unknown rather than failing a command that succeeded.
	state := model.RadioState{Hardware: model.Unknown, Software: model.Unknown}
	chain := &modem.Chain{Run: runner, Device: flags.device, Verbose: VerboseLog}
	if s, err := chain.QueryState(ctx, !flags.directMBIM); err == nil {
		state = s
	}

	active := false
	nm := &netman.Nmcli{Run: runner, Verbose: VerboseLog}
	if a, err := nm.IsActive(ctx, flags.conName); err == nil {
		active = a
	}

	if IsJSONOutput() {
		result := struct {
			Target     string           `json:"target"`
			Action     string           `json:"action"`
			Device     string           `json:"device"`
			Connection string           `json:"connection"`
			Radio      model.RadioState `json:"radio"`
			Active     bool             `json:"active"`
			Changed    []string         `json:"changed"`
		}{
			Target:     "wwan",
			Action:     action,
			Device:     flags.device,
			Connection: flags.conName,
			Radio:      state,
			Active:     active,
			Changed:    changed,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("WWAN %s complete\n", action)
	fmt.Printf("  Device:      %s\n", flags.device)
	fmt.Printf("  Radio:       %s\n", state)
	fmt.Printf("  Connection:  %s (active: %t)\n", flags.conName, active)
}
