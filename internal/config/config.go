// Package config loads the toolkit configuration file.
//
// The file lives at /etc/bringup/config.jsonc and uses JSONC (JSON with
// Comments), so hosts can annotate their hardware quirks in place. We
// use github.com/tidwall/jsonc to strip comments before parsing with
// the standard encoding/json library. A missing file is not an error:
// every field has a default matching the common ThinkPad + Fibocom
// setup, and the file only overrides the ones a particular machine
// needs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = "/etc/bringup/config.jsonc"

// Config is the root of the toolkit configuration.
type Config struct {
	// Modem configures the MBIM device and the radio-enable chain.
	Modem Modem `json:"modem"`

	// WWAN configures the NetworkManager connection profile defaults.
	WWAN WWAN `json:"wwan"`
}

// Modem holds device paths and timing for the radio-enable chain.
// Durations are expressed in seconds in the file.
type Modem struct {
	// Device is the MBIM control device node.
	Device string `json:"device"`

	// ATPort is the modem's AT command port, used by the raw-command
	// fallback step. Empty disables that step.
	ATPort string `json:"at_port"`

	// ResetPath is the sysfs trigger written to hard-reset the modem.
	// Empty disables the hardware-reset step.
	ResetPath string `json:"reset_path"`

	// AttemptTimeoutSec bounds each individual mbimcli invocation.
	AttemptTimeoutSec int `json:"attempt_timeout_sec"`

	// ResetWaitSec bounds polling for the device node to reappear
	// after a hardware reset.
	ResetWaitSec int `json:"reset_wait_sec"`

	// StepPauseSec is the fixed pause between chain steps. The chain
	// deliberately has no backoff or jitter; modem firmware just needs
	// a moment to settle between commands.
	StepPauseSec int `json:"step_pause_sec"`
}

// AttemptTimeout returns the per-attempt timeout as a duration.
func (m Modem) AttemptTimeout() time.Duration {
	return time.Duration(m.AttemptTimeoutSec) * time.Second
}

// ResetWait returns the post-reset polling budget as a duration.
func (m Modem) ResetWait() time.Duration {
	return time.Duration(m.ResetWaitSec) * time.Second
}

// StepPause returns the inter-step pause as a duration.
func (m Modem) StepPause() time.Duration {
	return time.Duration(m.StepPauseSec) * time.Second
}

// WWAN holds connection profile defaults, overridable per invocation
// via flags.
type WWAN struct {
	// APN is the default access point name.
	APN string `json:"apn"`

	// ConnectionName is the default nmcli connection id.
	ConnectionName string `json:"connection_name"`

	// RouteMetric is the default IPv4 route metric. WWAN routes get a
	// high metric so wired/Wi-Fi links win when available.
	RouteMetric int `json:"route_metric"`
}

// Default returns the built-in configuration for the common ThinkPad
// WWAN setup (Fibocom L-series exposed as cdc-wdm with an ACM AT port).
func Default() Config {
	return Config{
		Modem: Modem{
			Device:            "/dev/cdc-wdm0",
			ATPort:            "/dev/ttyACM0",
			ResetPath:         "/sys/class/wwan/wwan0/device/reset",
			AttemptTimeoutSec: 15,
			ResetWaitSec:      60,
			StepPauseSec:      2,
		},
		WWAN: WWAN{
			APN:            "spmode.ne.jp",
			ConnectionName: "docomo",
			RouteMetric:    700,
		},
	}
}

// Load reads the configuration file at path, strips JSONC comments,
// and merges it over the defaults. A missing file returns the defaults
// unchanged; a present but malformed file is an error, because silently
// ignoring a typo'd override would have the toolkit poking the wrong
// device node.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// Unmarshaling over the defaults means fields absent from the file
	// keep their default values — the file is a sparse override.
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
