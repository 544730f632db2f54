package model

import (
	"fmt"
	"regexp"
	"strings"
)

// OnOff represents a two-state radio or feature flag as reported by
// system tools (mbimcli, rfkill). A third Unknown state covers output
// that could not be parsed — treating parse failures as "off" would
// make the radio-enable chain run invasive steps against a modem whose
// state we simply failed to read.
type OnOff string

const (
	// On indicates the radio or feature is enabled.
	On OnOff = "on"

	// Off indicates the radio or feature is administratively disabled.
	Off OnOff = "off"

	// Unknown indicates the state could not be determined from tool output.
	Unknown OnOff = "unknown"
)

// String returns the string representation of OnOff.
// This method satisfies the fmt.Stringer interface.
func (s OnOff) String() string {
	return string(s)
}

// ParseOnOff converts a string (as found in mbimcli output, e.g. "on",
// "'off'", "On") to an OnOff value. Surrounding quotes and whitespace
// are stripped because mbimcli wraps state values in single quotes.
func ParseOnOff(s string) OnOff {
	cleaned := strings.ToLower(strings.Trim(strings.TrimSpace(s), "'\""))
	switch cleaned {
	case "on":
		return On
	case "off":
		return Off
	default:
		return Unknown
	}
}

// RadioState is a snapshot of a modem's radio switches as reported by
// `mbimcli --query-radio-state`. The hardware state reflects a physical
// kill switch (or firmware hard block) and cannot be changed in
// software; the software state is the administratively controlled flag
// that the radio-enable chain tries to turn on.
type RadioState struct {
	// Hardware is the hardware radio switch state. When Off, no amount
	// of software retrying can enable the radio.
	Hardware OnOff `json:"hardware"`

	// Software is the modem-reported administrative radio state.
	Software OnOff `json:"software"`
}

// Enabled reports whether the radio is fully on: both the hardware
// switch and the software flag must be enabled.
func (r RadioState) Enabled() bool {
	return r.Hardware == On && r.Software == On
}

// String returns a compact human-readable form, e.g. "hw=on sw=off".
func (r RadioState) String() string {
	return fmt.Sprintf("hw=%s sw=%s", r.Hardware, r.Software)
}

// TargetStatus represents the observed install state of a managed
// configuration target (a NetworkManager profile, a PAM block, a udev
// rule, ...). It is reconstructed from the filesystem on every query;
// nothing is cached between invocations.
type TargetStatus string

const (
	// StatusInstalled indicates the target's managed files/blocks are
	// present and match what this tool would write.
	StatusInstalled TargetStatus = "installed"

	// StatusPartial indicates some but not all of the target's pieces
	// are present, typically after an interrupted install or a manual edit.
	StatusPartial TargetStatus = "partial"

	// StatusAbsent indicates none of the target's managed pieces exist.
	StatusAbsent TargetStatus = "absent"
)

// String returns the string representation of TargetStatus.
func (s TargetStatus) String() string {
	return string(s)
}

// Target describes one managed configuration target for status reporting.
type Target struct {
	// Name identifies the target group (wwan, fingerprint, suspend,
	// display, hyprland).
	Name string `json:"name"`

	// Status is the observed install state.
	Status TargetStatus `json:"status"`

	// Detail is a short human-readable note, e.g. which file is missing.
	Detail string `json:"detail,omitempty"`
}

// conNameRegex validates NetworkManager connection names: printable,
// no path separators or shell metacharacters that would complicate the
// keyfile name derived from it.
var conNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._ -]*$`)

// ValidateConnectionName checks that the given string is usable both as
// an nmcli connection id and as the basename of a keyfile under
// /etc/NetworkManager/system-connections.
func ValidateConnectionName(name string) error {
	if name == "" {
		return fmt.Errorf("connection name must not be empty")
	}
	if !conNameRegex.MatchString(name) {
		return fmt.Errorf("invalid connection name %q: must start with an alphanumeric and contain only alphanumerics, dots, underscores, spaces and hyphens", name)
	}
	return nil
}

// ValidateAPN checks an access point name. APNs are dot-separated
// labels (e.g. "spmode.ne.jp"); NetworkManager passes the value through
// to the modem, so we only reject characters that would corrupt the
// keyfile.
func ValidateAPN(apn string) error {
	if apn == "" {
		return fmt.Errorf("APN must not be empty")
	}
	for _, r := range apn {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' && r != '-' && r != '_' {
			return fmt.Errorf("invalid APN %q: unexpected character %q", apn, r)
		}
	}
	return nil
}

// ExitCode defines the CLI exit code contract. Scripts and provisioning
// systems rely on these values to distinguish usage mistakes from
// operational failures.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitFailure indicates an operational failure: a system tool
	// missing or failing, a file that could not be written, a radio
	// that could not be enabled.
	ExitFailure ExitCode = 1

	// ExitUsage indicates an argument error: unknown flag, missing
	// positional argument, invalid flag value.
	ExitUsage ExitCode = 2
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
