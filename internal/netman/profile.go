// Package netman manages NetworkManager state for the WWAN bring-up:
// generating keyfile connection profiles under
// /etc/NetworkManager/system-connections and driving nmcli for
// reload/up/down/delete and activation waits.
//
// Profiles are written as keyfiles directly instead of via
// `nmcli connection add` because a generated file is diffable: install
// can compare the rendered profile against what is on disk and skip the
// write (and the reload) when nothing changed, which is what makes the
// install action idempotent at the byte level.
package netman

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"

	"github.com/mmr-tortoise/bringup/internal/model"
)

// SystemConnectionsDir is where NetworkManager looks for keyfiles.
const SystemConnectionsDir = "/etc/NetworkManager/system-connections"

func init() {
	// NetworkManager parses keyfiles with GKeyFile, which wants
	// "key=value" without the aligned padding ini.v1 produces by default.
	ini.PrettyFormat = false
}

// Profile describes a GSM connection profile.
type Profile struct {
	// Name is the connection id and the keyfile basename.
	Name string

	// APN is the carrier access point name.
	APN string

	// Username and Password are optional; most Japanese MVNO profiles
	// need them, docomo spmode does not.
	Username string
	Password string

	// Autoconnect makes NetworkManager bring the connection up whenever
	// the modem is available.
	Autoconnect bool

	// RouteMetric is the IPv4/IPv6 route metric. WWAN gets a high
	// metric so ethernet and Wi-Fi routes win when present.
	RouteMetric int
}

// Validate checks the profile fields.
func (p Profile) Validate() error {
	if err := model.ValidateConnectionName(p.Name); err != nil {
		return err
	}
	return model.ValidateAPN(p.APN)
}

// UUID returns the profile's connection UUID. It is derived from the
// connection name so that repeated installs render byte-identical
// keyfiles; a random UUID would defeat the diff-based skip.
func (p Profile) UUID() string {
	sum := sha256.Sum256([]byte("bringup:nm:" + p.Name))
	// Stamp RFC 4122 version (5, name-based) and variant bits so
	// NetworkManager accepts the value as a well-formed UUID.
	sum[6] = (sum[6] & 0x0f) | 0x50
	sum[8] = (sum[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", sum[0:4], sum[4:6], sum[6:8], sum[8:10], sum[10:16])
}

// Keyfile renders the profile in NetworkManager keyfile syntax.
func (p Profile) Keyfile() ([]byte, error) {
	f := ini.Empty()

	conn, err := f.NewSection("connection")
	if err != nil {
		return nil, err
	}
	conn.NewKey("id", p.Name)
	conn.NewKey("uuid", p.UUID())
	conn.NewKey("type", "gsm")
	if p.Autoconnect {
		conn.NewKey("autoconnect", "true")
	} else {
		conn.NewKey("autoconnect", "false")
	}

	gsm, err := f.NewSection("gsm")
	if err != nil {
		return nil, err
	}
	gsm.NewKey("apn", p.APN)
	if p.Username != "" {
		gsm.NewKey("username", p.Username)
	}
	if p.Password != "" {
		gsm.NewKey("password", p.Password)
		// password-flags=0 stores the secret in the keyfile itself;
		// without it NetworkManager would prompt an agent that a
		// headless bring-up does not have.
		gsm.NewKey("password-flags", "0")
	}

	ipv4, err := f.NewSection("ipv4")
	if err != nil {
		return nil, err
	}
	ipv4.NewKey("method", "auto")
	ipv4.NewKey("route-metric", fmt.Sprintf("%d", p.RouteMetric))

	ipv6, err := f.NewSection("ipv6")
	if err != nil {
		return nil, err
	}
	ipv6.NewKey("method", "auto")
	ipv6.NewKey("route-metric", fmt.Sprintf("%d", p.RouteMetric))

	var buf []byte
	w := &appendWriter{buf: &buf}
	if _, err := f.WriteTo(w); err != nil {
		return nil, fmt.Errorf("failed to render keyfile: %w", err)
	}
	return buf, nil
}

// appendWriter adapts a byte slice to io.Writer for ini.File.WriteTo.
type appendWriter struct {
	buf *[]byte
}

func (w *appendWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

// KeyfilePath returns the profile's path under dir.
func (p Profile) KeyfilePath(dir string) string {
	return filepath.Join(dir, p.Name+".nmconnection")
}

// Writer persists profiles to the keyfile directory.
type Writer struct {
	// Dir is the target directory, SystemConnectionsDir in production.
	Dir string

	DryRun  bool
	Verbose func(format string, args ...interface{})
}

// Write renders the profile and writes it if the on-disk content
// differs. Returns true when the file changed (or would change under
// dry-run). Keyfiles must be 0600 or NetworkManager refuses to load them.
func (w *Writer) Write(p Profile) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, model.WrapCLIError(model.ExitUsage, "invalid connection profile", err)
	}

	rendered, err := p.Keyfile()
	if err != nil {
		return false, model.WrapCLIError(model.ExitFailure, "failed to render connection profile", err)
	}

	path := p.KeyfilePath(w.Dir)
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == string(rendered) {
		w.logf("profile %s already current", path)
		return false, nil
	}

	if w.DryRun {
		w.logf("would write %s", path)
		return true, nil
	}
	if err := os.WriteFile(path, rendered, 0600); err != nil {
		return false, model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to write connection profile %s", path), err)
	}
	w.logf("wrote %s", path)
	return true, nil
}

// Remove deletes the profile's keyfile. A missing file reports no
// change, keeping uninstall idempotent.
func (w *Writer) Remove(name string) (bool, error) {
	path := filepath.Join(w.Dir, name+".nmconnection")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to stat %s", path), err)
	}
	if w.DryRun {
		w.logf("would remove %s", path)
		return true, nil
	}
	if err := os.Remove(path); err != nil {
		return false, model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to remove %s", path), err)
	}
	w.logf("removed %s", path)
	return true, nil
}

// Exists reports whether the profile's keyfile is present.
func (w *Writer) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(w.Dir, name+".nmconnection"))
	return err == nil
}

func (w *Writer) logf(format string, args ...interface{}) {
	if w.Verbose != nil {
		w.Verbose(format, args...)
	}
}
