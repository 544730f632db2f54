package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRender_SleepHook verifies the sleep hook renders both with and
// without the rfkill toggling enabled.
func TestRender_SleepHook(t *testing.T) {
	out, err := Render("wwan-sleep.sh.tmpl", map[string]any{"UseRfkill": true})
	require.NoError(t, err)
	assert.Contains(t, out, "rfkill block wwan")
	assert.Contains(t, out, "rfkill unblock wwan")
	assert.Contains(t, out, "systemctl stop ModemManager.service")

	out, err = Render("wwan-sleep.sh.tmpl", map[string]any{"UseRfkill": false})
	require.NoError(t, err)
	assert.NotContains(t, out, "rfkill")
	assert.Contains(t, out, "systemctl start ModemManager.service")
}

// TestRender_UdevRule verifies the group substitution in the i2c rule.
func TestRender_UdevRule(t *testing.T) {
	out, err := Render("i2c-udev.rules.tmpl", map[string]any{"Group": "i2c"})
	require.NoError(t, err)
	assert.Contains(t, out, `GROUP="i2c"`)
	assert.Contains(t, out, `KERNEL=="i2c-[0-9]*"`)
}

// TestRender_PAMLine verifies the fprintd PAM line substitutions.
func TestRender_PAMLine(t *testing.T) {
	out, err := Render("pam-fprintd.tmpl", map[string]any{"MaxTries": 3, "Timeout": 10})
	require.NoError(t, err)
	assert.Contains(t, out, "pam_fprintd.so max-tries=3 timeout=10")
}

// TestRender_UnknownTemplate verifies a clear error for a bad name.
func TestRender_UnknownTemplate(t *testing.T) {
	_, err := Render("does-not-exist.tmpl", nil)
	require.Error(t, err)
}

// TestDefaultHyprBindings verifies the embedded default binding set is
// present and non-trivial.
func TestDefaultHyprBindings(t *testing.T) {
	data, err := DefaultHyprBindings()
	require.NoError(t, err)
	assert.Contains(t, string(data), "mainMod")
	assert.Contains(t, string(data), "killactive")
}
