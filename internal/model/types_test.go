package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseOnOff verifies that mbimcli-style state strings are parsed
// correctly, including the single-quoted form the tool actually prints.
func TestParseOnOff(t *testing.T) {
	assert.Equal(t, On, ParseOnOff("on"))
	assert.Equal(t, On, ParseOnOff("'on'"))
	assert.Equal(t, On, ParseOnOff("  On "))
	assert.Equal(t, Off, ParseOnOff("'off'"))
	assert.Equal(t, Off, ParseOnOff("OFF"))
}

// TestParseOnOff_Unknown verifies that unparseable input maps to Unknown
// rather than Off. The radio chain must not mistake a garbled query for
// a disabled radio.
func TestParseOnOff_Unknown(t *testing.T) {
	assert.Equal(t, Unknown, ParseOnOff(""))
	assert.Equal(t, Unknown, ParseOnOff("enabled"))
	assert.Equal(t, Unknown, ParseOnOff("'?'"))
}

// TestRadioState_Enabled verifies that both switches must be on for the
// radio to count as enabled.
func TestRadioState_Enabled(t *testing.T) {
	assert.True(t, RadioState{Hardware: On, Software: On}.Enabled())
	assert.False(t, RadioState{Hardware: On, Software: Off}.Enabled())
	assert.False(t, RadioState{Hardware: Off, Software: On}.Enabled())
	assert.False(t, RadioState{Hardware: On, Software: Unknown}.Enabled())
}

// TestValidateConnectionName accepts typical nmcli connection ids and
// rejects names that would produce hostile keyfile paths.
func TestValidateConnectionName(t *testing.T) {
	assert.NoError(t, ValidateConnectionName("docomo"))
	assert.NoError(t, ValidateConnectionName("docomo spmode"))
	assert.NoError(t, ValidateConnectionName("wwan-0.primary"))

	assert.Error(t, ValidateConnectionName(""))
	assert.Error(t, ValidateConnectionName("../etc/passwd"))
	assert.Error(t, ValidateConnectionName("-leading-dash"))
	assert.Error(t, ValidateConnectionName("semi;colon"))
}

// TestValidateAPN accepts dot-separated carrier APNs and rejects
// characters that would corrupt the generated keyfile.
func TestValidateAPN(t *testing.T) {
	assert.NoError(t, ValidateAPN("spmode.ne.jp"))
	assert.NoError(t, ValidateAPN("mopera.net"))
	assert.NoError(t, ValidateAPN("lte-d.ocn.ne.jp"))

	assert.Error(t, ValidateAPN(""))
	assert.Error(t, ValidateAPN("bad apn"))
	assert.Error(t, ValidateAPN("apn\nkey=value"))
}

// TestCLIError_Unwrap verifies that errors.Is sees through CLIError so
// callers can match on sentinel errors from lower layers.
func TestCLIError_Unwrap(t *testing.T) {
	sentinel := errors.New("boom")
	err := WrapCLIError(ExitFailure, "operation failed", sentinel)

	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, "operation failed: boom", err.Error())
}

// TestCLIError_NoUnderlying verifies the message-only form.
func TestCLIError_NoUnderlying(t *testing.T) {
	err := NewCLIError(ExitUsage, "invalid flag")
	assert.Equal(t, "invalid flag", err.Error())
	assert.Equal(t, ExitUsage, err.Code)
	assert.Nil(t, err.Unwrap())
}
