package modem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/bringup/internal/model"
)

// TestParseRadioState parses representative mbimcli output.
func TestParseRadioState(t *testing.T) {
	output := "[/dev/cdc-wdm0] Radio state retrieved:\n" +
		"\t     Hardware radio state: 'on'\n" +
		"\t     Software radio state: 'off'\n"

	state, err := ParseRadioState(output)
	require.NoError(t, err)
	assert.Equal(t, model.On, state.Hardware)
	assert.Equal(t, model.Off, state.Software)
}

// TestParseRadioState_CaseAndSpacing tolerates label case and
// indentation differences across libmbim versions.
func TestParseRadioState_CaseAndSpacing(t *testing.T) {
	output := "HARDWARE RADIO STATE: on\n  software radio state:   'ON'  \n"

	state, err := ParseRadioState(output)
	require.NoError(t, err)
	assert.Equal(t, model.On, state.Hardware)
	assert.Equal(t, model.On, state.Software)
	assert.True(t, state.Enabled())
}

// TestParseRadioState_MissingFields rejects output with no state
// fields at all — a garbled query must not read as "off".
func TestParseRadioState_MissingFields(t *testing.T) {
	_, err := ParseRadioState("error: couldn't open device")
	require.Error(t, err)
}

// TestParseRadioState_PartialFields keeps Unknown for an absent field
// while parsing the present one.
func TestParseRadioState_PartialFields(t *testing.T) {
	state, err := ParseRadioState("Software radio state: 'off'\n")
	require.NoError(t, err)
	assert.Equal(t, model.Unknown, state.Hardware)
	assert.Equal(t, model.Off, state.Software)
}
