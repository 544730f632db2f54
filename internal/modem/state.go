package modem

import (
	"fmt"
	"strings"

	"github.com/mmr-tortoise/bringup/internal/model"
)

// ParseRadioState extracts the radio state from `mbimcli
// --query-radio-state` output. The relevant lines look like:
//
//	[/dev/cdc-wdm0] Radio state retrieved:
//	         Hardware radio state: 'on'
//	         Software radio state: 'off'
//
// Indentation and header text vary across libmbim versions, so we match
// on the two field labels anywhere in the output rather than on the
// overall shape.
func ParseRadioState(output string) (model.RadioState, error) {
	state := model.RadioState{Hardware: model.Unknown, Software: model.Unknown}

	for _, line := range strings.Split(output, "\n") {
		label, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "hardware radio state":
			state.Hardware = model.ParseOnOff(value)
		case "software radio state":
			state.Software = model.ParseOnOff(value)
		}
	}

	if state.Hardware == model.Unknown && state.Software == model.Unknown {
		return state, fmt.Errorf("no radio state fields in mbimcli output")
	}
	return state, nil
}
