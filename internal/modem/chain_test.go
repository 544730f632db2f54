package modem

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/bringup/internal/run"
)

const (
	device  = "/dev/cdc-wdm0"
	proxyQ  = "mbimcli -d /dev/cdc-wdm0 --device-open-proxy --query-radio-state"
	directQ = "mbimcli -d /dev/cdc-wdm0 --query-radio-state"
)

// stateOutput fabricates mbimcli radio-state output.
func stateOutput(hw, sw string) string {
	return "[/dev/cdc-wdm0] Radio state retrieved:\n" +
		"\t     Hardware radio state: '" + hw + "'\n" +
		"\t     Software radio state: '" + sw + "'\n"
}

// fakeUnits records unit lifecycle operations.
type fakeUnits struct {
	ops []string
}

func (f *fakeUnits) Stop(_ context.Context, unit string) error {
	f.ops = append(f.ops, "stop "+unit)
	return nil
}

func (f *fakeUnits) Start(_ context.Context, unit string) error {
	f.ops = append(f.ops, "start "+unit)
	return nil
}

// newTestChain builds a Chain wired to fakes with pauses disabled.
func newTestChain(f *run.Fake, units *fakeUnits) *Chain {
	c := &Chain{
		Run:    f,
		Device: device,
		Stat: func(string) (os.FileInfo, error) {
			return nil, nil
		},
		WriteFile: func(string, []byte, os.FileMode) error {
			return nil
		},
	}
	if units != nil {
		c.Units = units
	}
	return c
}

// TestEnable_AlreadyOn verifies the fast path: a radio that reports on
// triggers no attempts at all.
func TestEnable_AlreadyOn(t *testing.T) {
	f := run.NewFake()
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "on")})
	units := &fakeUnits{}
	c := newTestChain(f, units)

	require.NoError(t, c.Enable(context.Background()))
	assert.Len(t, f.Calls, 1, "only the initial state query should run")
	assert.Empty(t, units.ops, "ModemManager must not be touched")
}

// TestEnable_HardwareBlocked verifies the short-circuit on a physical
// kill switch: no software method can help, so nothing is attempted.
func TestEnable_HardwareBlocked(t *testing.T) {
	f := run.NewFake()
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("off", "off")})
	c := newTestChain(f, &fakeUnits{})

	err := c.Enable(context.Background())
	require.ErrorIs(t, err, ErrHardwareBlocked)
	assert.Len(t, f.Calls, 1)
}

// TestEnable_ProxySucceeds verifies step 1 winning: the daemon is never
// stopped and no direct-access command runs.
func TestEnable_ProxySucceeds(t *testing.T) {
	f := run.NewFake()
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "off")}) // initial
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "on")})  // after proxy radio-on
	units := &fakeUnits{}
	c := newTestChain(f, units)

	require.NoError(t, c.Enable(context.Background()))

	lines := f.CommandLines()
	assert.Contains(t, lines, "mbimcli -d /dev/cdc-wdm0 --device-open-proxy --set-radio-state=on")
	assert.Empty(t, units.ops, "proxy success must not stop ModemManager")
	for _, line := range lines {
		assert.NotContains(t, line, "mbimex", "no direct variant should run after proxy success")
	}
}

// TestEnable_StopsAtFirstSuccess verifies the core ordering property:
// when the radio comes on at the second direct variant, the third
// variant, the toggle, the vendor command and the AT port are never
// touched, and ModemManager is stopped and restarted around the direct
// access.
func TestEnable_StopsAtFirstSuccess(t *testing.T) {
	f := run.NewFake()
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "off")})  // initial
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "off")})  // after proxy attempt
	f.Stub(directQ, run.FakeResponse{Stdout: stateOutput("on", "off")}) // after direct default
	f.Stub(directQ, run.FakeResponse{Stdout: stateOutput("on", "on")})  // after direct mbimex-v2

	units := &fakeUnits{}
	atWrites := 0
	c := newTestChain(f, units)
	c.ATPort = "/dev/ttyACM0"
	c.WriteFile = func(string, []byte, os.FileMode) error {
		atWrites++
		return nil
	}

	require.NoError(t, c.Enable(context.Background()))

	joined := strings.Join(f.CommandLines(), "\n")
	assert.Contains(t, joined, "--device-open-ms-mbimex-v2 --set-radio-state=on")
	assert.NotContains(t, joined, "mbimex-v3", "later variants must not run after success")
	assert.NotContains(t, joined, "--set-radio-state=off", "toggle step must not run")
	assert.NotContains(t, joined, "quectel", "vendor step must not run")
	assert.Zero(t, atWrites, "AT port must not be touched")

	assert.Equal(t, []string{"stop " + ModemManagerUnit, "start " + ModemManagerUnit}, units.ops,
		"daemon must be stopped for direct access and restarted afterwards")
}

// TestEnable_FailuresFallThrough verifies that command errors are
// non-fatal: a failing proxy step falls through to direct access, which
// succeeds.
func TestEnable_FailuresFallThrough(t *testing.T) {
	f := run.NewFake()
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "off")})
	f.Stub("mbimcli -d /dev/cdc-wdm0 --device-open-proxy --set-radio-state=on",
		run.FakeResponse{Stderr: "couldn't open proxy", Err: errors.New("exit 1")})
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "off")})
	f.Stub(directQ, run.FakeResponse{Stdout: stateOutput("on", "on")})
	c := newTestChain(f, &fakeUnits{})

	require.NoError(t, c.Enable(context.Background()))
	assert.Contains(t, strings.Join(f.CommandLines(), "\n"), "mbimcli -d /dev/cdc-wdm0 --set-radio-state=on")
}

// TestEnable_Exhaustion verifies that when every method fails the error
// names the attempted methods, in order.
func TestEnable_Exhaustion(t *testing.T) {
	f := run.NewFake()
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "off")})
	f.Stub(directQ, run.FakeResponse{Stdout: stateOutput("on", "off")})
	c := newTestChain(f, &fakeUnits{})
	c.ATPort = "/dev/ttyACM0"
	// No ResetPath: the chain ends after the AT step.

	err := c.Enable(context.Background())
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "could not enable WWAN radio")
	assert.Contains(t, msg, "proxy radio-on")
	assert.Contains(t, msg, "direct radio-on")
	assert.Contains(t, msg, "radio toggle")
	assert.Contains(t, msg, "quectel radio-on")
	assert.Contains(t, msg, `at "AT+CFUN=1"`)

	// Ordering: proxy before direct before toggle before vendor.
	assert.Less(t, strings.Index(msg, "proxy radio-on"), strings.Index(msg, "direct radio-on"))
	assert.Less(t, strings.Index(msg, "direct radio-on"), strings.Index(msg, "radio toggle"))
	assert.Less(t, strings.Index(msg, "radio toggle"), strings.Index(msg, "quectel radio-on"))
}

// TestEnable_ResetThenRecovers verifies the final step: a hardware
// reset is triggered, the device node is awaited, and the chain reruns
// once — succeeding when the rerun's initial query reports on.
func TestEnable_ResetThenRecovers(t *testing.T) {
	f := run.NewFake()
	// Pre-reset queries: initial + proxy attempt on the proxy path,
	// then 9 direct attempts (3 variants x direct/toggle/vendor).
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "off")})
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "off")})
	for i := 0; i < 9; i++ {
		f.Stub(directQ, run.FakeResponse{Stdout: stateOutput("on", "off")})
	}
	// Rerun after reset: the modem comes back with its radio on.
	f.Stub(proxyQ, run.FakeResponse{Stdout: stateOutput("on", "on")})

	var resetWrites []string
	c := newTestChain(f, &fakeUnits{})
	c.ResetPath = "/sys/class/wwan/wwan0/device/reset"
	c.WriteFile = func(name string, data []byte, _ os.FileMode) error {
		resetWrites = append(resetWrites, name+":"+strings.TrimSpace(string(data)))
		return nil
	}

	require.NoError(t, c.Enable(context.Background()))
	assert.Contains(t, resetWrites, "/sys/class/wwan/wwan0/device/reset:1")
}

// TestEnable_DirectOnly verifies --direct-mbim: no proxy commands at all.
func TestEnable_DirectOnly(t *testing.T) {
	f := run.NewFake()
	f.Stub(directQ, run.FakeResponse{Stdout: stateOutput("on", "off")})
	f.Stub(directQ, run.FakeResponse{Stdout: stateOutput("on", "on")})
	c := newTestChain(f, &fakeUnits{})
	c.DirectOnly = true

	require.NoError(t, c.Enable(context.Background()))
	for _, line := range f.CommandLines() {
		assert.NotContains(t, line, "--device-open-proxy")
	}
}
