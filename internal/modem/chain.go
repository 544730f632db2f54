package modem

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/mmr-tortoise/bringup/internal/model"
	"github.com/mmr-tortoise/bringup/internal/run"
)

// ModemManagerUnit is the daemon that owns the modem during normal
// operation. The chain stops it for direct-MBIM steps and restarts it
// afterwards.
const ModemManagerUnit = "ModemManager.service"

// resetPollInterval is how often the chain re-checks for the device
// node after a hardware reset.
const resetPollInterval = 500 * time.Millisecond

// ErrHardwareBlocked is returned when the modem reports its hardware
// radio switch off. No software method can clear a physical kill
// switch, so the chain aborts instead of burning through its steps.
var ErrHardwareBlocked = errors.New("hardware radio switch is off")

// openVariants are the mbimcli device-open argument sets tried for each
// direct-access step: plain MBIM first, then the two MBIMEx negotiation
// levels. Firmwares that wedge on one negotiation level often respond
// on another.
var openVariants = [][]string{
	nil,
	{"--device-open-ms-mbimex-v2"},
	{"--device-open-ms-mbimex-v3"},
}

// atVariants are the raw modem commands tried on the AT port. CFUN=1 is
// full function; the remaining forms cover firmwares that want an
// explicit reset argument or only honor the vendor's extended syntax.
var atVariants = []string{
	"AT+CFUN=1",
	"AT+CFUN=1,1",
	"AT+CFUN=6",
}

// UnitController is the slice of the systemd manager the chain needs.
type UnitController interface {
	Stop(ctx context.Context, unit string) error
	Start(ctx context.Context, unit string) error
}

// Chain runs the radio-enable fallback sequence against one modem.
type Chain struct {
	Run   run.Runner
	Units UnitController
	Clock clock.Clock

	// Device is the MBIM control node, e.g. /dev/cdc-wdm0.
	Device string

	// ATPort is the modem's AT command port. Empty skips the raw
	// command step.
	ATPort string

	// ResetPath is the sysfs trigger for a hardware reset. Empty skips
	// the reset step.
	ResetPath string

	// AttemptTimeout bounds each individual mbimcli invocation. Zero
	// runs unbounded.
	AttemptTimeout time.Duration

	// StepPause is the fixed settling pause after each attempt.
	StepPause time.Duration

	// ResetWait bounds polling for the device node after a reset.
	ResetWait time.Duration

	// DirectOnly skips the proxy step and talks to the device directly
	// from the start (the --direct-mbim flag).
	DirectOnly bool

	Verbose func(format string, args ...interface{})

	// WriteFile and Stat are os.WriteFile/os.Stat unless overridden by
	// tests; the reset trigger and AT port are plain file writes.
	WriteFile func(name string, data []byte, perm os.FileMode) error
	Stat      func(name string) (os.FileInfo, error)
}

// Enable runs the fallback chain until the software radio reports on.
// Returns nil at the first success, ErrHardwareBlocked if the physical
// switch is off, or an exhaustion error naming every attempted method.
func (c *Chain) Enable(ctx context.Context) error {
	return c.enable(ctx, true)
}

func (c *Chain) enable(ctx context.Context, allowReset bool) error {
	proxy := !c.DirectOnly

	// Fast path: the radio may already be on, or hardware-blocked, in
	// which case no attempt is worth making. A failed initial query is
	// non-fatal — the chain itself re-queries after every attempt.
	if state, err := c.QueryState(ctx, proxy); err == nil {
		if state.Hardware == model.Off {
			return ErrHardwareBlocked
		}
		if state.Software == model.On {
			c.logf("software radio already on")
			return nil
		}
	} else {
		c.logf("initial state query failed (continuing): %v", err)
	}

	var attempted []string

	// Step 1: standard radio-on through the proxy, daemon untouched.
	if proxy {
		attempted = append(attempted, "proxy radio-on")
		done, err := c.attempt(ctx, proxy, "proxy radio-on", func() error {
			return c.setRadio(ctx, true, true, nil)
		})
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	// Steps 2-5 need exclusive access to the control channel, so the
	// owning daemon is stopped and restarted when we are finished,
	// success or not.
	if c.Units != nil {
		if err := c.Units.Stop(ctx, ModemManagerUnit); err != nil {
			c.logf("warning: could not stop %s (continuing): %v", ModemManagerUnit, err)
		} else {
			defer func() {
				if err := c.Units.Start(ctx, ModemManagerUnit); err != nil {
					c.logf("warning: could not restart %s: %v", ModemManagerUnit, err)
				}
			}()
		}
	}

	// Step 2: direct radio-on across the open variants.
	for _, open := range openVariants {
		name := "direct radio-on" + variantSuffix(open)
		attempted = append(attempted, name)
		done, err := c.attempt(ctx, false, name, func() error {
			return c.setRadio(ctx, true, false, open)
		})
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	// Step 3: toggle off then on. Some firmwares only latch the on
	// transition after observing an explicit off.
	for _, open := range openVariants {
		name := "radio toggle" + variantSuffix(open)
		attempted = append(attempted, name)
		done, err := c.attempt(ctx, false, name, func() error {
			if err := c.setRadio(ctx, false, false, open); err != nil {
				return err
			}
			c.pause(ctx)
			return c.setRadio(ctx, true, false, open)
		})
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	// Step 4: vendor-specific radio-on.
	for _, open := range openVariants {
		name := "quectel radio-on" + variantSuffix(open)
		attempted = append(attempted, name)
		done, err := c.attempt(ctx, false, name, func() error {
			args := append(append([]string{"-d", c.Device}, open...), "--quectel-set-radio-state=on")
			_, err := c.runWithTimeout(ctx, "mbimcli", args...)
			return err
		})
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}

	// Step 5: raw AT commands on the vendor AT port.
	if c.ATPort != "" {
		for _, at := range atVariants {
			name := fmt.Sprintf("at %q", at)
			attempted = append(attempted, name)
			done, err := c.attempt(ctx, false, name, func() error {
				return c.writeFile(c.ATPort, []byte(at+"\r"), 0200)
			})
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}

	// Step 6: hardware reset, then one rerun of the whole chain.
	if allowReset && c.ResetPath != "" {
		attempted = append(attempted, "hardware reset")
		c.logf("attempting hardware reset via %s", c.ResetPath)
		if err := c.writeFile(c.ResetPath, []byte("1\n"), 0200); err != nil {
			c.logf("warning: reset trigger failed: %v", err)
		} else if err := c.waitForDevice(ctx); err != nil {
			c.logf("warning: device did not reappear after reset: %v", err)
		} else {
			c.pause(ctx)
			return c.enable(ctx, false)
		}
	}

	return model.NewCLIError(model.ExitFailure, fmt.Sprintf(
		"could not enable WWAN radio on %s; attempted: %s",
		c.Device, strings.Join(attempted, ", ")))
}

// QueryState queries and parses the modem's radio state. When proxy is
// true the query goes through mbim-proxy so it can coexist with
// ModemManager.
func (c *Chain) QueryState(ctx context.Context, proxy bool) (model.RadioState, error) {
	args := []string{"-d", c.Device}
	if proxy {
		args = append(args, "--device-open-proxy")
	}
	args = append(args, "--query-radio-state")

	res, err := c.runWithTimeout(ctx, "mbimcli", args...)
	if err != nil {
		return model.RadioState{Hardware: model.Unknown, Software: model.Unknown}, err
	}
	return ParseRadioState(res.Stdout)
}

// attempt runs one method of the chain: execute it, pause, re-query the
// state. The first return is true when the software radio came on; a
// non-nil error is returned only for the hardware-blocked abort, since
// ordinary failures fall through to the next method.
func (c *Chain) attempt(ctx context.Context, proxy bool, name string, fn func() error) (bool, error) {
	c.logf("attempting: %s", name)
	if err := fn(); err != nil {
		c.logf("%s failed (falling through): %v", name, err)
	}
	c.pause(ctx)

	state, err := c.QueryState(ctx, proxy)
	if err != nil {
		c.logf("state query after %s failed (falling through): %v", name, err)
		return false, nil
	}
	if state.Hardware == model.Off {
		return false, ErrHardwareBlocked
	}
	if state.Software == model.On {
		c.logf("%s succeeded: %s", name, state)
		return true, nil
	}
	return false, nil
}

// setRadio issues the standard MBIM radio-state command.
func (c *Chain) setRadio(ctx context.Context, on bool, proxy bool, open []string) error {
	args := []string{"-d", c.Device}
	if proxy {
		args = append(args, "--device-open-proxy")
	}
	args = append(args, open...)
	if on {
		args = append(args, "--set-radio-state=on")
	} else {
		args = append(args, "--set-radio-state=off")
	}
	_, err := c.runWithTimeout(ctx, "mbimcli", args...)
	return err
}

// waitForDevice polls for the control node after a hardware reset.
func (c *Chain) waitForDevice(ctx context.Context) error {
	wait := c.ResetWait
	if wait <= 0 {
		wait = 60 * time.Second
	}
	attempts := int(wait/resetPollInterval) + 1

	return retry.Call(retry.CallArgs{
		Func: func() error {
			if _, err := c.stat(c.Device); err != nil {
				return fmt.Errorf("device %s not present: %w", c.Device, err)
			}
			return nil
		},
		NotifyFunc: func(lastError error, attempt int) {
			if attempt == 1 || attempt%20 == 0 {
				c.logf("waiting for %s (attempt %d)", c.Device, attempt)
			}
		},
		Attempts: attempts,
		Delay:    resetPollInterval,
		Clock:    c.clock(),
		Stop:     ctx.Done(),
	})
}

// runWithTimeout applies the per-attempt timeout to one command.
func (c *Chain) runWithTimeout(ctx context.Context, name string, args ...string) (run.Result, error) {
	attemptCtx, cancel := run.WithTimeout(ctx, c.AttemptTimeout)
	defer cancel()
	return c.Run.Run(attemptCtx, name, args...)
}

// pause sleeps for the fixed inter-step settling time.
func (c *Chain) pause(ctx context.Context) {
	if c.StepPause <= 0 {
		return
	}
	select {
	case <-c.clock().After(c.StepPause):
	case <-ctx.Done():
	}
}

func (c *Chain) clock() clock.Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return clock.WallClock
}

func (c *Chain) writeFile(name string, data []byte, perm os.FileMode) error {
	if c.WriteFile != nil {
		return c.WriteFile(name, data, perm)
	}
	return os.WriteFile(name, data, perm)
}

func (c *Chain) stat(name string) (os.FileInfo, error) {
	if c.Stat != nil {
		return c.Stat(name)
	}
	return os.Stat(name)
}

func (c *Chain) logf(format string, args ...interface{}) {
	if c.Verbose != nil {
		c.Verbose(format, args...)
	}
}

// variantSuffix renders an open-variant for attempt names.
func variantSuffix(open []string) string {
	if len(open) == 0 {
		return ""
	}
	return " (" + strings.Join(open, " ") + ")"
}
