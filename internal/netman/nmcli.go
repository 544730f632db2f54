package netman

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	"github.com/mmr-tortoise/bringup/internal/model"
	"github.com/mmr-tortoise/bringup/internal/run"
)

// activePollInterval is how often WaitActive re-queries nmcli. Fixed
// interval, no backoff: activation either completes within the wait
// budget or the command reports failure.
const activePollInterval = 2 * time.Second

// Nmcli drives the NetworkManager CLI for operations where the keyfile
// alone is not enough: profile reloads, activation, and teardown.
type Nmcli struct {
	Run     run.Runner
	Clock   clock.Clock
	Verbose func(format string, args ...interface{})
}

// Reload tells NetworkManager to re-read connection profiles from disk.
// Required after writing or removing a keyfile.
func (n *Nmcli) Reload(ctx context.Context) error {
	if _, err := n.Run.Run(ctx, "nmcli", "connection", "reload"); err != nil {
		return model.WrapCLIError(model.ExitFailure, "nmcli connection reload failed", err)
	}
	return nil
}

// Up activates the named connection. nmcli blocks until activation
// completes or its own internal timeout fires.
func (n *Nmcli) Up(ctx context.Context, name string) error {
	if _, err := n.Run.Run(ctx, "nmcli", "connection", "up", "id", name); err != nil {
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to activate connection %q", name), err)
	}
	return nil
}

// Down deactivates the named connection. Failure is returned but
// callers typically treat it as a warning: an already-down connection
// is the desired end state.
func (n *Nmcli) Down(ctx context.Context, name string) error {
	if _, err := n.Run.Run(ctx, "nmcli", "connection", "down", "id", name); err != nil {
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to deactivate connection %q", name), err)
	}
	return nil
}

// Delete removes the named connection from NetworkManager. Used by
// uninstall for profiles created by older versions of this toolkit via
// nmcli rather than a keyfile.
func (n *Nmcli) Delete(ctx context.Context, name string) error {
	if _, err := n.Run.Run(ctx, "nmcli", "connection", "delete", "id", name); err != nil {
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to delete connection %q", name), err)
	}
	return nil
}

// IsActive reports whether the named connection is currently active.
func (n *Nmcli) IsActive(ctx context.Context, name string) (bool, error) {
	res, err := n.Run.Run(ctx, "nmcli", "-t", "-f", "NAME", "connection", "show", "--active")
	if err != nil {
		return false, model.WrapCLIError(model.ExitFailure, "failed to list active connections", err)
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		if strings.TrimSpace(line) == name {
			return true, nil
		}
	}
	return false, nil
}

// WaitActive polls until the connection is active or the wait budget is
// spent. A zero wait checks exactly once.
func (n *Nmcli) WaitActive(ctx context.Context, name string, wait time.Duration) error {
	attempts := int(wait/activePollInterval) + 1

	clk := n.Clock
	if clk == nil {
		clk = clock.WallClock
	}

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			active, err := n.IsActive(ctx, name)
			if err != nil {
				return err
			}
			if !active {
				return fmt.Errorf("connection %q not active yet", name)
			}
			return nil
		},
		NotifyFunc: func(lastError error, attempt int) {
			n.logf("waiting for %s (attempt %d): %v", name, attempt, lastError)
		},
		Attempts: attempts,
		Delay:    activePollInterval,
		Clock:    clk,
		Stop:     ctx.Done(),
	})
	if err != nil {
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("connection %q did not become active within %s", name, wait),
			retry.LastError(err))
	}
	return nil
}

func (n *Nmcli) logf(format string, args ...interface{}) {
	if n.Verbose != nil {
		n.Verbose(format, args...)
	}
}
