// Package systemd controls systemd units over D-Bus via
// github.com/coreos/go-systemd.
//
// The toolkit needs systemd in two places: stopping and restarting
// ModemManager around direct-MBIM access (the daemon and mbimcli cannot
// share the control channel without the proxy), and enabling the units
// the installers drop in. Talking to PID 1 over D-Bus instead of
// shelling out to systemctl gives us real completion signals — a start
// job that ends in "failed" is distinguishable from one that merely got
// queued.
//
// The D-Bus connection is behind the DBusAPI interface so tests can
// substitute a stub; only New touches the real system bus.
package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/mmr-tortoise/bringup/internal/model"
)

// DBusAPI is the slice of go-systemd's dbus.Conn that this package
// uses. *dbus.Conn satisfies it.
type DBusAPI interface {
	StartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	EnableUnitFilesContext(ctx context.Context, files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]dbus.DisableUnitFileChange, error)
	ReloadContext(ctx context.Context) error
	GetUnitPropertiesContext(ctx context.Context, unit string) (map[string]interface{}, error)
	Close()
}

// Manager provides unit lifecycle operations for the installers and the
// radio chain.
type Manager struct {
	// newConn opens the D-Bus connection. Swapped out in tests.
	newConn func(ctx context.Context) (DBusAPI, error)

	Verbose func(format string, args ...interface{})
}

// New returns a Manager talking to the system bus.
func New() *Manager {
	return &Manager{
		newConn: func(ctx context.Context) (DBusAPI, error) {
			return dbus.NewWithContext(ctx)
		},
	}
}

// NewWithAPI returns a Manager using the given connection factory.
// Intended for tests.
func NewWithAPI(factory func(ctx context.Context) (DBusAPI, error)) *Manager {
	return &Manager{newConn: factory}
}

// withConn opens a connection, runs fn, and closes it. Connections are
// short-lived: each CLI invocation performs a handful of unit
// operations and exits.
func (m *Manager) withConn(ctx context.Context, fn func(DBusAPI) error) error {
	conn, err := m.newConn(ctx)
	if err != nil {
		return model.WrapCLIError(model.ExitFailure, "failed to connect to systemd over D-Bus", err)
	}
	defer conn.Close()
	return fn(conn)
}

// job runs one of the start/stop/restart calls and waits for its
// completion signal. systemd reports the job result as a string on the
// channel; anything but "done" is a failure.
func (m *Manager) job(ctx context.Context, verb, unit string,
	call func(context.Context, string, string, chan<- string) (int, error)) error {

	ch := make(chan string, 1)
	if _, err := call(ctx, unit, "replace", ch); err != nil {
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to %s %s", verb, unit), err)
	}

	select {
	case result := <-ch:
		if result != "done" {
			return model.NewCLIError(model.ExitFailure,
				fmt.Sprintf("%s of %s finished with result %q", verb, unit, result))
		}
		m.logf("%s %s: done", verb, unit)
		return nil
	case <-ctx.Done():
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("timed out waiting for %s of %s", verb, unit), ctx.Err())
	}
}

// Start starts the unit and waits for the job to complete.
func (m *Manager) Start(ctx context.Context, unit string) error {
	return m.withConn(ctx, func(conn DBusAPI) error {
		return m.job(ctx, "start", unit, conn.StartUnitContext)
	})
}

// Stop stops the unit and waits for the job to complete. Stopping an
// inactive unit completes with "done", so callers need no pre-check.
func (m *Manager) Stop(ctx context.Context, unit string) error {
	return m.withConn(ctx, func(conn DBusAPI) error {
		return m.job(ctx, "stop", unit, conn.StopUnitContext)
	})
}

// Restart restarts the unit and waits for the job to complete.
func (m *Manager) Restart(ctx context.Context, unit string) error {
	return m.withConn(ctx, func(conn DBusAPI) error {
		return m.job(ctx, "restart", unit, conn.RestartUnitContext)
	})
}

// EnableNow enables the unit file persistently and starts it, the
// equivalent of `systemctl enable --now`.
func (m *Manager) EnableNow(ctx context.Context, unit string) error {
	return m.withConn(ctx, func(conn DBusAPI) error {
		if _, _, err := conn.EnableUnitFilesContext(ctx, []string{unit}, false, true); err != nil {
			return model.WrapCLIError(model.ExitFailure,
				fmt.Sprintf("failed to enable %s", unit), err)
		}
		m.logf("enabled %s", unit)
		return m.job(ctx, "start", unit, conn.StartUnitContext)
	})
}

// DisableNow stops the unit and disables its unit file, the equivalent
// of `systemctl disable --now`.
func (m *Manager) DisableNow(ctx context.Context, unit string) error {
	return m.withConn(ctx, func(conn DBusAPI) error {
		if err := m.job(ctx, "stop", unit, conn.StopUnitContext); err != nil {
			return err
		}
		if _, err := conn.DisableUnitFilesContext(ctx, []string{unit}, false); err != nil {
			return model.WrapCLIError(model.ExitFailure,
				fmt.Sprintf("failed to disable %s", unit), err)
		}
		m.logf("disabled %s", unit)
		return nil
	})
}

// DaemonReload asks systemd to re-read unit files, needed after the
// installers write or remove units.
func (m *Manager) DaemonReload(ctx context.Context) error {
	return m.withConn(ctx, func(conn DBusAPI) error {
		if err := conn.ReloadContext(ctx); err != nil {
			return model.WrapCLIError(model.ExitFailure, "systemd daemon-reload failed", err)
		}
		return nil
	})
}

// IsActive reports whether the unit's ActiveState is "active".
func (m *Manager) IsActive(ctx context.Context, unit string) (bool, error) {
	var active bool
	err := m.withConn(ctx, func(conn DBusAPI) error {
		props, err := conn.GetUnitPropertiesContext(ctx, unit)
		if err != nil {
			return model.WrapCLIError(model.ExitFailure,
				fmt.Sprintf("failed to query %s", unit), err)
		}
		state, _ := props["ActiveState"].(string)
		active = state == "active"
		return nil
	})
	return active, err
}

func (m *Manager) logf(format string, args ...interface{}) {
	if m.Verbose != nil {
		m.Verbose(format, args...)
	}
}
