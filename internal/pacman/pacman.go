// Package pacman wraps the Arch Linux package manager for the install
// subcommands.
//
// Everything here is a thin, single-purpose wrapper over the pacman
// CLI: check whether a package is present, install the missing ones,
// optionally refresh the system first. Installs always pass --needed so
// re-running an install action never reinstalls or downgrades anything
// — the package layer shares the idempotence contract of the file
// editors.
package pacman

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmr-tortoise/bringup/internal/model"
	"github.com/mmr-tortoise/bringup/internal/run"
)

// Pacman invokes the system package manager.
type Pacman struct {
	Run     run.Runner
	Verbose func(format string, args ...interface{})
}

// Installed reports whether the package is present. `pacman -Qi` exits
// non-zero for unknown packages; we only care about the exit status.
func (p *Pacman) Installed(ctx context.Context, pkg string) bool {
	_, err := p.Run.Run(ctx, "pacman", "-Qi", pkg)
	return err == nil
}

// EnsureInstalled installs any of the given packages that are missing.
// Already-present packages are skipped up front so the output names
// exactly what is about to change.
func (p *Pacman) EnsureInstalled(ctx context.Context, pkgs ...string) error {
	var missing []string
	for _, pkg := range pkgs {
		if p.Installed(ctx, pkg) {
			p.logf("package %s already installed", pkg)
			continue
		}
		missing = append(missing, pkg)
	}
	if len(missing) == 0 {
		return nil
	}

	p.logf("installing: %s", strings.Join(missing, " "))
	args := append([]string{"-S", "--needed", "--noconfirm"}, missing...)
	if _, err := p.Run.Run(ctx, "pacman", args...); err != nil {
		return model.WrapCLIError(model.ExitFailure,
			fmt.Sprintf("failed to install packages: %s", strings.Join(missing, " ")), err)
	}
	return nil
}

// Upgrade runs a full system upgrade. Install actions call this unless
// --no-upgrade is given; installing new packages against a stale sync
// database is the classic partial-upgrade trap on Arch.
func (p *Pacman) Upgrade(ctx context.Context) error {
	p.logf("running full system upgrade")
	if _, err := p.Run.Run(ctx, "pacman", "-Syu", "--noconfirm"); err != nil {
		return model.WrapCLIError(model.ExitFailure, "system upgrade failed", err)
	}
	return nil
}

func (p *Pacman) logf(format string, args ...interface{}) {
	if p.Verbose != nil {
		p.Verbose(format, args...)
	}
}
