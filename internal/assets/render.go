// Package assets holds the embedded file templates the installers
// render into /etc and the user's home directory: the systemd sleep
// hook, udev rules, modprobe fragments, the PAM fingerprint block and
// the default Hyprland keybinding declarations.
//
// Templates are embedded so the binary is self-contained — there is no
// share directory to keep in sync with the executable.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	"path"
	"text/template"
)

//go:embed templates/*
var templates embed.FS

// Render executes the named template from the embedded set with the
// given data and returns the rendered text. The name is the file name
// under templates/ (e.g. "wwan-sleep.sh.tmpl").
func Render(name string, data any) (string, error) {
	tmpl, err := template.New(name).ParseFS(templates, path.Join("templates", name))
	if err != nil {
		return "", fmt.Errorf("failed to parse embedded template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}

// DefaultHyprBindings returns the embedded default keybinding
// declaration file, used when `bringup hyprland install` is run
// without --bindings.
func DefaultHyprBindings() ([]byte, error) {
	data, err := templates.ReadFile("templates/hypr-bindings.yaml")
	if err != nil {
		return nil, fmt.Errorf("embedded default bindings missing: %w", err)
	}
	return data, nil
}
