// Package hypr renders Hyprland keybinding declarations into config
// lines.
//
// Bindings are declared in a small YAML file (variables plus a list of
// binds) instead of raw hyprland.conf syntax so the toolkit can
// validate them and render a consistent managed block. The rendered
// lines go into the user's hyprland.conf between confedit markers; the
// rest of the file is never touched.
package hypr

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Binding declares one keybinding.
type Binding struct {
	// Mods is the modifier expression, e.g. "$mainMod SHIFT". Empty
	// means no modifier (media keys).
	Mods string `yaml:"mods"`

	// Key is the key name, e.g. "Return", "Q", "XF86MonBrightnessUp".
	Key string `yaml:"key"`

	// Dispatcher is the Hyprland dispatcher, e.g. "exec", "killactive".
	Dispatcher string `yaml:"dispatcher"`

	// Args is the dispatcher argument, if any.
	Args string `yaml:"args,omitempty"`

	// Flags holds hyprland bind flags appended to the keyword, e.g.
	// "el" renders "bindel" (repeat + works-on-lockscreen), used for
	// brightness and volume keys.
	Flags string `yaml:"flags,omitempty"`
}

// Bindings is a parsed declaration file.
type Bindings struct {
	// Variables defines hyprland $variables emitted before the binds,
	// e.g. mainMod: SUPER.
	Variables map[string]string `yaml:"variables,omitempty"`

	// Binds is the ordered list of keybindings.
	Binds []Binding `yaml:"binds"`
}

// Parse decodes a YAML declaration file.
func Parse(data []byte) (*Bindings, error) {
	var b Bindings
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse bindings file: %w", err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks every binding for the fields Hyprland requires and
// for duplicate chords, which would silently shadow each other.
func (b *Bindings) Validate() error {
	seen := make(map[string]int)
	for i, bind := range b.Binds {
		if bind.Key == "" {
			return fmt.Errorf("binding %d: key must not be empty", i)
		}
		if bind.Dispatcher == "" {
			return fmt.Errorf("binding %d (%s): dispatcher must not be empty", i, bind.Key)
		}
		for _, r := range bind.Flags {
			if !strings.ContainsRune("lredntsimp", r) {
				return fmt.Errorf("binding %d (%s): unknown bind flag %q", i, bind.Key, r)
			}
		}

		chord := bind.Mods + "+" + bind.Key
		if prev, dup := seen[chord]; dup {
			return fmt.Errorf("binding %d (%s) duplicates binding %d", i, bind.Key, prev)
		}
		seen[chord] = i
	}
	return nil
}

// Render produces the hyprland.conf lines for the managed block:
// variable definitions first (sorted for stable output), then one
// bind line per declaration, in file order.
func (b *Bindings) Render() string {
	var sb strings.Builder

	names := make([]string, 0, len(b.Variables))
	for name := range b.Variables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "$%s = %s\n", name, b.Variables[name])
	}
	if len(names) > 0 && len(b.Binds) > 0 {
		sb.WriteString("\n")
	}

	for _, bind := range b.Binds {
		keyword := "bind" + bind.Flags
		parts := []string{bind.Mods, bind.Key, bind.Dispatcher}
		if bind.Args != "" {
			parts = append(parts, bind.Args)
		}
		fmt.Fprintf(&sb, "%s = %s\n", keyword, strings.Join(parts, ", "))
	}
	return sb.String()
}
