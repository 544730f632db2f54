package hypr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/bringup/internal/assets"
)

// TestParse decodes a minimal declaration file.
func TestParse(t *testing.T) {
	data := []byte(`
variables:
  mainMod: SUPER
binds:
  - mods: $mainMod
    key: Return
    dispatcher: exec
    args: kitty
  - mods: $mainMod
    key: Q
    dispatcher: killactive
`)

	b, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "SUPER", b.Variables["mainMod"])
	require.Len(t, b.Binds, 2)
	assert.Equal(t, "exec", b.Binds[0].Dispatcher)
	assert.Equal(t, "killactive", b.Binds[1].Dispatcher)
}

// TestParse_RejectsMissingDispatcher refuses a binding with no
// dispatcher, which hyprland would silently ignore.
func TestParse_RejectsMissingDispatcher(t *testing.T) {
	_, err := Parse([]byte("binds:\n  - mods: SUPER\n    key: Q\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatcher")
}

// TestParse_RejectsDuplicateChord refuses two bindings on the same
// modifier+key chord.
func TestParse_RejectsDuplicateChord(t *testing.T) {
	data := []byte(`
binds:
  - mods: SUPER
    key: Q
    dispatcher: killactive
  - mods: SUPER
    key: Q
    dispatcher: exit
`)
	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicates")
}

// TestParse_RejectsUnknownFlag refuses bind flags hyprland does not
// define.
func TestParse_RejectsUnknownFlag(t *testing.T) {
	data := []byte(`
binds:
  - key: XF86AudioRaiseVolume
    dispatcher: exec
    args: wpctl set-volume @DEFAULT_AUDIO_SINK@ 5%+
    flags: xz
`)
	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown bind flag")
}

// TestRender checks the rendered block: variables first, sorted, then
// binds in declaration order with flags folded into the keyword.
func TestRender(t *testing.T) {
	b := &Bindings{
		Variables: map[string]string{
			"terminal": "kitty",
			"mainMod":  "SUPER",
		},
		Binds: []Binding{
			{Mods: "$mainMod", Key: "Return", Dispatcher: "exec", Args: "$terminal"},
			{Mods: "$mainMod", Key: "Q", Dispatcher: "killactive"},
			{Key: "XF86MonBrightnessUp", Dispatcher: "exec", Args: "brightnessctl set +5%", Flags: "el"},
		},
	}

	out := b.Render()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Equal(t, []string{
		"$mainMod = SUPER",
		"$terminal = kitty",
		"",
		"bind = $mainMod, Return, exec, $terminal",
		"bind = $mainMod, Q, killactive",
		"bindel = , XF86MonBrightnessUp, exec, brightnessctl set +5%",
	}, lines)
}

// TestRender_Rerender verifies that rendering is deterministic, which
// the byte-identical reinstall guarantee depends on.
func TestRender_Rerender(t *testing.T) {
	b := &Bindings{
		Variables: map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"},
		Binds:     []Binding{{Key: "Q", Mods: "SUPER", Dispatcher: "killactive"}},
	}
	first := b.Render()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, b.Render())
	}
}

// TestDefaultBindings parses and renders the embedded defaults, so a
// broken default file fails in CI rather than on a user's machine.
func TestDefaultBindings(t *testing.T) {
	data, err := assets.DefaultHyprBindings()
	require.NoError(t, err)

	b, err := Parse(data)
	require.NoError(t, err)
	assert.NotEmpty(t, b.Binds)

	out := b.Render()
	assert.Contains(t, out, "$mainMod = SUPER")
	assert.Contains(t, out, "bind = $mainMod, Return, exec, $terminal")
	assert.Contains(t, out, "bindel = , XF86MonBrightnessUp, exec, brightnessctl set +5%")
}
