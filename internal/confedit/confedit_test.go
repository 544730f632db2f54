package confedit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTemp creates a file with the given content in a test temp dir.
func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// readFile returns the file content as a string, failing the test on error.
func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// TestApply_InsertsBlock verifies a block is appended to an existing
// file with markers around the content.
func TestApply_InsertsBlock(t *testing.T) {
	path := writeTemp(t, "sudo", "auth include system-auth\n")
	e := &Editor{}

	changed, err := e.Apply(Block{Path: path, Marker: "fprintd", Content: "auth sufficient pam_fprintd.so"})
	require.NoError(t, err)
	assert.True(t, changed)

	got := readFile(t, path)
	assert.Contains(t, got, "# BEGIN bringup:fprintd\n")
	assert.Contains(t, got, "auth sufficient pam_fprintd.so\n")
	assert.Contains(t, got, "# END bringup:fprintd\n")
	assert.Contains(t, got, "auth include system-auth\n")
}

// TestApply_Idempotent verifies the central install guarantee: running
// Apply twice leaves the file byte-identical after the first run.
func TestApply_Idempotent(t *testing.T) {
	path := writeTemp(t, "sudo", "auth include system-auth\n")
	e := &Editor{}
	b := Block{Path: path, Marker: "fprintd", Content: "auth sufficient pam_fprintd.so"}

	changed, err := e.Apply(b)
	require.NoError(t, err)
	require.True(t, changed)
	after1 := readFile(t, path)

	changed, err = e.Apply(b)
	require.NoError(t, err)
	assert.False(t, changed, "second apply must be a no-op")
	assert.Equal(t, after1, readFile(t, path), "file must be byte-identical after second apply")
}

// TestApply_UpdatesChangedBlock verifies that a block whose desired
// content drifted is rewritten in place, not duplicated.
func TestApply_UpdatesChangedBlock(t *testing.T) {
	path := writeTemp(t, "sudo", "auth include system-auth\n")
	e := &Editor{}

	_, err := e.Apply(Block{Path: path, Marker: "fprintd", Content: "auth sufficient pam_fprintd.so max-tries=1"})
	require.NoError(t, err)

	changed, err := e.Apply(Block{Path: path, Marker: "fprintd", Content: "auth sufficient pam_fprintd.so max-tries=3"})
	require.NoError(t, err)
	assert.True(t, changed)

	got := readFile(t, path)
	assert.Contains(t, got, "max-tries=3")
	assert.NotContains(t, got, "max-tries=1")
	assert.Equal(t, 1, strings.Count(got, "BEGIN bringup:fprintd"), "block must not be duplicated")
}

// TestApply_InsertBefore verifies PAM-style ordered insertion: the
// block lands before the first matching line, not at the end.
func TestApply_InsertBefore(t *testing.T) {
	original := "#%PAM-1.0\nauth include system-auth\naccount include system-auth\n"
	path := writeTemp(t, "sudo", original)
	e := &Editor{}

	_, err := e.Apply(Block{
		Path:         path,
		Marker:       "fprintd",
		Content:      "auth sufficient pam_fprintd.so",
		InsertBefore: "auth",
	})
	require.NoError(t, err)

	got := readFile(t, path)
	blockIdx := strings.Index(got, "BEGIN bringup:fprintd")
	authIdx := strings.Index(got, "auth include system-auth")
	require.GreaterOrEqual(t, blockIdx, 0)
	require.GreaterOrEqual(t, authIdx, 0)
	assert.Less(t, blockIdx, authIdx, "managed block must precede the existing auth line")
}

// TestRemove_ExactBlock verifies uninstall surgery: exactly the
// marker-delimited block goes, surrounding content is untouched.
func TestRemove_ExactBlock(t *testing.T) {
	original := "#%PAM-1.0\nauth include system-auth\naccount include system-auth\n"
	path := writeTemp(t, "sudo", original)
	e := &Editor{}

	_, err := e.Apply(Block{
		Path:         path,
		Marker:       "fprintd",
		Content:      "auth sufficient pam_fprintd.so",
		InsertBefore: "auth",
	})
	require.NoError(t, err)

	changed, err := e.Remove(path, "fprintd")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, original, readFile(t, path), "file must return to its pre-install content")
}

// TestRemove_MissingBlock verifies uninstall idempotence: removing a
// block that is not there succeeds and reports no change.
func TestRemove_MissingBlock(t *testing.T) {
	path := writeTemp(t, "sudo", "auth include system-auth\n")
	e := &Editor{}

	changed, err := e.Remove(path, "fprintd")
	require.NoError(t, err)
	assert.False(t, changed)

	// Missing file is fine too.
	changed, err = e.Remove(filepath.Join(t.TempDir(), "absent"), "fprintd")
	require.NoError(t, err)
	assert.False(t, changed)
}

// TestApply_MissingFile verifies the CreateIfMissing switch: PAM-style
// targets must exist, user config targets may be created.
func TestApply_MissingFile(t *testing.T) {
	e := &Editor{}
	missing := filepath.Join(t.TempDir(), "hyprland.conf")

	_, err := e.Apply(Block{Path: missing, Marker: "binds", Content: "bind = SUPER, Q, killactive"})
	require.Error(t, err, "without CreateIfMissing a missing file is an error")

	changed, err := e.Apply(Block{Path: missing, Marker: "binds", Content: "bind = SUPER, Q, killactive", CreateIfMissing: true})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Contains(t, readFile(t, missing), "BEGIN bringup:binds")
}

// TestApply_BackupOnce verifies the one-time backup: created on first
// mutation, never overwritten by later ones.
func TestApply_BackupOnce(t *testing.T) {
	original := "auth include system-auth\n"
	path := writeTemp(t, "sudo", original)
	e := &Editor{}

	_, err := e.Apply(Block{Path: path, Marker: "fprintd", Content: "v1"})
	require.NoError(t, err)
	assert.Equal(t, original, readFile(t, path+".bringup.orig"))

	_, err = e.Apply(Block{Path: path, Marker: "fprintd", Content: "v2"})
	require.NoError(t, err)
	assert.Equal(t, original, readFile(t, path+".bringup.orig"),
		"backup must keep the pre-first-edit content")
}

// TestApply_DryRun verifies dry-run previews without writing.
func TestApply_DryRun(t *testing.T) {
	original := "auth include system-auth\n"
	path := writeTemp(t, "sudo", original)
	e := &Editor{DryRun: true}

	changed, err := e.Apply(Block{Path: path, Marker: "fprintd", Content: "auth sufficient pam_fprintd.so"})
	require.NoError(t, err)
	assert.True(t, changed, "dry-run still reports what would change")
	assert.Equal(t, original, readFile(t, path), "dry-run must not modify the file")
	assert.NoFileExists(t, path+".bringup.orig")
}

// TestPresent reports block presence for status checks.
func TestPresent(t *testing.T) {
	path := writeTemp(t, "sudo", "auth include system-auth\n")
	e := &Editor{}

	assert.False(t, Present(path, "fprintd"))

	_, err := e.Apply(Block{Path: path, Marker: "fprintd", Content: "x"})
	require.NoError(t, err)
	assert.True(t, Present(path, "fprintd"))
}

