// Package confedit edits shared configuration files (PAM stacks,
// hyprland.conf) by owning a single marker-delimited block per file.
//
// The contract, which the idempotence guarantees of every install
// action rest on:
//
//   - Apply inserts the managed block only when it is absent, and
//     rewrites it only when its content differs. A second Apply with
//     the same content leaves the file byte-identical.
//   - Remove deletes exactly the marker-delimited block (markers
//     included), leaving every surrounding byte untouched.
//   - The first mutation of an existing file writes a one-time backup
//     beside it, so a hand-edited PAM stack can always be recovered.
//
// Files this package touches are line-oriented system config; all
// editing is plain text manipulation, no parser for the host format is
// needed because we only ever claim the region between our own markers.
package confedit

import (
	"fmt"
	"os"
	"strings"
)

// markerPrefix brands the begin/end lines so blocks from this toolkit
// are recognizable in a file full of other tools' edits.
const markerPrefix = "bringup:"

// backupSuffix is appended to the target path for the one-time backup.
const backupSuffix = ".bringup.orig"

// Block describes one managed region of a config file.
type Block struct {
	// Path is the file to edit.
	Path string

	// Marker names the block, e.g. "fprintd". It appears in the
	// begin/end lines and must be unique per file.
	Marker string

	// Content is the block body, without markers. A trailing newline
	// is added if missing.
	Content string

	// CommentPrefix starts the marker lines ("#" for PAM and shell
	// style files). Defaults to "#".
	CommentPrefix string

	// InsertBefore, when non-empty, places a newly created block
	// immediately before the first line that begins with this prefix
	// (after leading whitespace). PAM ordering depends on this: the
	// fprintd line must precede pam_unix to be consulted first.
	// When empty, or when no line matches, the block is appended.
	InsertBefore string

	// CreateIfMissing allows Apply to create the file (with the block
	// as its only content) when it does not exist. Without it a
	// missing file is an error, which is right for PAM stacks that
	// the OS owns.
	CreateIfMissing bool

	// Mode is used when creating the file. Defaults to 0644.
	Mode os.FileMode
}

// Editor applies and removes managed blocks. DryRun previews edits
// without touching the filesystem.
type Editor struct {
	DryRun  bool
	Verbose func(format string, args ...interface{})
}

// beginLine and endLine render the marker lines for a block.
func (b Block) beginLine() string {
	return b.comment() + " BEGIN " + markerPrefix + b.Marker
}

func (b Block) endLine() string {
	return b.comment() + " END " + markerPrefix + b.Marker
}

func (b Block) comment() string {
	if b.CommentPrefix != "" {
		return b.CommentPrefix
	}
	return "#"
}

// rendered returns the full managed region: begin marker, content,
// end marker, each line newline-terminated.
func (b Block) rendered() string {
	content := b.Content
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return b.beginLine() + "\n" + content + b.endLine() + "\n"
}

// Apply ensures the managed block is present and current in the target
// file. It returns true when the file was modified (or would be, under
// dry-run).
func (e *Editor) Apply(b Block) (bool, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return false, fmt.Errorf("failed to read %s: %w", b.Path, err)
		}
		if !b.CreateIfMissing {
			return false, fmt.Errorf("%s does not exist", b.Path)
		}
		return true, e.writeFile(b.Path, b.rendered(), b.mode(), false)
	}

	text := string(data)
	existing, start, end, found := findBlock(text, b)
	if found && existing == b.rendered() {
		// Marker-gated skip: the block is already exactly what we
		// would write. The file stays byte-identical.
		e.logf("block %s already current in %s", b.Marker, b.Path)
		return false, nil
	}

	var updated string
	if found {
		updated = text[:start] + b.rendered() + text[end:]
	} else {
		updated = insertBlock(text, b)
	}

	if err := e.backup(b.Path, data); err != nil {
		return false, err
	}
	return true, e.writeFile(b.Path, updated, b.mode(), true)
}

// Remove deletes the managed block from the target file. Returns true
// when a block was found and removed. A missing file or missing block
// is not an error: uninstall is idempotent too.
func (e *Editor) Remove(path, marker string) (bool, error) {
	b := Block{Path: path, Marker: marker}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	text := string(data)
	_, start, end, found := findBlock(text, b)
	if !found {
		return false, nil
	}

	if err := e.backup(path, data); err != nil {
		return false, err
	}

	info, err := os.Stat(path)
	mode := os.FileMode(0644)
	if err == nil {
		mode = info.Mode().Perm()
	}
	return true, e.writeFile(path, text[:start]+text[end:], mode, true)
}

// Present reports whether the managed block exists in the file,
// regardless of whether its content is current.
func Present(path, marker string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	_, _, _, found := findBlock(string(data), Block{Path: path, Marker: marker})
	return found
}

func (b Block) mode() os.FileMode {
	if b.Mode != 0 {
		return b.Mode
	}
	return 0644
}

// findBlock locates the managed region in text. It matches marker lines
// by their stable suffix ("BEGIN bringup:<marker>") rather than the full
// rendered line so a block survives a change of CommentPrefix. Returns
// the region text and its [start, end) byte offsets.
func findBlock(text string, b Block) (region string, start, end int, found bool) {
	beginTag := "BEGIN " + markerPrefix + b.Marker
	endTag := "END " + markerPrefix + b.Marker

	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !found && strings.HasSuffix(trimmed, beginTag) {
			start = offset
			found = true
		}
		offset += len(line)
		if found && strings.HasSuffix(trimmed, endTag) {
			end = offset
			return text[start:end], start, end, true
		}
	}

	// An unterminated block (begin without end) is treated as absent;
	// Apply will then append a complete block rather than guess where
	// the damaged one was meant to stop.
	return "", 0, 0, false
}

// insertBlock places a new block into text, honoring InsertBefore.
func insertBlock(text string, b Block) string {
	if b.InsertBefore != "" {
		offset := 0
		for _, line := range strings.SplitAfter(text, "\n") {
			if strings.HasPrefix(strings.TrimLeft(line, " \t"), b.InsertBefore) {
				return text[:offset] + b.rendered() + text[offset:]
			}
			offset += len(line)
		}
	}

	// Append, separated by a newline if the file doesn't end with one.
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text + b.rendered()
}

// backup writes a one-time copy of the original file contents. An
// existing backup is never overwritten — it preserves the state before
// this toolkit's first edit, not the state before the latest one.
func (e *Editor) backup(path string, original []byte) error {
	backupPath := path + backupSuffix
	if _, err := os.Stat(backupPath); err == nil {
		return nil
	}
	if e.DryRun {
		e.logf("would back up %s to %s", path, backupPath)
		return nil
	}

	info, err := os.Stat(path)
	mode := os.FileMode(0644)
	if err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(backupPath, original, mode); err != nil {
		return fmt.Errorf("failed to back up %s: %w", path, err)
	}
	e.logf("backed up %s to %s", path, backupPath)
	return nil
}

func (e *Editor) writeFile(path, content string, mode os.FileMode, existed bool) error {
	if e.DryRun {
		if existed {
			e.logf("would update %s", path)
		} else {
			e.logf("would create %s", path)
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	e.logf("wrote %s", path)
	return nil
}

func (e *Editor) logf(format string, args ...interface{}) {
	if e.Verbose != nil {
		e.Verbose(format, args...)
	}
}
