// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package shell

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/aegish/internal/util"
)

// LineEditor wraps peterh/liner with history load/save, directly
// adapted from the teacher's ChatCLI (internal/cli/chat.go) — repointed
// at spec.md §6's history file contract: mode 0600 enforced at creation
// and on each write, symlinks refused.
type LineEditor struct {
	line        *liner.State
	historyPath string
}

// NewLineEditor builds a LineEditor backed by historyPath, loading any
// existing history immediately.
func NewLineEditor(historyPath string) *LineEditor {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	e := &LineEditor{line: line, historyPath: historyPath}
	e.LoadHistory()
	return e
}

// LoadHistory reads historyPath into the line editor's history buffer,
// refusing to follow a symlink at that path.
func (e *LineEditor) LoadHistory() {
	f, err := openNoFollow(e.historyPath, os.O_RDONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	e.line.ReadHistory(f)
}

// SaveHistory persists history to historyPath with mode 0600, via an
// atomic temp-write-then-rename so a reader never observes a partial
// file and a symlink at historyPath is replaced rather than followed.
func (e *LineEditor) SaveHistory() {
	var buf bytes.Buffer
	if _, err := e.line.WriteHistory(&buf); err != nil {
		fmt.Fprintf(os.Stderr, "shell: failed to serialize history: %v\n", err)
		return
	}
	if err := util.AtomicWriteFile(e.historyPath, buf.Bytes(), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "shell: failed to save history: %v\n", err)
	}
}

// ReadInput prompts and reads one line; non-blank input is appended to
// the in-memory history (not yet persisted — SaveHistory does that).
func (e *LineEditor) ReadInput(prompt string) (string, error) {
	input, err := e.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		e.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and releases the underlying liner state.
func (e *LineEditor) Close() {
	e.SaveHistory()
	e.line.Close()
}

// openNoFollow opens path refusing to traverse a trailing symlink,
// matching spec.md §6's "symlinks refused (O_NOFOLLOW)" requirement.
func openNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag|syscallNoFollow, perm)
}
