// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit writes one newline-delimited JSON event per final
// validation decision, per spec.md §6's schema. Adapted from the
// teacher's AuditLogger (internal/security/audit.go): secure file
// permissions, append-only steady state, size-triggered rotation, and
// write-failure escalation survive; the DoD AU-5 circuit-breaker/
// capacity-threshold/redactor-chain machinery does not, because this
// schema never logs raw command text in the first place — there is
// nothing left for a redactor to find.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeranaias/aegish/internal/policy"
)

// DefaultMaxFileSize triggers rotation once exceeded.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// Event is one audit record: spec.md §6's
// {ts, cmd_sha256, action, reason, confidence, source, model, role, mode}.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	CommandSHA string    `json:"cmd_sha256"`
	Action     string    `json:"action"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source"`
	Model      string    `json:"model,omitempty"`
	Role       string    `json:"role,omitempty"`
	Mode       string    `json:"mode,omitempty"`
}

// HashCommand reduces a raw command to its audit-safe digest — the log
// never carries the literal text a blocked or warned command contained.
func HashCommand(command string) string {
	sum := sha256.Sum256([]byte(command))
	return hex.EncodeToString(sum[:])
}

// NewEvent builds an Event from a final policy Decision plus the
// ambient fields the pipeline itself doesn't carry (model/role/mode).
func NewEvent(command string, decision policy.Decision, model, role, mode string) Event {
	return Event{
		Timestamp:  time.Now(),
		CommandSHA: HashCommand(command),
		Action:     string(decision.Action),
		Reason:     decision.Reason,
		Confidence: decision.Confidence,
		Source:     string(decision.Source),
		Model:      model,
		Role:       role,
		Mode:       mode,
	}
}

// Emitter appends Events to a newline-delimited JSON log file, rotating
// by size and escalating write failures to stderr.
type Emitter struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	maxSize int64

	persistentFailures int
}

// New opens (creating if necessary) the audit log at path with mode
// 0600, appending to any existing content.
func New(path string) (*Emitter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("audit: failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to open log file: %w", err)
	}
	return &Emitter{path: path, file: f, maxSize: DefaultMaxFileSize}, nil
}

// Emit writes one event as a single JSON line, rotating first if the
// file has grown past maxSize. Write failures are reported to stderr
// immediately; a failure on three consecutive Emit calls additionally
// logs a persistent-failure error, per spec.md §6's escalation note —
// the validation pipeline itself never blocks on an audit failure.
func (e *Emitter) Emit(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.file == nil {
		return
	}

	if err := e.rotateIfNeededLocked(); err != nil {
		fmt.Fprintf(os.Stderr, "audit: rotation failed: %v\n", err)
	}

	line, err := json.Marshal(event)
	if err != nil {
		fmt.Fprintf(os.Stderr, "audit: failed to encode event: %v\n", err)
		return
	}
	line = append(line, '\n')

	if _, err := e.file.Write(line); err != nil {
		e.persistentFailures++
		fmt.Fprintf(os.Stderr, "audit: failed to write event: %v\n", err)
		if e.persistentFailures >= 3 {
			fmt.Fprintf(os.Stderr, "audit: persistent write failure at %s, audit trail may be incomplete\n", e.path)
		}
		return
	}
	e.persistentFailures = 0
}

// Flush syncs the underlying file to disk — called on SIGTERM shutdown
// per spec.md §5's "audit buffer is flushed" requirement.
func (e *Emitter) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	return e.file.Sync()
}

// Close flushes and closes the underlying file.
func (e *Emitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.file == nil {
		return nil
	}
	_ = e.file.Sync()
	err := e.file.Close()
	e.file = nil
	return err
}

// rotateIfNeededLocked renames the current log to a timestamped
// sibling once it exceeds maxSize, then reopens a fresh append-only
// file at the original path. The rename step uses AtomicWriteFile-style
// durability expectations: rename is atomic on the same filesystem, so
// a crash mid-rotation never leaves a half-written log in its place.
func (e *Emitter) rotateIfNeededLocked() error {
	info, err := e.file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < e.maxSize {
		return nil
	}

	rotated := fmt.Sprintf("%s.%s", e.path, time.Now().Format("20060102-150405"))
	if err := e.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(e.path, rotated); err != nil {
		// Reopen the original path regardless so logging can continue.
		f, openErr := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		e.file = f
		if openErr != nil {
			return fmt.Errorf("audit: rotation rename failed (%v) and reopen failed: %w", err, openErr)
		}
		return fmt.Errorf("audit: rotation rename failed: %w", err)
	}

	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: failed to reopen log after rotation: %w", err)
	}
	e.file = f
	return nil
}
