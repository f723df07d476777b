// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resolve implements the substitution resolver: it recursively
// locates $(...) occurrences, validates each inner command through the
// full pipeline, executes allowed ones inside the sandbox to capture
// stdout, and substitutes the captured text back into the outer command —
// all under hard depth/count/byte/time budgets. There is no teacher
// analog for this; the bottom-up recursive-validate-and-execute shape
// mirrors the Validator's own orchestration, applied recursively per
// spec.md §4.4.
package resolve

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/aegish/internal/policy"
)

// Budgets, enforced additively across a command's entire substitution
// tree (spec.md §5), not per-branch.
const (
	MaxDepth       = 3
	MaxCount       = 10
	MaxBytes       = 32768
	MaxInnerWall   = 5 * time.Second
)

// Status is the sum type for one resolved $(...) occurrence.
type Status string

const (
	Resolved     Status = "resolved"
	Warned       Status = "warned"
	Blocked      Status = "blocked"
	Unresolvable Status = "unresolvable"
)

// Entry is one ResolvedSubstitution.
type Entry struct {
	Pattern string
	Status  Status
	Content string
	Reason  string
}

// Log is the ordered ResolutionLog.
type Log []Entry

// HasBlocked / HasUnresolvable / HasWarned summarize the log for the
// policy engine's Rules 2, 3, 6.
func (l Log) HasBlocked() bool {
	for _, e := range l {
		if e.Status == Blocked {
			return true
		}
	}
	return false
}

func (l Log) HasUnresolvable() bool {
	for _, e := range l {
		if e.Status == Unresolvable {
			return true
		}
	}
	return false
}

func (l Log) HasWarned() bool {
	for _, e := range l {
		if e.Status == Warned {
			return true
		}
	}
	return false
}

// InnerValidator is what the resolver calls to run the full pipeline on
// an inner command. Implemented by internal/validator; injected here to
// avoid a resolve<->validator import cycle (validator already imports
// resolve to drive it).
type InnerValidator func(ctx context.Context, command string) (policy.Decision, error)

// InnerExecutor runs an Allow'd inner command in the sandbox and returns
// its captured stdout. Implemented by internal/executor.
type InnerExecutor func(ctx context.Context, command string, timeout time.Duration) (stdout []byte, err error)

// Resolver holds the budget counters for one top-level command's entire
// substitution tree and the callbacks it recurses through.
type Resolver struct {
	Validate InnerValidator
	Execute  InnerExecutor

	count     int
	bytesUsed int
}

// New builds a Resolver wired to the given validator/executor callbacks.
func New(validate InnerValidator, execute InnerExecutor) *Resolver {
	return &Resolver{Validate: validate, Execute: execute}
}

// Resolve implements spec.md §4.4's algorithm: extract $(...) occurrences,
// resolve innermost first, substitute resolved content back into the
// outer text literally (no shell re-quoting), and return the new outer
// text plus the log.
func (r *Resolver) Resolve(ctx context.Context, text string) (string, Log) {
	return r.resolveAtDepth(ctx, text, 0)
}

func (r *Resolver) resolveAtDepth(ctx context.Context, text string, depth int) (string, Log) {
	occurrences := extractSubstitutions(text)
	if len(occurrences) == 0 {
		return text, nil
	}

	var log Log
	out := text

	for _, occ := range occurrences {
		r.count++
		if r.count > MaxCount {
			entry := Entry{
				Pattern: occ.full,
				Status:  Unresolvable,
				Reason:  "count budget exceeded",
			}
			log = append(log, entry)
			out = replaceFirst(out, occ.full, "")
			continue
		}

		// Recurse innermost-first: resolve nested $(...) inside occ.inner
		// before evaluating occ itself.
		innerText, innerLog := r.resolveAtDepth(ctx, occ.inner, depth+1)
		log = append(log, innerLog...)

		// Depth is measured from the innermost substitution outward —
		// nestingDepth(occ.inner) is 1 for a leaf occurrence with no
		// nested $(...), 2 for one level of nesting below it, and so on —
		// so a chain one level past the budget marks its outermost
		// occurrence Unresolvable while the innermost ones, already
		// resolved above, stand per §8's boundary case.
		if nestingDepth(occ.inner) > MaxDepth {
			entry := Entry{Pattern: occ.full, Status: Unresolvable, Reason: "depth budget exceeded"}
			log = append(log, entry)
			out = replaceFirst(out, occ.full, "")
			continue
		}

		entry := r.resolveOne(ctx, occ.full, innerText)
		log = append(log, entry)

		if entry.Status == Resolved {
			out = replaceFirst(out, occ.full, entry.Content)
		}
		// Warned/Blocked/Unresolvable: do not execute, leave the literal
		// $(...) text in place — the outer blocklist re-check still sees
		// it and the policy engine's Rules 2/3/6 already force the
		// correct outer decision regardless of what remains in the text.
	}

	return out, log
}

// nestingDepth counts levels of $(...) nesting within inner, from the
// innermost substitution outward: a leaf with no further nesting is
// depth 1, one level of nesting below it is depth 2, and so on.
func nestingDepth(inner string) int {
	children := extractSubstitutions(inner)
	if len(children) == 0 {
		return 1
	}
	max := 0
	for _, c := range children {
		if d := nestingDepth(c.inner); d > max {
			max = d
		}
	}
	return max + 1
}

func (r *Resolver) resolveOne(ctx context.Context, pattern, inner string) Entry {
	if file, ok := simpleFileRead(inner); ok {
		data, err := readFileForResolution(file, MaxBytes-r.bytesUsed)
		if err == nil {
			r.bytesUsed += len(data)
			return Entry{Pattern: pattern, Status: Resolved, Content: string(data)}
		}
		return Entry{Pattern: pattern, Status: Unresolvable, Reason: "simple file read failed: " + err.Error()}
	}

	decision, err := r.Validate(ctx, inner)
	if err != nil {
		return Entry{Pattern: pattern, Status: Unresolvable, Reason: "inner validation failed: " + err.Error()}
	}

	switch decision.Action {
	case policy.Allow:
		innerCtx, cancel := context.WithTimeout(ctx, MaxInnerWall)
		defer cancel()
		stdout, err := r.Execute(innerCtx, inner, MaxInnerWall)
		if err != nil {
			return Entry{Pattern: pattern, Status: Unresolvable, Reason: "inner execution failed: " + err.Error()}
		}
		if r.bytesUsed+len(stdout) > MaxBytes {
			allowed := MaxBytes - r.bytesUsed
			if allowed < 0 {
				allowed = 0
			}
			stdout = stdout[:allowed]
		}
		r.bytesUsed += len(stdout)
		return Entry{Pattern: pattern, Status: Resolved, Content: string(stdout)}
	case policy.Warn:
		return Entry{Pattern: pattern, Status: Warned, Reason: decision.Reason}
	default:
		return Entry{Pattern: pattern, Status: Blocked, Reason: decision.Reason}
	}
}

// simpleFileRead recognizes `cat F`, `head F`, `tail F`, `<F` forms.
func simpleFileRead(inner string) (string, bool) {
	trimmed := strings.TrimSpace(inner)
	for _, prefix := range []string{"cat ", "head ", "tail "} {
		if strings.HasPrefix(trimmed, prefix) {
			arg := strings.TrimSpace(trimmed[len(prefix):])
			if arg != "" && !strings.ContainsAny(arg, "|;&$`><") {
				return arg, true
			}
		}
	}
	if strings.HasPrefix(trimmed, "<") {
		arg := strings.TrimSpace(trimmed[1:])
		if arg != "" && !strings.ContainsAny(arg, "|;&$`><") {
			return arg, true
		}
	}
	return "", false
}

func readFileForResolution(path string, maxBytes int) ([]byte, error) {
	if maxBytes < 0 {
		maxBytes = 0
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, os.ErrInvalid
	}

	buf := make([]byte, maxBytes)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, err
	}
	return buf[:n], nil
}

func replaceFirst(s, old, new string) string {
	idx := strings.Index(s, old)
	if idx < 0 {
		return s
	}
	return s[:idx] + new + s[idx+len(old):]
}
