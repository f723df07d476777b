// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sandbox restricts the process (and everything it execs) with a
// Linux Landlock ruleset that denies execute access to shell
// interpreters, so that even an Allow'd command cannot re-exec a second
// shell outside the validation pipeline. On non-Linux platforms it
// degrades to a logged no-op. There is no teacher analog for Landlock;
// the platform-split file layout (sandbox_linux.go / sandbox_other.go)
// follows the teacher's own unix/windows build-tag convention
// (internal/security/keystore_unix.go / keystore_windows.go).
package sandbox

import "sync"

// Sandbox is the process-lifetime handle returned by Enable. It carries
// no mutable state after construction; the ruleset, once applied via
// landlock_restrict_self, cannot be loosened for the life of the process.
type Sandbox struct {
	Active bool
	Detail string
}

// DefaultDenyExecPaths is the hard-coded list of shell interpreter
// binaries the ruleset denies execute access to. Path-based denial does
// not cover copies to unlisted locations (cp /bin/bash /tmp/x; /tmp/x)
// — a known, acknowledged limitation, not something this package tries
// to fix. Platform-independent so callers can reference it without a
// build tag; sandbox_other.go's no-op enable() ignores it entirely.
var DefaultDenyExecPaths = []string{
	"/bin/bash", "/usr/bin/bash",
	"/bin/sh", "/usr/bin/sh",
	"/bin/dash", "/usr/bin/dash",
	"/bin/zsh", "/usr/bin/zsh",
	"/bin/ksh", "/usr/bin/ksh",
	"/bin/csh", "/usr/bin/csh",
	"/bin/tcsh", "/usr/bin/tcsh",
	"/usr/bin/fish",
	"/bin/ash", "/usr/bin/ash",
	"/bin/mksh", "/usr/bin/mksh",
	"/bin/rbash", "/usr/bin/rbash",
	"/bin/busybox", "/usr/bin/busybox",
}

var (
	once     sync.Once
	instance *Sandbox
	enableErr error
)

// Enable applies the sandbox exactly once per process, per spec.md's
// Design Notes on global mutable state: later calls return the cached
// result instead of attempting to restrict an already-restricted
// process a second time (Landlock rulesets only ever add restrictions,
// so a second call would be harmless but wasteful).
func Enable(denyExecPaths []string) (*Sandbox, error) {
	once.Do(func() {
		instance, enableErr = enable(denyExecPaths)
	})
	return instance, enableErr
}
