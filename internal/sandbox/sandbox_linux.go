// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Landlock ABI constants (uapi/linux/landlock.h). golang.org/x/sys/unix
// does not wrap these syscalls, so they're issued directly with
// unix.Syscall; the ABI is stable across kernel point releases once a
// given LANDLOCK_ACCESS_FS_* bit is advertised by landlock_create_ruleset's
// abi_version return.
const (
	landlockAccessFSExecute = 1 << 0

	sysLandlockCreateRuleset = 444
	sysLandlockAddRule       = 445
	sysLandlockRestrictSelf  = 446

	landlockRuleTypePathBeneath = 1

	landlockCreateRulesetVersion = 1 << 0
)

type landlockRulesetAttr struct {
	handledAccessFS uint64
}

type landlockPathBeneathAttr struct {
	allowedAccess uint64
	parentFD      int32
}

// enable builds a Landlock ruleset granting execute access everywhere
// under "/" except denyExecPaths, sets PR_SET_NO_NEW_PRIVS, and attaches
// the calling process to the ruleset via landlock_restrict_self. Both
// steps are irrevocable for this process and inherited by its
// descendants.
//
// Landlock is an allowlist, not a denylist: handledAccessFS marks
// execute denied-by-default everywhere, and landlock_add_rule only ever
// grants it back. There is no "allow except" rule, so leaving everything
// but a handful of shell binaries runnable means granting execute on
// every top-level entry under "/" in one rule each, except walking down
// into (and granting file-by-file, skipping the denied names) whichever
// directories actually sit on the path to a denied binary.
func enable(denyExecPaths []string) (*Sandbox, error) {
	if denyExecPaths == nil {
		denyExecPaths = DefaultDenyExecPaths
	}

	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		return &Sandbox{Active: false, Detail: "landlock restricted to x86_64/aarch64; degraded on " + runtime.GOARCH}, nil
	}

	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return &Sandbox{Active: false, Detail: "PR_SET_NO_NEW_PRIVS failed: " + err.Error()}, nil
	}

	rulesetFD, err := landlockCreateRuleset()
	if err != nil {
		return &Sandbox{Active: false, Detail: "landlock unavailable (no-new-privs still set): " + err.Error()}, nil
	}
	defer unix.Close(rulesetFD)

	denied := denyExecPathSet(denyExecPaths)
	ancestors := denyExecAncestors(denyExecPaths)
	granted, skipped := grantExecTree(rulesetFD, "/", denied, ancestors)

	if err := landlockRestrictSelf(rulesetFD); err != nil {
		return &Sandbox{Active: false, Detail: "landlock_restrict_self failed: " + err.Error()}, nil
	}

	return &Sandbox{Active: true, Detail: fmt.Sprintf("landlock active, %d paths granted execute, %d shell binaries denied", granted, skipped)}, nil
}

func denyExecPathSet(denyExecPaths []string) map[string]bool {
	set := make(map[string]bool, len(denyExecPaths))
	for _, p := range denyExecPaths {
		set[p] = true
	}
	return set
}

// denyExecAncestors returns every directory that sits on the path from
// "/" down to a denied binary — these are the only directories
// grantExecTree needs to descend into rather than grant wholesale.
func denyExecAncestors(denyExecPaths []string) map[string]bool {
	ancestors := map[string]bool{"/": true}
	for _, p := range denyExecPaths {
		dir := filepath.Dir(p)
		for dir != "/" && dir != "." {
			ancestors[dir] = true
			dir = filepath.Dir(dir)
		}
	}
	return ancestors
}

// grantExecTree grants execute access at path: in one rule if path is
// not on the way to any denied binary, per-entry (recursing) if it is,
// and not at all if path itself is denied. A missing entry or a
// permission error on any single path is non-fatal — Landlock is
// defense in depth here, not the only layer.
func grantExecTree(rulesetFD int, path string, denied, ancestors map[string]bool) (granted, skipped int) {
	if denied[path] {
		return 0, 1
	}
	if !ancestors[path] {
		if err := addExecRule(rulesetFD, path); err == nil {
			return 1, 0
		}
		return 0, 0
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return 0, 0
	}
	for _, entry := range entries {
		g, s := grantExecTree(rulesetFD, filepath.Join(path, entry.Name()), denied, ancestors)
		granted += g
		skipped += s
	}
	return granted, skipped
}

func landlockCreateRuleset() (int, error) {
	attr := landlockRulesetAttr{handledAccessFS: landlockAccessFSExecute}
	fd, _, errno := unix.Syscall(sysLandlockCreateRuleset, uintptr(unsafe.Pointer(&attr)), unsafe.Sizeof(attr), 0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

// addExecRule grants LANDLOCK_ACCESS_FS_EXECUTE beneath path (or, if
// path is a regular file, for that file itself).
func addExecRule(rulesetFD int, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	attr := landlockPathBeneathAttr{
		allowedAccess: landlockAccessFSExecute,
		parentFD:      int32(f.Fd()),
	}

	_, _, errno := unix.Syscall6(
		sysLandlockAddRule,
		uintptr(rulesetFD),
		uintptr(landlockRuleTypePathBeneath),
		uintptr(unsafe.Pointer(&attr)),
		0, 0, 0,
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func landlockRestrictSelf(rulesetFD int) error {
	_, _, errno := unix.Syscall(sysLandlockRestrictSelf, uintptr(rulesetFD), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
