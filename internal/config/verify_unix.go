// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build unix

package config

import (
	"fmt"
	"os"
	"syscall"
)

// verifyRootOwnedConfigFile enforces that the production config file is
// owned by root and not writable by group or other. The loader fails hard
// rather than warn-and-continue: a writable production config is a
// privilege-escalation path, not a cosmetic issue.
func verifyRootOwnedConfigFile(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("production config %s: %w", path, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("production config %s: refusing to follow symlink", path)
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("production config %s: could not determine file owner", path)
	}
	if stat.Uid != 0 {
		return fmt.Errorf("production config %s: must be owned by root (uid 0), owned by uid %d", path, stat.Uid)
	}

	if mode := info.Mode().Perm(); mode&0022 != 0 {
		return fmt.Errorf("production config %s: must not be group- or world-writable (mode %o)", path, mode)
	}

	return nil
}
