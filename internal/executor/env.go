// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package executor

import "strings"

// SafeEnvPrefixes are name prefixes always allowed through regardless of
// the allowlist below (locale and XDG base-directory variables vary too
// much by name to enumerate).
var SafeEnvPrefixes = []string{
	"LC_",
	"XDG_",
}

// SafeEnvVars is the allowlist: variables let through verbatim when
// present in the parent environment.
var SafeEnvVars = []string{
	"PATH", "HOME", "USER", "LOGNAME", "SHELL", "TERM", "LANG",
	"TZ", "TMPDIR", "PWD", "OLDPWD",
	"GOPATH", "GOROOT", "GOPROXY", "GOMODCACHE",
}

// DangerousEnvVars are removed on every path regardless of the
// allowlist above — spec.md §4.8's explicit denylist. Adapted and
// extended from the teacher's DangerousEnvVars in internal/tools/bash.go.
var DangerousEnvVars = []string{
	// dynamic linker injection
	"LD_PRELOAD", "LD_LIBRARY_PATH", "LD_AUDIT", "BASH_LOADABLES_PATH",
	// bash startup hooks
	"BASH_ENV", "ENV", "PROMPT_COMMAND", "PS0", "PS4",
	"SHELLOPTS", "BASHOPTS", "EXECIGNORE", "IFS", "CDPATH", "GLOBIGNORE",
	// interpreter library injection
	"PYTHONPATH", "PYTHONSTARTUP", "PERL5LIB", "PERL5OPT",
	"RUBYLIB", "NODE_OPTIONS", "NODE_PATH", "CLASSPATH",
	// misc
	"GIT_PAGER", "GIT_SSH_COMMAND", "LESSOPEN", "MANPAGER",
	"EDITOR", "VISUAL", "PAGER",
}

// sanitizeEnvironment builds the child's environment as an allowlist:
// only names in SafeEnvVars, or with a SafeEnvPrefixes prefix, survive —
// and DangerousEnvVars (and BASH_FUNC_* exported functions) are removed
// on every path regardless, even if a caller's override map tried to set
// one explicitly.
func sanitizeEnvironment(overrides map[string]string) []string {
	dangerous := make(map[string]bool, len(DangerousEnvVars))
	for _, v := range DangerousEnvVars {
		dangerous[strings.ToUpper(v)] = true
	}
	safe := make(map[string]bool, len(SafeEnvVars))
	for _, v := range SafeEnvVars {
		safe[strings.ToUpper(v)] = true
	}

	merged := make(map[string]string)
	for k, v := range overrides {
		merged[k] = v
	}

	result := make([]string, 0, len(merged))
	for key, value := range merged {
		upper := strings.ToUpper(key)
		if dangerous[upper] || strings.HasPrefix(upper, "BASH_FUNC_") || strings.HasPrefix(upper, "LD_") {
			continue
		}
		if safe[upper] || hasSafePrefix(upper) {
			result = append(result, key+"="+value)
		}
	}

	return result
}

func hasSafePrefix(upper string) bool {
	for _, p := range SafeEnvPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}
