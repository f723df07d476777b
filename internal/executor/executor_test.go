// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesStdoutAndExitCode(t *testing.T) {
	e := New(5 * time.Second)
	result, err := e.Run(context.Background(), "echo hello", "/tmp", map[string]string{"PATH": "/usr/bin:/bin"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "hello")
}

func TestRun_CapturesNonZeroExit(t *testing.T) {
	e := New(5 * time.Second)
	result, err := e.Run(context.Background(), "exit 7", "/tmp", map[string]string{"PATH": "/usr/bin:/bin"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, result.ExitCode)
}

func TestRun_CapturesCwdChange(t *testing.T) {
	e := New(5 * time.Second)
	result, err := e.Run(context.Background(), "cd /", "/tmp", map[string]string{"PATH": "/usr/bin:/bin"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "/", result.Cwd)
}

func TestRun_TimesOut(t *testing.T) {
	e := New(50 * time.Millisecond)
	result, err := e.Run(context.Background(), "sleep 5", "/tmp", map[string]string{"PATH": "/usr/bin:/bin"}, 0)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
}

func TestParseEnvDump_ExtractsKeyValuePairs(t *testing.T) {
	raw := []byte("PWD=/home/user\x00FOO=bar\x00")
	env, cwd := parseEnvDump(raw)
	assert.Equal(t, "/home/user", cwd)
	assert.Equal(t, "bar", env["FOO"])
}

func TestParseEnvDump_EmptyReturnsNil(t *testing.T) {
	env, cwd := parseEnvDump(nil)
	assert.Nil(t, env)
	assert.Equal(t, "", cwd)
}

func TestRun_CapturesEnvAcrossInvocations(t *testing.T) {
	e := New(5 * time.Second)
	result, err := e.Run(context.Background(), "export AEGISH_TEST_VAR=hello", "/tmp", map[string]string{"PATH": "/usr/bin:/bin"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Env["AEGISH_TEST_VAR"])
	assert.Equal(t, "/tmp", result.Cwd)
}

func TestSanitizeEnvironment_DropsDangerousVarsEvenIfOverridden(t *testing.T) {
	env := sanitizeEnvironment(map[string]string{
		"PATH":       "/usr/bin",
		"LD_PRELOAD": "/tmp/evil.so",
		"BASH_ENV":   "/tmp/evil.sh",
	})
	for _, e := range env {
		assert.NotContains(t, e, "LD_PRELOAD")
		assert.NotContains(t, e, "BASH_ENV")
	}
}

func TestSanitizeEnvironment_KeepsSafePrefixedVars(t *testing.T) {
	env := sanitizeEnvironment(map[string]string{"LC_ALL": "C", "XDG_RUNTIME_DIR": "/run/user/1000"})
	joined := ""
	for _, e := range env {
		joined += e + " "
	}
	assert.Contains(t, joined, "LC_ALL=C")
	assert.Contains(t, joined, "XDG_RUNTIME_DIR=/run/user/1000")
}

func TestSanitizeEnvironment_DropsUnlistedVars(t *testing.T) {
	env := sanitizeEnvironment(map[string]string{"RANDOM_UNLISTED_VAR": "x"})
	assert.Empty(t, env)
}
