// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_SetsSessionIDAndStartTime(t *testing.T) {
	m := New("/tmp", map[string]string{"PATH": "/usr/bin"})
	assert.True(t, strings.HasPrefix(m.SessionID(), "sess_"))
	assert.False(t, m.StartTime().IsZero())
}

func TestNew_CopiesInitialEnv(t *testing.T) {
	seed := map[string]string{"PATH": "/usr/bin"}
	m := New("/tmp", seed)
	seed["PATH"] = "/mutated"
	assert.Equal(t, "/usr/bin", m.Env()["PATH"])
}

func TestSetCwd_UpdatesCwd(t *testing.T) {
	m := New("/tmp", nil)
	m.SetCwd("/home/user")
	assert.Equal(t, "/home/user", m.Cwd())
}

func TestSetEnv_ReplacesWholesale(t *testing.T) {
	m := New("/tmp", map[string]string{"FOO": "bar"})
	m.SetEnv(map[string]string{"BAZ": "qux"})
	env := m.Env()
	assert.Equal(t, "qux", env["BAZ"])
	_, hasFoo := env["FOO"]
	assert.False(t, hasFoo, "SetEnv must replace, not merge")
}

func TestSetEnv_NilOrEmptyKeepsPriorState(t *testing.T) {
	m := New("/tmp", map[string]string{"FOO": "bar"})
	m.SetEnv(nil)
	assert.Equal(t, "bar", m.Env()["FOO"])
	m.SetEnv(map[string]string{})
	assert.Equal(t, "bar", m.Env()["FOO"])
}

func TestLastExitCode_RoundTrips(t *testing.T) {
	m := New("/tmp", nil)
	assert.Equal(t, 0, m.LastExitCode())
	m.SetLastExitCode(127)
	assert.Equal(t, 127, m.LastExitCode())
}

func TestAppendHistory_PreservesOrder(t *testing.T) {
	m := New("/tmp", nil)
	m.AppendHistory("ls -la")
	m.AppendHistory("pwd")
	assert.Equal(t, []string{"ls -la", "pwd"}, m.History())
}

func TestAppendHistory_BoundedByCapacity(t *testing.T) {
	m := New("/tmp", nil)
	m.historyCap = 3
	m.AppendHistory("one")
	m.AppendHistory("two")
	m.AppendHistory("three")
	m.AppendHistory("four")
	assert.Equal(t, []string{"two", "three", "four"}, m.History())
}

func TestDuration_IncreasesOverTime(t *testing.T) {
	m := New("/tmp", nil)
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, m.Duration(), 10*time.Millisecond)
}

func TestManager_ConcurrentAccess(t *testing.T) {
	m := New("/tmp", map[string]string{"PATH": "/usr/bin"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.SessionID()
				_ = m.Cwd()
				_ = m.Env()
				_ = m.LastExitCode()
				_ = m.History()
				m.SetLastExitCode(n)
				m.AppendHistory("cmd")
			}
		}(i)
	}
	wg.Wait()
}
