// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/aegish/internal/policy"
)

func allowValidator(context.Context, string) (policy.Decision, error) {
	return policy.NewDecision(policy.Allow, "ok", 1.0, policy.SourcePolicy), nil
}

func blockValidator(context.Context, string) (policy.Decision, error) {
	return policy.NewDecision(policy.Block, "blocked inner", 1.0, policy.SourcePolicy), nil
}

func echoExecutor(_ context.Context, command string, _ time.Duration) ([]byte, error) {
	return []byte("output-of:" + command), nil
}

func TestExtractSubstitutions_Simple(t *testing.T) {
	occs := extractSubstitutions("echo $(whoami)")
	require.Len(t, occs, 1)
	assert.Equal(t, "$(whoami)", occs[0].full)
	assert.Equal(t, "whoami", occs[0].inner)
}

func TestExtractSubstitutions_Nested(t *testing.T) {
	occs := extractSubstitutions("echo $(echo $(id))")
	require.Len(t, occs, 1)
	assert.Equal(t, "echo $(id)", occs[0].inner)
}

func TestExtractSubstitutions_None(t *testing.T) {
	occs := extractSubstitutions("ls -la /tmp")
	assert.Empty(t, occs)
}

func TestResolve_AllowedInnerSubstitutesOutput(t *testing.T) {
	r := New(allowValidator, echoExecutor)
	out, log := r.Resolve(context.Background(), "echo $(whoami)")
	require.Len(t, log, 1)
	assert.Equal(t, Resolved, log[0].Status)
	assert.Equal(t, "echo output-of:whoami", out)
}

func TestResolve_BlockedInnerLeavesTextAndLogsBlocked(t *testing.T) {
	r := New(blockValidator, echoExecutor)
	out, log := r.Resolve(context.Background(), "echo $(rm -rf /)")
	require.Len(t, log, 1)
	assert.Equal(t, Blocked, log[0].Status)
	assert.Contains(t, out, "$(rm -rf /)")
	assert.True(t, log.HasBlocked())
}

func TestResolve_DepthBudgetExceeded(t *testing.T) {
	r := New(allowValidator, echoExecutor)
	nested := "$(a $(b $(c $(d))))"
	_, log := r.Resolve(context.Background(), nested)
	assert.True(t, log.HasUnresolvable())
}

func TestResolve_DepthBudgetExceeded_OutermostUnresolvableInnermostThreeResolve(t *testing.T) {
	r := New(allowValidator, echoExecutor)
	nested := "$(a $(b $(c $(d))))"
	_, log := r.Resolve(context.Background(), nested)

	require.Len(t, log, 4)

	unresolvableCount, resolvedCount := 0, 0
	var unresolvablePattern string
	for _, e := range log {
		switch e.Status {
		case Unresolvable:
			unresolvableCount++
			unresolvablePattern = e.Pattern
		case Resolved:
			resolvedCount++
		}
	}
	assert.Equal(t, 1, unresolvableCount, "only the outermost occurrence should be Unresolvable")
	assert.Equal(t, 3, resolvedCount, "the innermost three occurrences should resolve")
	assert.Equal(t, nested, unresolvablePattern, "the outermost occurrence is the one marked Unresolvable")
}

func TestResolve_SimpleFileReadFastPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello-file"), 0o600))

	// The validator/executor must never be invoked for the fast path.
	calledValidator := false
	validator := func(context.Context, string) (policy.Decision, error) {
		calledValidator = true
		return policy.NewDecision(policy.Allow, "", 1.0, policy.SourcePolicy), nil
	}

	r := New(validator, echoExecutor)
	out, log := r.Resolve(context.Background(), "echo $(cat "+path+")")
	require.Len(t, log, 1)
	assert.Equal(t, Resolved, log[0].Status)
	assert.Equal(t, "echo hello-file", out)
	assert.False(t, calledValidator)
}

func TestResolve_NoSubstitutionsReturnsTextUnchanged(t *testing.T) {
	r := New(allowValidator, echoExecutor)
	out, log := r.Resolve(context.Background(), "ls -la")
	assert.Equal(t, "ls -la", out)
	assert.Empty(t, log)
}

func TestLog_HasWarned(t *testing.T) {
	log := Log{{Status: Warned}}
	assert.True(t, log.HasWarned())
	assert.False(t, log.HasBlocked())
}
