// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package validator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/aegish/internal/blocklist"
	"github.com/jeranaias/aegish/internal/executor"
	"github.com/jeranaias/aegish/internal/llmclient"
	"github.com/jeranaias/aegish/internal/policy"
)

// stubProvider lets each test pin exactly the verdict the LLM stage
// should contribute, without touching the network.
type stubProvider struct {
	decision policy.Decision
}

func (s stubProvider) Name() string { return "stub" }

func (s stubProvider) Validate(_ context.Context, _ llmclient.Prompt) (policy.Decision, error) {
	return s.decision, nil
}

func newTestValidator(t *testing.T, llmAction policy.Action) *Validator {
	t.Helper()
	chain := llmclient.NewFallbackChain(
		[]llmclient.Provider{stubProvider{decision: policy.NewDecision(llmAction, "stub verdict", 0.9, policy.SourceLLMOnly)}},
		1000,
		5*time.Second,
	)
	return New(blocklist.New(), chain, executor.New(5*time.Second), false)
}

func TestValidate_BlocklistHitIsTerminal(t *testing.T) {
	v := newTestValidator(t, policy.Allow)
	d, err := v.Validate(context.Background(), "rm -rf /", "/tmp", map[string]string{"PATH": "/usr/bin:/bin"})
	require.NoError(t, err)
	assert.Equal(t, policy.Block, d.Action)
	assert.Equal(t, policy.SourceBlocklist, d.Source)
}

func TestValidate_OversizedCommandBlockedBeforeAnyStage(t *testing.T) {
	v := newTestValidator(t, policy.Allow)
	huge := make([]byte, 5000)
	for i := range huge {
		huge[i] = 'a'
	}
	d, err := v.Validate(context.Background(), string(huge), "/tmp", nil)
	require.NoError(t, err)
	assert.Equal(t, policy.Block, d.Action)
}

func TestValidate_BenignCommandAllowedWhenLLMAllows(t *testing.T) {
	v := newTestValidator(t, policy.Allow)
	d, err := v.Validate(context.Background(), "ls -la /tmp", "/tmp", map[string]string{"PATH": "/usr/bin:/bin"})
	require.NoError(t, err)
	assert.Equal(t, policy.Allow, d.Action)
}

func TestValidate_VariableInCommandPositionEscalatesAllowToWarn(t *testing.T) {
	v := newTestValidator(t, policy.Allow)
	d, err := v.Validate(context.Background(), `a=ec; b=ho; $a$b hi`, "/tmp", map[string]string{"PATH": "/usr/bin:/bin"})
	require.NoError(t, err)
	assert.Equal(t, policy.Warn, d.Action)
}

func TestValidate_CompoundSegmentMostRestrictiveWins(t *testing.T) {
	v := newTestValidator(t, policy.Allow)
	d, err := v.Validate(context.Background(), "echo hi; rm -rf /", "/tmp", map[string]string{"PATH": "/usr/bin:/bin"})
	require.NoError(t, err)
	assert.Equal(t, policy.Block, d.Action)
}

func TestValidate_AllProvidersFailingBlocksByDefault(t *testing.T) {
	chain := llmclient.NewFallbackChain(nil, 1000, 5*time.Second)
	v := New(blocklist.New(), chain, executor.New(5*time.Second), false)
	d, err := v.Validate(context.Background(), "ls -la /tmp", "/tmp", map[string]string{"PATH": "/usr/bin:/bin"})
	require.NoError(t, err)
	assert.Equal(t, policy.Block, d.Action)
}

func TestValidate_AllProvidersFailingWarnsWhenFailOpen(t *testing.T) {
	chain := llmclient.NewFallbackChain(nil, 1000, 5*time.Second)
	v := New(blocklist.New(), chain, executor.New(5*time.Second), true)
	d, err := v.Validate(context.Background(), "ls -la /tmp", "/tmp", map[string]string{"PATH": "/usr/bin:/bin"})
	require.NoError(t, err)
	assert.Equal(t, policy.Warn, d.Action)
}
