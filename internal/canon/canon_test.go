// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_Identity(t *testing.T) {
	r := Canonicalize("ls -la /tmp")
	assert.Equal(t, "ls -la /tmp", r.Text)
	assert.Empty(t, r.Variants)
}

func TestCanonicalize_AnsiCSimpleEscapes(t *testing.T) {
	r := Canonicalize(`echo $'\n'`)
	assert.Contains(t, r.Text, "\n")
	assert.False(t, r.Has(AnsiCPartial))
}

func TestCanonicalize_AnsiCHexEscape(t *testing.T) {
	r := Canonicalize(`echo $'\x41'`)
	assert.Contains(t, r.Text, "A")
}

func TestCanonicalize_AnsiCMalformedFlagsPartial(t *testing.T) {
	r := Canonicalize(`echo $'\xZZ'`)
	assert.True(t, r.Has(AnsiCPartial))
}

func TestCanonicalize_BacktickConversion(t *testing.T) {
	r := Canonicalize("echo `whoami`")
	assert.Equal(t, "echo $(whoami)", r.Text)
}

func TestCanonicalize_NestedBackticksFlagged(t *testing.T) {
	r := Canonicalize("echo `echo \\`whoami\\``")
	assert.True(t, r.Has(ParseUnreliable))
}

func TestCanonicalize_QuoteCollapseNoMeta(t *testing.T) {
	r := Canonicalize(`ba""sh`)
	assert.Equal(t, "bash", r.Text)
}

func TestCanonicalize_QuoteCollapseSkippedWithMeta(t *testing.T) {
	r := Canonicalize(`echo "$HOME"`)
	assert.Contains(t, r.Text, "$HOME")
}

func TestCanonicalize_BraceExpansionList(t *testing.T) {
	r := Canonicalize("{echo,rm} -rf /")
	require.NotEmpty(t, r.Variants)
	found := false
	for _, v := range r.Variants {
		if v == "rm -rf /" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCanonicalize_BraceExpansionSequence(t *testing.T) {
	r := Canonicalize("echo {1..3}")
	assert.ElementsMatch(t, []string{"echo 1", "echo 2", "echo 3"}, r.Variants)
}

func TestCanonicalize_BraceExpansionCapDiscardsVariants(t *testing.T) {
	// {1..100} exceeds maxBraceVariants (64); primary carries on, variants empty.
	r := Canonicalize("echo {1..100}")
	assert.Empty(t, r.Variants)
	assert.Equal(t, "echo {1..100}", r.Text)
}

func TestCanonicalize_HereStringExtraction(t *testing.T) {
	r := Canonicalize(`cat <<< "hello world"`)
	require.Len(t, r.HereStrings, 1)
	assert.Equal(t, "hello world", r.HereStrings[0])
	assert.True(t, r.Has(HereString))
}

func TestCanonicalize_Oversized(t *testing.T) {
	long := make([]byte, MaxCommandLength+1)
	for i := range long {
		long[i] = 'a'
	}
	r := Canonicalize(string(long))
	assert.True(t, r.Has(Oversized))
}

func TestCanonicalize_Idempotent(t *testing.T) {
	cases := []string{"ls -la", "echo `whoami`", "echo {1..3}"}
	for _, c := range cases {
		first := Canonicalize(c)
		second := Canonicalize(first.Text)
		assert.Equal(t, first.Text, second.Text, "fixed point for %q", c)
	}
}
