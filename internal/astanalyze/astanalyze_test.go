// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package astanalyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnalyze_VariableInCommandPosition(t *testing.T) {
	a := Analyze(`a=ba; b=sh; $a$b`)
	assert.True(t, a.VariableInCommandPosition)
	assert.False(t, a.ParseFailed)
}

func TestAnalyze_CommandSubstitutionInExecPosition(t *testing.T) {
	a := Analyze(`$(fetch_payload)`)
	assert.True(t, a.CommandSubstitutionInExecPosition)
}

func TestAnalyze_BenignCommand(t *testing.T) {
	a := Analyze(`ls -la /tmp`)
	assert.False(t, a.VariableInCommandPosition)
	assert.False(t, a.CommandSubstitutionInExecPosition)
	assert.False(t, a.ParseFailed)
}

func TestAnalyze_CompoundDecomposition(t *testing.T) {
	a := Analyze(`echo hi; rm file; ls`)
	assert.Len(t, a.Segments, 3)
}

func TestAnalyze_ParseFailureMarker(t *testing.T) {
	a := Analyze(`((((`)
	assert.True(t, a.ParseFailed)
}

func TestAnalyze_SudoWrappedRmRf(t *testing.T) {
	a := Analyze(`sudo rm --recursive --force /data`)
	assert.NotEmpty(t, a.FlagNormalizedFindings)
}

func TestAnalyze_ChmodWorldWritable(t *testing.T) {
	a := Analyze(`chmod 777 /etc`)
	assert.NotEmpty(t, a.FlagNormalizedFindings)
}
