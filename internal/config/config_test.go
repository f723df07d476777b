// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"AEGISH_MODE", "AEGISH_FAIL_MODE", "AEGISH_FILTER_SENSITIVE_VARS",
		"AEGISH_MAX_QUERIES_PER_MINUTE", "AEGISH_LLM_TIMEOUT_SECONDS",
		"AEGISH_COMMAND_TIMEOUT_SECONDS", "AEGISH_OLLAMA_URL", "AEGISH_OLLAMA_MODEL",
		"AEGISH_OPENROUTER_URL", "AEGISH_OPENROUTER_API_KEY", "AEGISH_OPENROUTER_MODEL",
	}
	for _, v := range vars {
		orig, had := os.LookupEnv(v)
		os.Unsetenv(v)
		t.Cleanup(func() {
			if had {
				os.Setenv(v, orig)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.Equal(t, FailSafe, cfg.FailMode)
	assert.True(t, cfg.FilterSensitiveVars)
	assert.Equal(t, 30, cfg.MaxQueriesPerMinute)
	assert.Equal(t, 30, cfg.LLMTimeoutSeconds)
	assert.Equal(t, 0, cfg.CommandTimeoutSeconds)
}

func TestLoad_DevelopmentDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ModeDevelopment, cfg.Mode)
	assert.Equal(t, FailSafe, cfg.FailMode)
	assert.NotEmpty(t, cfg.HistoryPath)
	assert.NotEmpty(t, cfg.AuditLogPath)
}

func TestLoad_InvalidMode(t *testing.T) {
	clearEnv(t)
	os.Setenv("AEGISH_MODE", "sandbox")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AEGISH_MODE")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("AEGISH_FAIL_MODE", "open")
	os.Setenv("AEGISH_MAX_QUERIES_PER_MINUTE", "5")
	os.Setenv("AEGISH_LLM_TIMEOUT_SECONDS", "10")
	os.Setenv("AEGISH_OLLAMA_URL", "http://localhost:11434")
	os.Setenv("AEGISH_OLLAMA_MODEL", "llama3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, FailOpen, cfg.FailMode)
	assert.Equal(t, 5, cfg.MaxQueriesPerMinute)
	assert.Equal(t, 10, cfg.LLMTimeoutSeconds)
	require.Contains(t, cfg.Providers, "ollama")
	assert.Equal(t, "http://localhost:11434", cfg.Providers["ollama"].BaseURL)
	assert.Equal(t, "llama3", cfg.Providers["ollama"].Model)
}

func TestLoad_InvalidFailMode(t *testing.T) {
	clearEnv(t)
	os.Setenv("AEGISH_FAIL_MODE", "dangerous")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AEGISH_FAIL_MODE")
}

func TestLoad_InvalidIntegerEnv(t *testing.T) {
	clearEnv(t)
	os.Setenv("AEGISH_MAX_QUERIES_PER_MINUTE", "not-a-number")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AEGISH_MAX_QUERIES_PER_MINUTE")
}

func TestDiscoverProviderEnv_SkipsUnconfigured(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.NotContains(t, cfg.Providers, "ollama")
	assert.NotContains(t, cfg.Providers, "openrouter")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", mutate: func(c *Config) {}, wantErr: false},
		{name: "invalid mode", mutate: func(c *Config) { c.Mode = "staging" }, wantErr: true},
		{name: "invalid fail mode", mutate: func(c *Config) { c.FailMode = "yolo" }, wantErr: true},
		{name: "negative rate limit", mutate: func(c *Config) { c.MaxQueriesPerMinute = -1 }, wantErr: true},
		{name: "negative llm timeout", mutate: func(c *Config) { c.LLMTimeoutSeconds = -5 }, wantErr: true},
		{name: "negative command timeout", mutate: func(c *Config) { c.CommandTimeoutSeconds = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerifyRootOwnedConfigFile_MissingFile(t *testing.T) {
	err := verifyRootOwnedConfigFile("/nonexistent/path/to/aegish-config-test")
	assert.Error(t, err)
}
