// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads aegish's runtime configuration.
//
// In development mode, settings come from AEGISH_* environment variables.
// In production mode, settings come from a root-owned file at
// /etc/aegish/config that the loader refuses to trust if its ownership or
// permissions are wrong. There is deliberately no silent fallback between
// the two: an invalid AEGISH_MODE is a fatal misconfiguration, not a
// default.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode selects where configuration is read from.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// FailMode governs what happens when a dependency (LLM backend, sandbox)
// is unavailable.
type FailMode string

const (
	// FailSafe blocks commands that cannot be classified.
	FailSafe FailMode = "safe"
	// FailOpen warns instead of blocking when classification is unavailable;
	// the shell runs a warned command only after the user confirms it.
	// Never the default; an operator must opt in explicitly.
	FailOpen FailMode = "open"
)

const (
	defaultFailMode               = FailSafe
	defaultFilterSensitiveVars    = true
	defaultMaxQueriesPerMinute    = 30
	defaultLLMTimeoutSeconds      = 30
	defaultCommandTimeoutSeconds  = 0 // 0 selects executor.DefaultTimeout (30s); no value leaves a command unbounded
	productionConfigPath          = "/etc/aegish/config"
)

// Config is the fully resolved runtime configuration for one aegish process.
type Config struct {
	Mode Mode `toml:"mode" json:"mode"`

	FailMode              FailMode `toml:"fail_mode" json:"fail_mode"`
	FilterSensitiveVars   bool     `toml:"filter_sensitive_vars" json:"filter_sensitive_vars"`
	MaxQueriesPerMinute   int      `toml:"max_queries_per_minute" json:"max_queries_per_minute"`
	LLMTimeoutSeconds     int      `toml:"llm_timeout_seconds" json:"llm_timeout_seconds"`
	CommandTimeoutSeconds int      `toml:"command_timeout_seconds" json:"command_timeout_seconds"`

	// Providers holds credentials/endpoints for each supported LLM backend,
	// keyed by provider name ("ollama", "openrouter", ...). Discovered by
	// name, not a fixed struct, so a new backend needs no schema change.
	Providers map[string]ProviderConfig `toml:"providers" json:"providers"`

	AuditLogPath   string `toml:"audit_log_path" json:"audit_log_path"`
	HistoryPath    string `toml:"history_path" json:"history_path"`
	BlocklistFile  string `toml:"blocklist_file" json:"blocklist_file"`
}

// ProviderConfig is one LLM backend's connection details.
type ProviderConfig struct {
	BaseURL string `toml:"base_url" json:"base_url"`
	APIKey  string `toml:"api_key" json:"api_key"`
	Model   string `toml:"model" json:"model"`
}

// ConfigDir returns the per-user aegish directory, e.g. $HOME/.aegish.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".aegish"), nil
}

// EnsureConfigDir creates the per-user aegish directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// HistoryFilePath returns the default history file path, $HOME/.aegish_history.
func HistoryFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".aegish_history"), nil
}

// AuditLogFilePath returns the default audit log path, $HOME/.aegish/audit.log.
func AuditLogFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audit.log"), nil
}

// Default returns the safe-by-default configuration before any env or file
// overrides are applied.
func Default() *Config {
	return &Config{
		Mode:                  ModeDevelopment,
		FailMode:              defaultFailMode,
		FilterSensitiveVars:   defaultFilterSensitiveVars,
		MaxQueriesPerMinute:   defaultMaxQueriesPerMinute,
		LLMTimeoutSeconds:     defaultLLMTimeoutSeconds,
		CommandTimeoutSeconds: defaultCommandTimeoutSeconds,
		Providers:             map[string]ProviderConfig{},
	}
}

// Load resolves AEGISH_MODE (env wins over nothing; there is no file
// fallback for the mode itself) and loads the rest of the configuration
// from the matching source. It is fatal-on-error by design: the caller
// (cmd/aegish) should treat any non-nil error as exit code 1.
func Load() (*Config, error) {
	cfg := Default()

	modeStr := os.Getenv("AEGISH_MODE")
	switch Mode(modeStr) {
	case "", ModeDevelopment:
		cfg.Mode = ModeDevelopment
		if err := cfg.applyEnvOverrides(); err != nil {
			return nil, err
		}
	case ModeProduction:
		cfg.Mode = ModeProduction
		if err := loadProductionFile(cfg, productionConfigPath); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid AEGISH_MODE %q: must be %q or %q", modeStr, ModeDevelopment, ModeProduction)
	}

	if err := cfg.fillPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides reads the AEGISH_* variables documented for development
// mode. Unset variables keep their Default() value; malformed integers are
// a hard error, never silently ignored.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("AEGISH_FAIL_MODE"); v != "" {
		switch FailMode(v) {
		case FailSafe, FailOpen:
			c.FailMode = FailMode(v)
		default:
			return fmt.Errorf("invalid AEGISH_FAIL_MODE %q: must be %q or %q", v, FailSafe, FailOpen)
		}
	}

	if v := os.Getenv("AEGISH_FILTER_SENSITIVE_VARS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AEGISH_FILTER_SENSITIVE_VARS %q: %w", v, err)
		}
		c.FilterSensitiveVars = b
	}

	if v := os.Getenv("AEGISH_MAX_QUERIES_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid AEGISH_MAX_QUERIES_PER_MINUTE %q: must be a non-negative integer", v)
		}
		c.MaxQueriesPerMinute = n
	}

	if v := os.Getenv("AEGISH_LLM_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid AEGISH_LLM_TIMEOUT_SECONDS %q: must be a non-negative integer", v)
		}
		c.LLMTimeoutSeconds = n
	}

	if v := os.Getenv("AEGISH_COMMAND_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid AEGISH_COMMAND_TIMEOUT_SECONDS %q: must be a non-negative integer", v)
		}
		c.CommandTimeoutSeconds = n
	}

	discoverProviderEnv(c, "ollama", "AEGISH_OLLAMA_URL", "", "AEGISH_OLLAMA_MODEL")
	discoverProviderEnv(c, "openrouter", "AEGISH_OPENROUTER_URL", "AEGISH_OPENROUTER_API_KEY", "AEGISH_OPENROUTER_MODEL")

	return nil
}

// discoverProviderEnv registers a provider only if at least one of its
// environment variables is actually set, so an unconfigured backend never
// appears in the fallback chain with empty credentials.
func discoverProviderEnv(c *Config, name, urlVar, keyVar, modelVar string) {
	url := os.Getenv(urlVar)
	key := ""
	if keyVar != "" {
		key = os.Getenv(keyVar)
	}
	model := os.Getenv(modelVar)

	if url == "" && key == "" && model == "" {
		return
	}
	c.Providers[name] = ProviderConfig{BaseURL: url, APIKey: key, Model: model}
}

// loadProductionFile reads and decodes the root-owned production config
// file. It fails hard on any ownership or permission mismatch: this is the
// one place aegish refuses to fall back to defaults, per the external
// interface contract for production deployments.
func loadProductionFile(cfg *Config, path string) error {
	if err := verifyRootOwnedConfigFile(path); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read production config %s: %w", path, err)
	}

	switch {
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode production config %s: %w", path, err)
		}
	default:
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
			return fmt.Errorf("failed to decode production config %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) fillPaths() error {
	if c.HistoryPath == "" {
		p, err := HistoryFilePath()
		if err != nil {
			return err
		}
		c.HistoryPath = p
	}
	if c.AuditLogPath == "" {
		p, err := AuditLogFilePath()
		if err != nil {
			return err
		}
		c.AuditLogPath = p
	}
	return nil
}

// Validate rejects configurations that would otherwise surface as
// confusing runtime failures later.
func (c *Config) Validate() error {
	var errs []string

	switch c.Mode {
	case ModeDevelopment, ModeProduction:
	default:
		errs = append(errs, fmt.Sprintf("mode: must be %q or %q, got %q", ModeDevelopment, ModeProduction, c.Mode))
	}

	switch c.FailMode {
	case FailSafe, FailOpen:
	default:
		errs = append(errs, fmt.Sprintf("fail_mode: must be %q or %q, got %q", FailSafe, FailOpen, c.FailMode))
	}

	if c.MaxQueriesPerMinute < 0 {
		errs = append(errs, "max_queries_per_minute: must be non-negative")
	}
	if c.LLMTimeoutSeconds < 0 {
		errs = append(errs, "llm_timeout_seconds: must be non-negative")
	}
	if c.CommandTimeoutSeconds < 0 {
		errs = append(errs, "command_timeout_seconds: must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
