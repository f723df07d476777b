// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates aegish's runtime configuration.
//
// # Key Types
//
//   - Config: resolved settings for one process (mode, fail-mode, rate
//     limits, timeouts, provider credentials, file paths)
//   - ProviderConfig: one LLM backend's connection details
//
// # Configuration precedence
//
// Exactly one source is consulted, chosen by AEGISH_MODE:
//   - development: AEGISH_* environment variables, falling back to
//     Default()'s values for anything unset
//   - production: /etc/aegish/config, which must be root-owned and not
//     group- or world-writable or the loader fails
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
