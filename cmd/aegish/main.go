// aegish - an interactive, security-monitored shell.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jeranaias/aegish/internal/audit"
	"github.com/jeranaias/aegish/internal/blocklist"
	"github.com/jeranaias/aegish/internal/cloud"
	"github.com/jeranaias/aegish/internal/config"
	"github.com/jeranaias/aegish/internal/executor"
	"github.com/jeranaias/aegish/internal/llmclient"
	"github.com/jeranaias/aegish/internal/ollama"
	"github.com/jeranaias/aegish/internal/sandbox"
	"github.com/jeranaias/aegish/internal/session"
	"github.com/jeranaias/aegish/internal/shell"
	"github.com/jeranaias/aegish/internal/validator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aegish: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	bl := blocklist.New()
	if cfg.BlocklistFile != "" {
		data, err := os.ReadFile(cfg.BlocklistFile)
		if err != nil {
			return fmt.Errorf("reading blocklist overlay %s: %w", cfg.BlocklistFile, err)
		}
		if err := bl.LoadOverlay(data); err != nil {
			return fmt.Errorf("loading blocklist overlay: %w", err)
		}
	}

	providers, primaryModel := buildProviders(cfg)
	chain := llmclient.NewFallbackChain(providers, cfg.MaxQueriesPerMinute, time.Duration(cfg.LLMTimeoutSeconds)*time.Second)

	commandTimeout := executor.DefaultTimeout
	if cfg.CommandTimeoutSeconds > 0 {
		commandTimeout = time.Duration(cfg.CommandTimeoutSeconds) * time.Second
	}
	exec := executor.New(commandTimeout)

	sb, err := sandbox.Enable(sandbox.DefaultDenyExecPaths)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	sandboxStatus := "active"
	if !sb.Active {
		sandboxStatus = fmt.Sprintf("unavailable (%s)", sb.Detail)
	}

	v := validator.New(bl, chain, exec, cfg.FailMode == config.FailOpen)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining working directory: %w", err)
	}
	sess := session.New(cwd, environToMap(os.Environ()))

	aud, err := audit.New(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	defer aud.Close()

	sh := shell.New(cfg, v, exec, sess, aud, primaryModel, sandboxStatus)
	return sh.Run(context.Background())
}

// buildProviders wires every configured LLM backend into the fallback
// chain in priority order (local Ollama first, OpenRouter as the cloud
// fallback), skipping any backend with no usable configuration.
func buildProviders(cfg *config.Config) ([]llmclient.Provider, string) {
	var providers []llmclient.Provider
	primaryModel := ""

	if oc, ok := cfg.Providers["ollama"]; ok {
		clientCfg := ollama.DefaultConfig()
		if oc.BaseURL != "" {
			clientCfg.BaseURL = oc.BaseURL
		}
		if oc.Model != "" {
			clientCfg.DefaultModel = oc.Model
		}
		client := ollama.NewClientWithConfig(clientCfg)
		model := clientCfg.DefaultModel
		providers = append(providers, llmclient.NewOllamaProvider(client, model))
		if primaryModel == "" {
			primaryModel = model
		}
	}

	if oc, ok := cfg.Providers["openrouter"]; ok && oc.APIKey != "" {
		client := cloud.NewOpenRouterClient(oc.APIKey)
		if oc.BaseURL != "" {
			client = client.WithBaseURL(oc.BaseURL)
		}
		if oc.Model != "" {
			client.SetModel(oc.Model)
		}
		providers = append(providers, llmclient.NewOpenRouterProvider(client))
		if primaryModel == "" {
			primaryModel = client.GetModel()
		}
	}

	if primaryModel == "" {
		primaryModel = "none"
	}
	return providers, primaryModel
}

func environToMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return out
}
