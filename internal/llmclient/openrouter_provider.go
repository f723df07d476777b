// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llmclient

import (
	"context"

	"github.com/jeranaias/aegish/internal/cloud"
	"github.com/jeranaias/aegish/internal/policy"
)

// OpenRouterProvider is the cloud fallback classifier provider, used
// when the local Ollama provider is unavailable or times out.
type OpenRouterProvider struct {
	client *cloud.OpenRouterClient
}

// NewOpenRouterProvider wraps an OpenRouter client already configured
// with an API key and model.
func NewOpenRouterProvider(client *cloud.OpenRouterClient) *OpenRouterProvider {
	return &OpenRouterProvider{client: client}
}

func (p *OpenRouterProvider) Name() string { return "openrouter:" + p.client.GetModel() }

func (p *OpenRouterProvider) Validate(ctx context.Context, prompt Prompt) (policy.Decision, error) {
	if !p.client.IsConfigured() {
		return policy.Decision{}, cloud.ErrNotConfigured
	}

	messages := []cloud.ChatMessage{
		cloud.NewSystemMessage(systemPrompt),
		cloud.NewUserMessage(BuildUserMessage(prompt)),
	}

	resp, err := p.client.Chat(ctx, messages)
	if err != nil {
		return policy.Decision{}, err
	}

	return ParseVerdict(resp.GetContent())
}
