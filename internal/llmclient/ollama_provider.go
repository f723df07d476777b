// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llmclient

import (
	"context"

	"github.com/jeranaias/aegish/internal/ollama"
	"github.com/jeranaias/aegish/internal/policy"
)

// OllamaProvider is the primary, local classifier provider.
type OllamaProvider struct {
	client *ollama.Client
	model  string
}

// NewOllamaProvider wraps an Ollama client for a given model.
func NewOllamaProvider(client *ollama.Client, model string) *OllamaProvider {
	return &OllamaProvider{client: client, model: model}
}

func (p *OllamaProvider) Name() string { return "ollama:" + p.model }

// Validate sends the prompt as a single-turn chat and parses the
// resulting text into a well-formed Decision.
func (p *OllamaProvider) Validate(ctx context.Context, prompt Prompt) (policy.Decision, error) {
	messages := []ollama.Message{
		ollama.NewSystemMessage(systemPrompt),
		ollama.NewUserMessage(BuildUserMessage(prompt)),
	}

	resp, err := p.client.Chat(ctx, p.model, messages, &ollama.Options{Temperature: 0, NumPredict: 256})
	if err != nil {
		return policy.Decision{}, err
	}

	return ParseVerdict(resp.Message.Content)
}
